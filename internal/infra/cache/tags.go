package cache

import (
	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// ============================================================
// Tag naming
// ============================================================
//
// Tags are plain strings with a scope prefix. No resource name is a suffix
// of another, so "<id>-<resource>" never collides across resources even
// when ids contain dashes.

// GlobalTag covers every resource of one kind.
func GlobalTag(r domain.Resource) string {
	return "global:" + string(r)
}

// UserTag covers every resource of one kind owned by ownerID.
func UserTag(r domain.Resource, ownerID string) string {
	return "user:" + ownerID + "-" + string(r)
}

// IDTag covers one resource.
func IDTag(r domain.Resource, id string) string {
	return "id:" + id + "-" + string(r)
}

// ItemsTag covers every child resource of one kind under parentID.
func ItemsTag(r domain.Resource, parentID string) string {
	return "items:" + parentID + "-" + string(r)
}

// EntryTags are the tags a write to one parent resource invalidates.
func EntryTags(r domain.Resource, ownerID, id string) []string {
	return []string{GlobalTag(r), IDTag(r, id), UserTag(r, ownerID)}
}

// ItemTags are the tags a write to one child resource invalidates.
func ItemTags(r domain.Resource, parentID, id string) []string {
	return []string{GlobalTag(r), IDTag(r, id), ItemsTag(r, parentID)}
}
