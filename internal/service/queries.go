package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/port"
)

// ============================================================
// Cached reads
// ============================================================

type entryArg struct {
	Kind    domain.Kind
	OwnerID string
	ID      string
}

type entryListArg struct {
	Kind    domain.Kind
	OwnerID string
	Limit   int
}

type todoListArg struct {
	OwnerID string
	Limit   int
}

// entryPayload carries either kind of entry through the cache encoding.
type entryPayload struct {
	Budget *domain.Budget `json:"budget,omitempty"`
	Loan   *domain.Loan   `json:"loan,omitempty"`
}

func toPayload(e domain.Entry) entryPayload {
	switch v := e.(type) {
	case *domain.Budget:
		return entryPayload{Budget: v}
	case *domain.Loan:
		return entryPayload{Loan: v}
	}
	return entryPayload{}
}

func (p entryPayload) entry() domain.Entry {
	if p.Loan != nil {
		return p.Loan
	}
	if p.Budget != nil {
		return p.Budget
	}
	return nil
}

// Queries holds the cached read paths. Each declares the tags the mutation
// operations invalidate.
type Queries struct {
	getEntry    func(context.Context, entryArg) (entryPayload, error)
	listEntries func(context.Context, entryListArg) ([]entryPayload, error)
	listItems   func(context.Context, entryArg) ([]domain.Item, error)
	listTodos   func(context.Context, todoListArg) ([]domain.Todo, error)
}

// NewQueries wires the cached reads over the stores.
func NewQueries(entries port.EntryStore, todos port.TodoStore, c *cache.Cache) *Queries {
	return &Queries{
		getEntry: cache.Cached(c, cache.Query[entryArg, entryPayload]{
			Name: "get_entry",
			Key:  func(a entryArg) string { return fmt.Sprintf("%s|%s|%s", a.Kind, a.OwnerID, a.ID) },
			Tags: func(a entryArg) []string {
				return []string{
					cache.IDTag(a.Kind.Resource(), a.ID),
					cache.ItemsTag(a.Kind.ItemResource(), a.ID),
				}
			},
			Load: func(ctx context.Context, a entryArg) (entryPayload, error) {
				e, err := entries.GetEntry(ctx, a.Kind, a.OwnerID, a.ID)
				if err != nil {
					return entryPayload{}, err
				}
				return toPayload(e), nil
			},
		}),
		listEntries: cache.Cached(c, cache.Query[entryListArg, []entryPayload]{
			Name: "list_entries",
			Key:  func(a entryListArg) string { return fmt.Sprintf("%s|%s|%d", a.Kind, a.OwnerID, a.Limit) },
			Tags: func(a entryListArg) []string {
				return []string{
					cache.GlobalTag(a.Kind.Resource()),
					cache.UserTag(a.Kind.Resource(), a.OwnerID),
				}
			},
			Load: func(ctx context.Context, a entryListArg) ([]entryPayload, error) {
				list, err := entries.ListEntries(ctx, a.Kind, a.OwnerID, a.Limit)
				if err != nil {
					return nil, err
				}
				out := make([]entryPayload, 0, len(list))
				for _, e := range list {
					out = append(out, toPayload(e))
				}
				return out, nil
			},
		}),
		listItems: cache.Cached(c, cache.Query[entryArg, []domain.Item]{
			Name: "list_items",
			Key:  func(a entryArg) string { return fmt.Sprintf("%s|%s|%s", a.Kind, a.OwnerID, a.ID) },
			Tags: func(a entryArg) []string {
				return []string{
					cache.ItemsTag(a.Kind.ItemResource(), a.ID),
					cache.IDTag(a.Kind.Resource(), a.ID),
				}
			},
			Load: func(ctx context.Context, a entryArg) ([]domain.Item, error) {
				// Loading the parent scopes the items to its owner.
				e, err := entries.GetEntry(ctx, a.Kind, a.OwnerID, a.ID)
				if err != nil {
					return nil, err
				}
				return e.Items(), nil
			},
		}),
		listTodos: cache.Cached(c, cache.Query[todoListArg, []domain.Todo]{
			Name: "list_todos",
			Key:  func(a todoListArg) string { return fmt.Sprintf("%s|%d", a.OwnerID, a.Limit) },
			Tags: func(a todoListArg) []string {
				return []string{cache.UserTag(domain.ResourceTodos, a.OwnerID)}
			},
			Load: func(ctx context.Context, a todoListArg) ([]domain.Todo, error) {
				return todos.ListTodos(ctx, a.OwnerID, a.Limit)
			},
		}),
	}
}

// GetEntry returns one owned entry with its items, newest first.
func (q *Queries) GetEntry(ctx context.Context, kind domain.Kind, id, ownerID string) (domain.Entry, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	p, err := q.getEntry(ctx, entryArg{Kind: kind, OwnerID: ownerID, ID: id})
	if err != nil {
		return nil, err
	}
	e := p.entry()
	if e == nil {
		return nil, &domain.ErrNotFound{Resource: string(kind), ID: id}
	}
	return e, nil
}

// ListEntries returns an owner's entries newest first. A non-positive limit
// returns all of them.
func (q *Queries) ListEntries(ctx context.Context, kind domain.Kind, ownerID string, limit int) ([]domain.Entry, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	list, err := q.listEntries(ctx, entryListArg{Kind: kind, OwnerID: ownerID, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entry, 0, len(list))
	for _, p := range list {
		if e := p.entry(); e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListItems returns the items of an owned parent, newest first. A parent
// without items yields an empty slice, never nil.
func (q *Queries) ListItems(ctx context.Context, kind domain.Kind, parentID, ownerID string) ([]domain.Item, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	items, err := q.listItems(ctx, entryArg{Kind: kind, OwnerID: ownerID, ID: parentID})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

// ListTodos returns an owner's todos oldest first.
func (q *Queries) ListTodos(ctx context.Context, ownerID string, limit int) ([]domain.Todo, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return q.listTodos(ctx, todoListArg{OwnerID: ownerID, Limit: limit})
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return &domain.ErrUnauthorized{Message: "no authenticated owner"}
	}
	return nil
}
