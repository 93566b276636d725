package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Items (expenses / installments)
// ============================================================

// CreateItem adds a child to an owned parent and recalculates the parent.
// A missing or foreign parent yields *domain.ErrParentNotFound.
func (s *EntryService) CreateItem(ctx context.Context, kind domain.Kind, parentID, ownerID string, in domain.ItemInput) (*domain.Item, error) {
	ctx, span := entryTracer.Start(ctx, "EntryService.CreateItem")
	defer span.End()
	defer s.observe("create_item", time.Now())
	span.SetAttributes(attribute.String("entry.kind", string(kind)), attribute.String("entry.id", parentID))

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	in, err := domain.ValidateItemInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.verifyParent(ctx, kind, parentID, ownerID); err != nil {
		return nil, err
	}

	res, err := s.engine.Apply(ctx, ChildWrite{
		Kind:    kind,
		OwnerID: ownerID,
		Parents: []string{parentID},
		Write: func(ctx context.Context, tx port.EntryStore) (WriteResult, error) {
			item, err := tx.CreateItem(ctx, kind, parentID, in)
			if err != nil {
				return WriteResult{}, err
			}
			return WriteResult{
				ItemTags: cache.ItemTags(kind.ItemResource(), parentID, item.ID),
				Created:  item,
				IDs:      []string{item.ID},
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item created",
		zap.String("owner_id", ownerID),
		zap.String("entry_kind", string(kind)),
		zap.String("entry_id", parentID),
		zap.String("item_id", res.Created.ID),
	)
	return res.Created, nil
}

// DeleteItem removes one child of an owned parent and recalculates the parent.
func (s *EntryService) DeleteItem(ctx context.Context, kind domain.Kind, id, parentID, ownerID string) error {
	ctx, span := entryTracer.Start(ctx, "EntryService.DeleteItem")
	defer span.End()
	defer s.observe("delete_item", time.Now())

	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if !kind.Valid() {
		return &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	if err := s.verifyParent(ctx, kind, parentID, ownerID); err != nil {
		return err
	}

	_, err := s.engine.Apply(ctx, ChildWrite{
		Kind:    kind,
		OwnerID: ownerID,
		Parents: []string{parentID},
		Write: func(ctx context.Context, tx port.EntryStore) (WriteResult, error) {
			n, err := tx.DeleteItem(ctx, kind, parentID, id)
			if err != nil {
				return WriteResult{}, err
			}
			if n == 0 {
				return WriteResult{}, &domain.ErrNotFound{Resource: kind.ItemLabel(), ID: id}
			}
			return WriteResult{
				ItemTags: cache.ItemTags(kind.ItemResource(), parentID, id),
				IDs:      []string{id},
			}, nil
		},
	})
	return err
}

// UpdateItems applies a batch of child updates under one owned parent.
// Rows without an id are skipped. A batch with nothing to apply, or in which
// no row matched, fails without changes. The parent is recalculated once.
func (s *EntryService) UpdateItems(ctx context.Context, kind domain.Kind, parentID, ownerID string, items []domain.ItemUpdate) ([]string, error) {
	ctx, span := entryTracer.Start(ctx, "EntryService.UpdateItems")
	defer span.End()
	defer s.observe("update_items", time.Now())
	span.SetAttributes(attribute.Int("items.count", len(items)))

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	rows, err := domain.ValidateItemUpdates(items)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrEmptyBatch{Operation: "update " + kind.ItemLabel() + "s"}
	}
	if err := s.verifyParent(ctx, kind, parentID, ownerID); err != nil {
		return nil, err
	}

	res, err := s.engine.Apply(ctx, ChildWrite{
		Kind:    kind,
		OwnerID: ownerID,
		Parents: []string{parentID},
		Write: func(ctx context.Context, tx port.EntryStore) (WriteResult, error) {
			ids, err := tx.UpdateItems(ctx, kind, parentID, rows)
			if err != nil {
				return WriteResult{}, err
			}
			if len(ids) == 0 {
				return WriteResult{}, &domain.ErrEmptyBatch{Operation: "update " + kind.ItemLabel() + "s"}
			}
			var tags []string
			for _, id := range ids {
				tags = append(tags, cache.ItemTags(kind.ItemResource(), parentID, id)...)
			}
			return WriteResult{ItemTags: tags, IDs: ids}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return res.IDs, nil
}

// MoveItems re-parents the listed children from oldParentID to newParentID.
// Both parents must be owned by the caller; ids not under the old parent are
// ignored. Both parents are recalculated in the same transaction.
func (s *EntryService) MoveItems(ctx context.Context, kind domain.Kind, oldParentID, newParentID, ownerID string, ids []string) ([]string, error) {
	ctx, span := entryTracer.Start(ctx, "EntryService.MoveItems")
	defer span.End()
	defer s.observe("move_items", time.Now())

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	if oldParentID == newParentID {
		return nil, &domain.ErrValidation{Field: "newParentId", Message: "target must differ from the current parent"}
	}
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return nil, &domain.ErrEmptyBatch{Operation: "move " + kind.ItemLabel() + "s"}
	}
	if err := s.verifyParent(ctx, kind, oldParentID, ownerID); err != nil {
		return nil, err
	}
	if err := s.verifyParent(ctx, kind, newParentID, ownerID); err != nil {
		return nil, err
	}

	res, err := s.engine.Apply(ctx, ChildWrite{
		Kind:    kind,
		OwnerID: ownerID,
		Parents: []string{oldParentID, newParentID},
		Write: func(ctx context.Context, tx port.EntryStore) (WriteResult, error) {
			moved, err := tx.MoveItems(ctx, kind, oldParentID, newParentID, ids)
			if err != nil {
				return WriteResult{}, err
			}
			if len(moved) == 0 {
				return WriteResult{}, &domain.ErrEmptyBatch{Operation: "move " + kind.ItemLabel() + "s"}
			}
			tags := []string{cache.ItemsTag(kind.ItemResource(), newParentID)}
			for _, id := range moved {
				tags = append(tags, cache.ItemTags(kind.ItemResource(), oldParentID, id)...)
			}
			return WriteResult{ItemTags: tags, IDs: moved}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("items moved",
		zap.String("owner_id", ownerID),
		zap.String("entry_kind", string(kind)),
		zap.String("from", oldParentID),
		zap.String("to", newParentID),
		zap.Int("count", len(res.IDs)),
	)
	return res.IDs, nil
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
