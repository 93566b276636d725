package store

import (
	"context"
	"fmt"

	"github.com/boddenberg/finance-tracker-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm/clause"
)

// ============================================================
// Items (expenses / installments)
// ============================================================

func itemModelFor(kind domain.Kind) any {
	if kind == domain.KindLoan {
		return &installmentRow{}
	}
	return &expenseRow{}
}

// CreateItem inserts a child row. A parent that does not exist surfaces as
// ErrParentNotFound through the foreign key.
func (s *Store) CreateItem(ctx context.Context, kind domain.Kind, parentID string, in domain.ItemInput) (*domain.Item, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateItem")
	defer span.End()
	span.SetAttributes(attribute.String("entry.kind", string(kind)), attribute.String("entry.id", parentID))

	amount := in.Amount.Round(2)
	db := s.db.WithContext(ctx)

	var rec itemRecord
	switch kind {
	case domain.KindBudget:
		row := &expenseRow{ParentID: parentID, Name: in.Name, Amount: amount}
		if err := db.Create(row).Error; err != nil {
			return nil, s.wrapItemWrite("CreateItem", kind, parentID, err)
		}
		rec = itemRecord{row.ID, row.ParentID, row.Name, row.Amount, row.CreatedAt, row.UpdatedAt}
	case domain.KindLoan:
		row := &installmentRow{ParentID: parentID, Name: in.Name, Amount: amount}
		if err := db.Create(row).Error; err != nil {
			return nil, s.wrapItemWrite("CreateItem", kind, parentID, err)
		}
		rec = itemRecord{row.ID, row.ParentID, row.Name, row.Amount, row.CreatedAt, row.UpdatedAt}
	default:
		_, err := tablesFor(kind)
		return nil, err
	}

	item := rec.toDomain()
	return &item, nil
}

// ListItems returns the items of a parent, newest first.
func (s *Store) ListItems(ctx context.Context, kind domain.Kind, parentID string) ([]domain.Item, error) {
	ctx, span := tracer.Start(ctx, "Store.ListItems")
	defer span.End()

	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	var recs []itemRecord
	err = s.db.WithContext(ctx).Table(t.item).
		Select("id, "+t.parentCol+" AS parent_id, name, amount, created_at, updated_at").
		Where(t.parentCol+" = ?", parentID).
		Order("created_at DESC, id DESC").
		Scan(&recs).Error
	if err != nil {
		return nil, s.wrap("ListItems", err)
	}

	items := make([]domain.Item, 0, len(recs))
	for _, r := range recs {
		items = append(items, r.toDomain())
	}
	return items, nil
}

// UpdateItems applies each row as its own statement scoped to the parent and
// returns the ids that matched.
func (s *Store) UpdateItems(ctx context.Context, kind domain.Kind, parentID string, rows []domain.ItemUpdate) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateItems")
	defer span.End()
	span.SetAttributes(attribute.Int("items.count", len(rows)))

	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	updated := make([]string, 0, len(rows))
	for _, r := range rows {
		res := s.db.WithContext(ctx).Model(itemModelFor(kind)).
			Where("id = ? AND "+t.parentCol+" = ?", r.ID, parentID).
			Updates(map[string]any{"name": r.Name, "amount": r.Amount.Round(2)})
		if res.Error != nil {
			return nil, s.wrap("UpdateItems", res.Error)
		}
		if res.RowsAffected > 0 {
			updated = append(updated, r.ID)
		}
	}
	return updated, nil
}

// MoveItems reassigns the listed items of oldParentID to newParentID and
// returns the ids that actually moved. The matched rows are locked where the
// dialect supports it and the update keeps the old parent in its filter, so
// an item moved away by a concurrent transaction is neither moved again nor
// reported.
func (s *Store) MoveItems(ctx context.Context, kind domain.Kind, oldParentID, newParentID string, ids []string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Store.MoveItems")
	defer span.End()

	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	db := s.db.WithContext(ctx)
	owned := "id IN ? AND " + t.parentCol + " = ?"

	q := db.Model(itemModelFor(kind)).Where(owned, ids, oldParentID)
	if s.locksRows() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var matched []string
	if err := q.Pluck("id", &matched).Error; err != nil {
		return nil, s.wrap("MoveItems", err)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	res := db.Model(itemModelFor(kind)).
		Where(owned, matched, oldParentID).
		Update(t.parentCol, newParentID)
	if res.Error != nil {
		return nil, s.wrapItemWrite("MoveItems", kind, newParentID, res.Error)
	}
	if res.RowsAffected != int64(len(matched)) {
		return nil, s.wrap("MoveItems", fmt.Errorf("%d of %d matched items changed parent", res.RowsAffected, len(matched)))
	}
	return matched, nil
}

// DeleteItem removes one item of a parent and returns the matched row count.
func (s *Store) DeleteItem(ctx context.Context, kind domain.Kind, parentID, id string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteItem")
	defer span.End()

	t, err := tablesFor(kind)
	if err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND "+t.parentCol+" = ?", id, parentID).
		Delete(itemModelFor(kind))
	if res.Error != nil {
		return 0, s.wrap("DeleteItem", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) wrapItemWrite(op string, kind domain.Kind, parentID string, err error) error {
	if isForeignKeyViolation(err) {
		return &domain.ErrParentNotFound{Kind: kind, ID: parentID}
	}
	return s.wrap(op, err)
}
