package store

import (
	"context"
	"errors"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ============================================================
// Entries (budgets / loans)
// ============================================================

// InTx runs fn on a store bound to one database transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx port.EntryStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger})
	})
}

func modelFor(kind domain.Kind) any {
	if kind == domain.KindLoan {
		return &loanRow{}
	}
	return &budgetRow{}
}

func (s *Store) CreateEntry(ctx context.Context, kind domain.Kind, ownerID string, in domain.EntryInput) (domain.Entry, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateEntry")
	defer span.End()
	span.SetAttributes(attribute.String("entry.kind", string(kind)))

	capacity := in.Capacity.Round(2)
	db := s.db.WithContext(ctx)

	switch kind {
	case domain.KindBudget:
		row := &budgetRow{
			OwnerID:        ownerID,
			Name:           in.Name,
			TotalQuota:     capacity,
			BgColor:        in.BgColor,
			ExpensesTotal:  decimal.Zero,
			AvailableQuota: capacity,
		}
		if err := db.Create(row).Error; err != nil {
			return nil, s.wrapWrite("CreateEntry", string(kind), in.Name, err)
		}
		return row.toDomain(), nil
	case domain.KindLoan:
		row := &loanRow{
			OwnerID:           ownerID,
			Name:              in.Name,
			TotalDebt:         capacity,
			BgColor:           in.BgColor,
			IsAgainst:         in.IsAgainst,
			InstallmentsTotal: decimal.Zero,
			DueAmount:         capacity,
		}
		if err := db.Create(row).Error; err != nil {
			return nil, s.wrapWrite("CreateEntry", string(kind), in.Name, err)
		}
		return row.toDomain(), nil
	}
	_, err := tablesFor(kind)
	return nil, err
}

// GetEntry loads one owned entry together with its items, newest first.
func (s *Store) GetEntry(ctx context.Context, kind domain.Kind, ownerID, id string) (domain.Entry, error) {
	ctx, span := tracer.Start(ctx, "Store.GetEntry")
	defer span.End()

	db := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID)

	var entry domain.Entry
	switch kind {
	case domain.KindBudget:
		var row budgetRow
		if err := db.Take(&row).Error; err != nil {
			return nil, s.notFoundOr("GetEntry", kind, id, err)
		}
		b := row.toDomain()
		items, err := s.ListItems(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		b.Expenses = items
		entry = b
	case domain.KindLoan:
		var row loanRow
		if err := db.Take(&row).Error; err != nil {
			return nil, s.notFoundOr("GetEntry", kind, id, err)
		}
		l := row.toDomain()
		items, err := s.ListItems(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		l.Installments = items
		entry = l
	default:
		_, err := tablesFor(kind)
		return nil, err
	}
	return entry, nil
}

// ListEntries returns an owner's entries most recently updated first, without
// items.
// A non-positive limit returns every entry.
func (s *Store) ListEntries(ctx context.Context, kind domain.Kind, ownerID string, limit int) ([]domain.Entry, error) {
	ctx, span := tracer.Start(ctx, "Store.ListEntries")
	defer span.End()

	db := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("updated_at DESC, id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	switch kind {
	case domain.KindBudget:
		var rows []budgetRow
		if err := db.Find(&rows).Error; err != nil {
			return nil, s.wrap("ListEntries", err)
		}
		out := make([]domain.Entry, 0, len(rows))
		for i := range rows {
			out = append(out, rows[i].toDomain())
		}
		return out, nil
	case domain.KindLoan:
		var rows []loanRow
		if err := db.Find(&rows).Error; err != nil {
			return nil, s.wrap("ListEntries", err)
		}
		out := make([]domain.Entry, 0, len(rows))
		for i := range rows {
			out = append(out, rows[i].toDomain())
		}
		return out, nil
	}
	_, err := tablesFor(kind)
	return nil, err
}

// UpdateEntry rewrites the editable fields of an owned entry and returns the
// number of matched rows.
func (s *Store) UpdateEntry(ctx context.Context, kind domain.Kind, ownerID, id string, in domain.EntryInput) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateEntry")
	defer span.End()

	t, err := tablesFor(kind)
	if err != nil {
		return 0, err
	}
	updates := map[string]any{
		"name":     in.Name,
		"bg_color": in.BgColor,
		t.capacity: in.Capacity.Round(2),
	}
	if kind == domain.KindLoan {
		updates["is_against"] = in.IsAgainst
	}

	res := s.db.WithContext(ctx).Model(modelFor(kind)).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return 0, s.wrapWrite("UpdateEntry", string(kind), in.Name, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteEntry removes an owned entry; its items go with it through the
// foreign key cascade.
func (s *Store) DeleteEntry(ctx context.Context, kind domain.Kind, ownerID, id string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteEntry")
	defer span.End()

	if _, err := tablesFor(kind); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(modelFor(kind))
	if res.Error != nil {
		return 0, s.wrap("DeleteEntry", res.Error)
	}
	return res.RowsAffected, nil
}

// ============================================================
// Aggregates
// ============================================================

type capacityRow struct {
	Capacity decimal.Decimal
}

type totalRow struct {
	Total decimal.Decimal
}

// LockCapacity reads the capacity of an owned entry, locking the row for the
// rest of the transaction where the dialect supports it. The lock is
// FOR NO KEY UPDATE: it serializes writers of the entry but does not conflict
// with the key share locks taken by foreign key checks on its items. The
// boolean is false when the entry does not exist for that owner.
func (s *Store) LockCapacity(ctx context.Context, kind domain.Kind, ownerID, id string) (decimal.Decimal, bool, error) {
	ctx, span := tracer.Start(ctx, "Store.LockCapacity")
	defer span.End()

	t, err := tablesFor(kind)
	if err != nil {
		return decimal.Zero, false, err
	}

	q := s.db.WithContext(ctx).Table(t.entry).
		Select(t.capacity+" AS capacity").
		Where("id = ? AND owner_id = ?", id, ownerID)
	if s.locksRows() {
		q = q.Clauses(clause.Locking{Strength: "NO KEY UPDATE"})
	}

	var row capacityRow
	res := q.Limit(1).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, false, s.wrap("LockCapacity", res.Error)
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, false, nil
	}
	return row.Capacity, true, nil
}

// SumItems totals the amounts of every item of a parent. No items sum to zero.
func (s *Store) SumItems(ctx context.Context, kind domain.Kind, parentID string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Store.SumItems")
	defer span.End()

	t, err := tablesFor(kind)
	if err != nil {
		return decimal.Zero, err
	}

	var row totalRow
	err = s.db.WithContext(ctx).Table(t.item).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where(t.parentCol+" = ?", parentID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, s.wrap("SumItems", err)
	}
	return row.Total.Round(2), nil
}

// SetTotals writes the derived consumed and remaining fields of an entry.
func (s *Store) SetTotals(ctx context.Context, kind domain.Kind, ownerID, id string, consumed, remaining decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "Store.SetTotals")
	defer span.End()

	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(modelFor(kind)).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]any{t.consumed: consumed, t.remaining: remaining})
	if res.Error != nil {
		return s.wrap("SetTotals", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: string(kind), ID: id}
	}
	return nil
}

func (s *Store) notFoundOr(op string, kind domain.Kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ErrNotFound{Resource: string(kind), ID: id}
	}
	return s.wrap(op, err)
}
