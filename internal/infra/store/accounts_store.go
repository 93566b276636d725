package store

import (
	"context"

	"github.com/boddenberg/finance-tracker-go/internal/port"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PurgeOwner deletes every budget, loan and todo of an owner in one
// transaction. Items are removed by the foreign key cascade.
func (s *Store) PurgeOwner(ctx context.Context, ownerID string) (*port.PurgedAccount, error) {
	ctx, span := tracer.Start(ctx, "Store.PurgeOwner")
	defer span.End()

	out := &port.PurgedAccount{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			model any
			ids   *[]string
		}{
			{&budgetRow{}, &out.BudgetIDs},
			{&loanRow{}, &out.LoanIDs},
			{&todoRow{}, &out.TodoIDs},
		}
		for _, st := range steps {
			if err := tx.Model(st.model).Where("owner_id = ?", ownerID).Pluck("id", st.ids).Error; err != nil {
				return err
			}
			if len(*st.ids) == 0 {
				continue
			}
			if err := tx.Where("owner_id = ?", ownerID).Delete(st.model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("PurgeOwner", err)
	}

	s.logger.Info("store: owner purged",
		zap.String("owner_id", ownerID),
		zap.Int("budgets", len(out.BudgetIDs)),
		zap.Int("loans", len(out.LoanIDs)),
		zap.Int("todos", len(out.TodoIDs)),
	)
	return out, nil
}
