package service

import (
	"context"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var accountTracer = otel.Tracer("service/accounts")

// AccountService removes all data of an owner whose identity was deleted.
type AccountService struct {
	store  port.AccountStore
	cache  *cache.Cache
	logger *zap.Logger
}

func NewAccountService(store port.AccountStore, c *cache.Cache, logger *zap.Logger) *AccountService {
	return &AccountService{store: store, cache: c, logger: logger}
}

// DeleteAccount purges every budget, loan and todo of ownerID. Items go with
// their parents through the store cascade.
func (s *AccountService) DeleteAccount(ctx context.Context, ownerID string) (*port.PurgedAccount, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.DeleteAccount")
	defer span.End()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	purged, err := s.store.PurgeOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	tags := []string{cache.UserTag(domain.ResourceUsers, ownerID)}
	for _, id := range purged.BudgetIDs {
		tags = append(tags, cache.EntryTags(domain.ResourceBudgets, ownerID, id)...)
	}
	for _, id := range purged.LoanIDs {
		tags = append(tags, cache.EntryTags(domain.ResourceLoans, ownerID, id)...)
	}
	for _, id := range purged.TodoIDs {
		tags = append(tags, cache.EntryTags(domain.ResourceTodos, ownerID, id)...)
	}
	// Owner tags are bumped even when nothing was purged.
	tags = append(tags,
		cache.UserTag(domain.ResourceBudgets, ownerID),
		cache.UserTag(domain.ResourceLoans, ownerID),
		cache.UserTag(domain.ResourceTodos, ownerID),
	)

	if err := s.cache.Invalidate(ctx, tags...); err != nil {
		s.logger.Error("cache invalidation failed", zap.String("owner_id", ownerID), zap.Error(err))
	}

	s.logger.Info("account purged",
		zap.String("owner_id", ownerID),
		zap.Int("budgets", len(purged.BudgetIDs)),
		zap.Int("loans", len(purged.LoanIDs)),
		zap.Int("todos", len(purged.TodoIDs)),
	)
	return purged, nil
}
