package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var entryTracer = otel.Tracer("service/entries")

// EntryService runs the mutation operations on budgets, loans and their
// items. Every operation checks the owner, validates, verifies parent
// ownership for child writes, writes, recalculates and invalidates before it
// returns.
type EntryService struct {
	store   port.EntryStore
	engine  *Engine
	queries *Queries
	cache   *cache.Cache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewEntryService creates the entry mutation service.
func NewEntryService(store port.EntryStore, engine *Engine, queries *Queries, c *cache.Cache, metrics *observability.Metrics, logger *zap.Logger) *EntryService {
	return &EntryService{
		store:   store,
		engine:  engine,
		queries: queries,
		cache:   c,
		metrics: metrics,
		logger:  logger,
	}
}

// ============================================================
// Parents
// ============================================================

// CreateEntry creates a budget or loan. Its totals start at zero consumed and
// the full capacity remaining.
func (s *EntryService) CreateEntry(ctx context.Context, kind domain.Kind, ownerID string, in domain.EntryInput) (domain.Entry, error) {
	ctx, span := entryTracer.Start(ctx, "EntryService.CreateEntry")
	defer span.End()
	defer s.observe("create_entry", time.Now())

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	in, err := domain.ValidateEntryInput(kind, in)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.CreateEntry(ctx, kind, ownerID, in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("entry.id", entry.EntryID()))

	s.invalidate(ctx, cache.EntryTags(kind.Resource(), ownerID, entry.EntryID()))
	s.logger.Info("entry created",
		zap.String("owner_id", ownerID),
		zap.String("entry_kind", string(kind)),
		zap.String("entry_id", entry.EntryID()),
	)
	return entry, nil
}

// UpdateEntry rewrites the editable fields of an owned entry and recalculates
// its totals in the same transaction, since a new capacity moves the
// remaining balance.
func (s *EntryService) UpdateEntry(ctx context.Context, kind domain.Kind, id, ownerID string, in domain.EntryInput) error {
	ctx, span := entryTracer.Start(ctx, "EntryService.UpdateEntry")
	defer span.End()
	defer s.observe("update_entry", time.Now())

	if err := requireOwner(ownerID); err != nil {
		return err
	}
	in, err := domain.ValidateEntryInput(kind, in)
	if err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(tx port.EntryStore) error {
		n, err := tx.UpdateEntry(ctx, kind, ownerID, id, in)
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.ErrNotFound{Resource: string(kind), ID: id}
		}
		_, err = s.engine.RecalculateTx(ctx, tx, kind, ownerID, id)
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, cache.EntryTags(kind.Resource(), ownerID, id))
	return nil
}

// DeleteEntry removes an owned entry. Its items are removed by the store
// cascade; the parent's id tag covers every cached read of them.
func (s *EntryService) DeleteEntry(ctx context.Context, kind domain.Kind, id, ownerID string) error {
	ctx, span := entryTracer.Start(ctx, "EntryService.DeleteEntry")
	defer span.End()
	defer s.observe("delete_entry", time.Now())

	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if !kind.Valid() {
		return &domain.ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}

	n, err := s.store.DeleteEntry(ctx, kind, ownerID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: string(kind), ID: id}
	}

	s.invalidate(ctx, cache.EntryTags(kind.Resource(), ownerID, id))
	s.logger.Info("entry deleted",
		zap.String("owner_id", ownerID),
		zap.String("entry_kind", string(kind)),
		zap.String("entry_id", id),
	)
	return nil
}

// ============================================================
// Helpers
// ============================================================

// verifyParent loads the parent through the cached read path, which both
// authorizes the caller and warms the cache for the response.
func (s *EntryService) verifyParent(ctx context.Context, kind domain.Kind, parentID, ownerID string) error {
	if parentID == "" {
		return &domain.ErrParentNotFound{Kind: kind, ID: parentID}
	}
	_, err := s.queries.GetEntry(ctx, kind, parentID, ownerID)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return &domain.ErrParentNotFound{Kind: kind, ID: parentID}
	}
	return err
}

func (s *EntryService) invalidate(ctx context.Context, tags []string) {
	if err := s.cache.Invalidate(ctx, tags...); err != nil {
		s.logger.Error("cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

func (s *EntryService) observe(op string, start time.Time) {
	s.metrics.RecordOperationDuration(op, time.Since(start))
}
