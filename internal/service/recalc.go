// Package service provides the business logic layer (use cases) of the
// tracker: entry and item mutations with their aggregate recalculation,
// cached queries, todos, account purge, overview and export.
package service

import (
	"context"
	"errors"
	"sort"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var recalcTracer = otel.Tracer("service/recalc")

// Engine keeps the derived totals of budgets and loans equal to the sum of
// their items. Child writes and the recalculation of every affected parent
// commit together.
type Engine struct {
	store   port.EntryStore
	cache   *cache.Cache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewEngine creates the aggregate recalculation engine.
func NewEngine(store port.EntryStore, c *cache.Cache, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	return &Engine{store: store, cache: c, metrics: metrics, logger: logger}
}

// ChildWrite is one child mutation together with the parents whose totals it
// changes.
type ChildWrite struct {
	Kind    domain.Kind
	OwnerID string
	// Parents are locked before Write and recalculated after it, in id order
	// so two writes that touch the same pair of parents lock them in the same
	// order.
	Parents []string
	// Write runs the child statements on tx.
	Write func(ctx context.Context, tx port.EntryStore) (WriteResult, error)
}

// WriteResult reports what a child write touched.
type WriteResult struct {
	// ItemTags are the cache tags of every child written.
	ItemTags []string
	// Created is the child inserted by the write, if any. It is deleted again
	// when the recalculation fails.
	Created *domain.Item
	// IDs are the children the write matched.
	IDs []string
}

// Apply runs w and the recalculation of its parents in one transaction, then
// invalidates the children's and the parents' tags. Every parent row is
// locked before the child statements run, so concurrent writers on one
// parent queue on that lock instead of deadlocking behind the foreign key
// checks of each other's child rows.
//
// When the recalculation fails the transaction rolls back. A created child
// is then still deleted explicitly and its tags invalidated, which covers
// stores whose InTx cannot roll back.
func (e *Engine) Apply(ctx context.Context, w ChildWrite) (WriteResult, error) {
	ctx, span := recalcTracer.Start(ctx, "Engine.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("entry.kind", string(w.Kind)),
		attribute.StringSlice("entry.parents", w.Parents),
	)

	parents := sortedUnique(w.Parents)

	var res WriteResult
	err := e.store.InTx(ctx, func(tx port.EntryStore) error {
		// A missing parent is left to Write, which reports it in its own terms.
		for _, parentID := range parents {
			if _, _, err := tx.LockCapacity(ctx, w.Kind, w.OwnerID, parentID); err != nil {
				return err
			}
		}

		var err error
		res, err = w.Write(ctx, tx)
		if err != nil {
			return err
		}
		for _, parentID := range parents {
			if _, err := e.RecalculateTx(ctx, tx, w.Kind, w.OwnerID, parentID); err != nil {
				return err
			}
		}
		return nil
	})

	var recalcErr *domain.ErrRecalculation
	if errors.As(err, &recalcErr) {
		e.compensate(ctx, w.Kind, res.Created)
		return WriteResult{}, err
	}
	if err != nil {
		return WriteResult{}, err
	}

	tags := append([]string{}, res.ItemTags...)
	for _, parentID := range parents {
		tags = append(tags, cache.EntryTags(w.Kind.Resource(), w.OwnerID, parentID)...)
	}
	e.invalidate(ctx, tags)
	return res, nil
}

// Recalculate restores the totals of one parent in its own transaction and
// invalidates the parent's tags. A parent that does not exist for ownerID is
// a no-op.
func (e *Engine) Recalculate(ctx context.Context, kind domain.Kind, parentID, ownerID string) error {
	_, err := e.Apply(ctx, ChildWrite{
		Kind:    kind,
		OwnerID: ownerID,
		Parents: []string{parentID},
		Write: func(context.Context, port.EntryStore) (WriteResult, error) {
			return WriteResult{}, nil
		},
	})
	return err
}

// RecalculateTx recomputes consumed and remaining for one parent on tx. The
// parent row is locked before its items are summed. The boolean is false
// when the parent does not exist for ownerID; that is not an error.
// Failures are returned as *domain.ErrRecalculation.
func (e *Engine) RecalculateTx(ctx context.Context, tx port.EntryStore, kind domain.Kind, ownerID, parentID string) (bool, error) {
	ctx, span := recalcTracer.Start(ctx, "Engine.Recalculate")
	defer span.End()
	span.SetAttributes(attribute.String("entry.kind", string(kind)), attribute.String("entry.id", parentID))

	fail := func(err error) (bool, error) {
		e.metrics.IncrRecalculation(string(kind), "error")
		e.logger.Warn("recalculation failed",
			zap.String("entry_kind", string(kind)),
			zap.String("entry_id", parentID),
			zap.Error(err),
		)
		return false, &domain.ErrRecalculation{Kind: kind, ParentID: parentID, Err: err}
	}

	capacity, found, err := tx.LockCapacity(ctx, kind, ownerID, parentID)
	if err != nil {
		return fail(err)
	}
	if !found {
		e.metrics.IncrRecalculation(string(kind), "skipped")
		return false, nil
	}

	consumed, err := tx.SumItems(ctx, kind, parentID)
	if err != nil {
		return fail(err)
	}

	remaining := domain.RemainingOf(capacity, consumed)
	if err := tx.SetTotals(ctx, kind, ownerID, parentID, consumed, remaining); err != nil {
		return fail(err)
	}

	e.metrics.IncrRecalculation(string(kind), "success")
	e.logger.Debug("totals recalculated",
		zap.String("entry_kind", string(kind)),
		zap.String("entry_id", parentID),
		zap.String("consumed", consumed.String()),
		zap.String("remaining", remaining.String()),
	)
	return true, nil
}

// compensate removes a child whose parent could not be recalculated. It is
// best-effort: failures are logged and the recalculation error is what the
// caller sees.
func (e *Engine) compensate(ctx context.Context, kind domain.Kind, created *domain.Item) {
	if created == nil {
		return
	}

	n, err := e.store.DeleteItem(ctx, kind, created.ParentID, created.ID)
	if err != nil {
		e.logger.Error("compensating delete failed",
			zap.String("entry_kind", string(kind)),
			zap.String("entry_id", created.ParentID),
			zap.String("item_id", created.ID),
			zap.Error(err),
		)
	} else {
		e.logger.Warn("compensating delete applied",
			zap.String("entry_kind", string(kind)),
			zap.String("entry_id", created.ParentID),
			zap.String("item_id", created.ID),
			zap.Int64("rows", n),
		)
	}
	e.invalidate(ctx, cache.ItemTags(kind.ItemResource(), created.ParentID, created.ID))
}

// invalidate bumps tags after a committed write. The write already happened,
// so a cache failure is logged and counted rather than returned.
func (e *Engine) invalidate(ctx context.Context, tags []string) {
	if err := e.cache.Invalidate(ctx, tags...); err != nil {
		e.logger.Error("cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
