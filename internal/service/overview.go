package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var overviewTracer = otel.Tracer("service/overview")

// OverviewService builds the dashboard summary of one owner.
type OverviewService struct {
	queries *Queries
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewOverviewService(queries *Queries, metrics *observability.Metrics, logger *zap.Logger) *OverviewService {
	return &OverviewService{queries: queries, metrics: metrics, logger: logger}
}

// Overview loads budgets, loans and todos concurrently and sums them.
func (s *OverviewService) Overview(ctx context.Context, ownerID string) (*domain.Overview, error) {
	ctx, span := overviewTracer.Start(ctx, "OverviewService.Overview")
	defer span.End()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("overview", time.Since(start))
	}()

	var (
		budgets []domain.Entry
		loans   []domain.Entry
		todos   []domain.Todo
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := s.queries.ListEntries(gCtx, domain.KindBudget, ownerID, 0)
		if err != nil {
			return fmt.Errorf("budgets: %w", err)
		}
		budgets = list
		return nil
	})

	g.Go(func() error {
		list, err := s.queries.ListEntries(gCtx, domain.KindLoan, ownerID, 0)
		if err != nil {
			return fmt.Errorf("loans: %w", err)
		}
		loans = list
		return nil
	})

	g.Go(func() error {
		list, err := s.queries.ListTodos(gCtx, ownerID, 0)
		if err != nil {
			return fmt.Errorf("todos: %w", err)
		}
		todos = list
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("overview failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	out := &domain.Overview{
		Budgets: sumEntries(domain.KindBudget, budgets),
		Loans:   sumEntries(domain.KindLoan, loans),
		Todos:   len(todos),
	}
	for _, t := range todos {
		if !t.Completed {
			out.OpenTodos++
		}
	}
	return out, nil
}

func sumEntries(kind domain.Kind, entries []domain.Entry) domain.KindTotals {
	totals := domain.KindTotals{
		Kind:      kind,
		Count:     len(entries),
		Capacity:  decimal.Zero,
		Consumed:  decimal.Zero,
		Remaining: decimal.Zero,
	}
	for _, e := range entries {
		totals.Capacity = totals.Capacity.Add(e.Capacity())
		totals.Consumed = totals.Consumed.Add(e.Consumed())
		totals.Remaining = totals.Remaining.Add(e.Remaining())
	}
	return totals
}
