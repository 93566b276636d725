package service_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/infra/store"
	"github.com/boddenberg/finance-tracker-go/internal/port"
	"github.com/boddenberg/finance-tracker-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Fault injection ---

// faultyStore wraps the real store. failSum makes every recalculation fail;
// noTx runs InTx without a transaction, like a store that cannot roll back.
// A non-nil calls records the transactional statements in order.
type faultyStore struct {
	*store.Store
	failSum bool
	noTx    bool
	calls   *callLog
}

var errInjected = errors.New("injected sum failure")

type callLog struct {
	mu    sync.Mutex
	names []string
}

func (l *callLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx port.EntryStore) error) error {
	if f.noTx {
		return fn(f)
	}
	return f.Store.InTx(ctx, func(tx port.EntryStore) error {
		return fn(&faultyStore{Store: tx.(*store.Store), failSum: f.failSum, calls: f.calls})
	})
}

func (f *faultyStore) LockCapacity(ctx context.Context, kind domain.Kind, ownerID, id string) (decimal.Decimal, bool, error) {
	f.calls.add("LockCapacity")
	return f.Store.LockCapacity(ctx, kind, ownerID, id)
}

func (f *faultyStore) CreateItem(ctx context.Context, kind domain.Kind, parentID string, in domain.ItemInput) (*domain.Item, error) {
	f.calls.add("CreateItem")
	return f.Store.CreateItem(ctx, kind, parentID, in)
}

func (f *faultyStore) MoveItems(ctx context.Context, kind domain.Kind, oldParentID, newParentID string, ids []string) ([]string, error) {
	f.calls.add("MoveItems")
	return f.Store.MoveItems(ctx, kind, oldParentID, newParentID, ids)
}

func (f *faultyStore) SumItems(ctx context.Context, kind domain.Kind, parentID string) (decimal.Decimal, error) {
	if f.failSum {
		return decimal.Zero, errInjected
	}
	return f.Store.SumItems(ctx, kind, parentID)
}

// --- Harness ---

type harness struct {
	store    *store.Store
	faulty   *faultyStore
	metrics  *observability.Metrics
	cache    *cache.Cache
	queries  *service.Queries
	engine   *service.Engine
	entries  *service.EntryService
	todos    *service.TodoService
	accounts *service.AccountService
	overview *service.OverviewService
	export   *service.ExportService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithScope(t, store.UniquePerOwner)
}

func newHarnessWithScope(t *testing.T, scope string) *harness {
	t.Helper()
	return newHarnessWithConfig(t, store.Config{
		Driver:         "sqlite",
		DSN:            store.MemoryDSN(t.Name()),
		NameUniqueness: scope,
	})
}

// newPostgresHarness runs against TEST_DATABASE_URL, where writers really
// contend on row locks. Tests using it are skipped when it is unset.
func newPostgresHarness(t *testing.T) *harness {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return newHarnessWithConfig(t, store.Config{
		Driver:         "postgres",
		DSN:            dsn,
		NameUniqueness: store.UniquePerOwner,
		MaxOpenConns:   32,
	})
}

func newHarnessWithConfig(t *testing.T, cfg store.Config) *harness {
	t.Helper()
	logger := zap.NewNop()

	s, err := store.Open(cfg, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	metrics := observability.NewMetrics()
	c := cache.New(cache.NewMemoryBackend(time.Minute), time.Minute, metrics, logger)
	t.Cleanup(func() { _ = c.Close() })

	faulty := &faultyStore{Store: s}
	queries := service.NewQueries(s, s, c)
	engine := service.NewEngine(faulty, c, metrics, logger)

	return &harness{
		store:    s,
		faulty:   faulty,
		metrics:  metrics,
		cache:    c,
		queries:  queries,
		engine:   engine,
		entries:  service.NewEntryService(faulty, engine, queries, c, metrics, logger),
		todos:    service.NewTodoService(s, queries, c, logger),
		accounts: service.NewAccountService(s, c, logger),
		overview: service.NewOverviewService(queries, metrics, logger),
		export:   service.NewExportService(queries, logger),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (h *harness) createBudget(t *testing.T, owner, name, quota string) domain.Entry {
	t.Helper()
	e, err := h.entries.CreateEntry(context.Background(), domain.KindBudget, owner, domain.EntryInput{
		Name: name, Capacity: dec(quota), BgColor: "emerald",
	})
	if err != nil {
		t.Fatalf("create budget %s: %v", name, err)
	}
	return e
}

func (h *harness) createLoan(t *testing.T, owner, name, debt string) domain.Entry {
	t.Helper()
	e, err := h.entries.CreateEntry(context.Background(), domain.KindLoan, owner, domain.EntryInput{
		Name: name, Capacity: dec(debt), BgColor: "violet", IsAgainst: true,
	})
	if err != nil {
		t.Fatalf("create loan %s: %v", name, err)
	}
	return e
}

func (h *harness) addItem(t *testing.T, kind domain.Kind, owner, parentID, name, amount string) *domain.Item {
	t.Helper()
	item, err := h.entries.CreateItem(context.Background(), kind, parentID, owner, domain.ItemInput{Name: name, Amount: dec(amount)})
	if err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return item
}

// reload reads an entry through the cached read path.
func (h *harness) reload(t *testing.T, kind domain.Kind, owner, id string) domain.Entry {
	t.Helper()
	e, err := h.queries.GetEntry(context.Background(), kind, id, owner)
	if err != nil {
		t.Fatalf("get %s %s: %v", kind, id, err)
	}
	return e
}

func assertTotals(t *testing.T, e domain.Entry, consumed, remaining string) {
	t.Helper()
	if !e.Consumed().Equal(dec(consumed)) || !e.Remaining().Equal(dec(remaining)) {
		t.Errorf("%s %s: expected consumed=%s remaining=%s, got consumed=%s remaining=%s",
			e.EntryKind(), e.EntryName(), consumed, remaining, e.Consumed(), e.Remaining())
	}
}

// assertInvariant checks consumed == sum(items) and remaining == capacity - consumed.
func assertInvariant(t *testing.T, e domain.Entry) {
	t.Helper()
	sum := decimal.Zero
	for _, it := range e.Items() {
		sum = sum.Add(it.Amount)
	}
	if !e.Consumed().Equal(sum) {
		t.Errorf("%s: consumed %s != sum of items %s", e.EntryName(), e.Consumed(), sum)
	}
	if !e.Remaining().Equal(e.Capacity().Sub(e.Consumed())) {
		t.Errorf("%s: remaining %s != capacity %s - consumed %s", e.EntryName(), e.Remaining(), e.Capacity(), e.Consumed())
	}
}
