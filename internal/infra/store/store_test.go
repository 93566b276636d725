package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/store"
	"github.com/boddenberg/finance-tracker-go/internal/port"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func openStore(t *testing.T, uniqueness string) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{
		Driver:         "sqlite",
		DSN:            store.MemoryDSN(t.Name()),
		NameUniqueness: uniqueness,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func budgetInput(name string, quota int64) domain.EntryInput {
	return domain.EntryInput{Name: name, Capacity: decimal.NewFromInt(quota), BgColor: "sky"}
}

func TestCreateEntry_InitialTotals(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	e, err := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Groceries", 500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.EntryID() == "" {
		t.Fatal("expected generated id")
	}
	if !e.Consumed().IsZero() || !e.Remaining().Equal(decimal.NewFromInt(500)) {
		t.Errorf("unexpected totals: consumed=%s remaining=%s", e.Consumed(), e.Remaining())
	}

	got, err := s.GetEntry(ctx, domain.KindBudget, "u1", e.EntryID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EntryName() != "Groceries" || !got.Capacity().Equal(decimal.NewFromInt(500)) {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestGetEntry_ForeignOwnerIsNotFound(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	e, _ := s.CreateEntry(ctx, domain.KindLoan, "u1", budgetInput("Car loan", 1000))
	_, err := s.GetEntry(ctx, domain.KindLoan, "u2", e.EntryID())

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUniqueness_PerOwner(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	if _, err := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Rent", 100)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateEntry(ctx, domain.KindBudget, "u2", budgetInput("Rent", 100)); err != nil {
		t.Fatalf("expected another owner to reuse the name, got %v", err)
	}
	_, err := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Rent", 100))
	var nu *domain.ErrNotUnique
	if !errors.As(err, &nu) {
		t.Fatalf("expected ErrNotUnique, got %v", err)
	}
}

func TestUniqueness_Global(t *testing.T) {
	s := openStore(t, store.UniqueGlobal)
	ctx := context.Background()

	if _, err := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Rent", 100)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.CreateEntry(ctx, domain.KindBudget, "u2", budgetInput("Rent", 100))
	var nu *domain.ErrNotUnique
	if !errors.As(err, &nu) {
		t.Fatalf("expected ErrNotUnique across owners, got %v", err)
	}
}

func TestItems_SumLockAndCascade(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	e, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Food", 300))
	id := e.EntryID()

	for _, amount := range []string{"50", "25.50", "0.25"} {
		if _, err := s.CreateItem(ctx, domain.KindBudget, id, domain.ItemInput{Name: "Item", Amount: decimal.RequireFromString(amount)}); err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	sum, err := s.SumItems(ctx, domain.KindBudget, id)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("75.75")) {
		t.Errorf("expected sum 75.75, got %s", sum)
	}

	capacity, ok, err := s.LockCapacity(ctx, domain.KindBudget, "u1", id)
	if err != nil || !ok || !capacity.Equal(decimal.NewFromInt(300)) {
		t.Errorf("LockCapacity = %s, %v, %v", capacity, ok, err)
	}
	if _, ok, _ := s.LockCapacity(ctx, domain.KindBudget, "u2", id); ok {
		t.Error("expected foreign owner lock to find nothing")
	}

	if n, err := s.DeleteEntry(ctx, domain.KindBudget, "u1", id); err != nil || n != 1 {
		t.Fatalf("delete entry = %d, %v", n, err)
	}
	items, err := s.ListItems(ctx, domain.KindBudget, id)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected cascade to remove items, %d left", len(items))
	}
}

func TestSumItems_NoItemsIsZero(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	sum, err := s.SumItems(context.Background(), domain.KindLoan, "missing")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !sum.IsZero() {
		t.Errorf("expected zero, got %s", sum)
	}
}

func TestCreateItem_MissingParent(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	_, err := s.CreateItem(context.Background(), domain.KindLoan, "missing", domain.ItemInput{Name: "First", Amount: decimal.NewFromInt(1)})

	var pnf *domain.ErrParentNotFound
	if !errors.As(err, &pnf) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
}

func TestMoveItems(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	a, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Alpha", 100))
	b, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Beta", 100))
	item, _ := s.CreateItem(ctx, domain.KindBudget, a.EntryID(), domain.ItemInput{Name: "Lunch", Amount: decimal.NewFromInt(10)})

	moved, err := s.MoveItems(ctx, domain.KindBudget, a.EntryID(), b.EntryID(), []string{item.ID, "unknown"})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(moved) != 1 || moved[0] != item.ID {
		t.Fatalf("unexpected moved ids: %v", moved)
	}

	items, _ := s.ListItems(ctx, domain.KindBudget, b.EntryID())
	if len(items) != 1 || items[0].ParentID != b.EntryID() {
		t.Errorf("expected item under new parent, got %+v", items)
	}
}

func TestMoveItems_AlreadyMovedItemStays(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	a, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Alpha", 100))
	b, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Beta", 100))
	c, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Gamma", 100))
	item, _ := s.CreateItem(ctx, domain.KindBudget, a.EntryID(), domain.ItemInput{Name: "Lunch", Amount: decimal.NewFromInt(10)})

	if _, err := s.MoveItems(ctx, domain.KindBudget, a.EntryID(), b.EntryID(), []string{item.ID}); err != nil {
		t.Fatalf("first move: %v", err)
	}
	moved, err := s.MoveItems(ctx, domain.KindBudget, a.EntryID(), c.EntryID(), []string{item.ID})
	if err != nil {
		t.Fatalf("second move: %v", err)
	}
	if len(moved) != 0 {
		t.Fatalf("expected nothing to move from the old parent, got %v", moved)
	}

	if items, _ := s.ListItems(ctx, domain.KindBudget, b.EntryID()); len(items) != 1 {
		t.Errorf("expected the item to stay under its new parent, got %+v", items)
	}
	if items, _ := s.ListItems(ctx, domain.KindBudget, c.EntryID()); len(items) != 0 {
		t.Errorf("expected nothing under the second target, got %+v", items)
	}
}

func TestListEntries_RecentlyUpdatedFirst(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	a, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Alpha", 100))
	time.Sleep(5 * time.Millisecond)
	b, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Beta", 100))

	list, _ := s.ListEntries(ctx, domain.KindBudget, "u1", 0)
	if len(list) != 2 || list[0].EntryID() != b.EntryID() {
		t.Fatalf("expected newest entry first, got %v", entryNames(list))
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := s.UpdateEntry(ctx, domain.KindBudget, "u1", a.EntryID(), budgetInput("Alpha", 150)); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, _ = s.ListEntries(ctx, domain.KindBudget, "u1", 0)
	if len(list) != 2 || list[0].EntryID() != a.EntryID() {
		t.Errorf("expected the edited entry first, got %v", entryNames(list))
	}
}

func entryNames(list []domain.Entry) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.EntryName())
	}
	return out
}

func TestUpdateItems_ReturnsMatchedIDs(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	e, _ := s.CreateEntry(ctx, domain.KindLoan, "u1", budgetInput("Mortgage", 1000))
	item, _ := s.CreateItem(ctx, domain.KindLoan, e.EntryID(), domain.ItemInput{Name: "January", Amount: decimal.NewFromInt(100)})

	ids, err := s.UpdateItems(ctx, domain.KindLoan, e.EntryID(), []domain.ItemUpdate{
		{ID: item.ID, Name: "January", Amount: decimal.NewFromInt(120)},
		{ID: "unknown", Name: "Nope", Amount: decimal.NewFromInt(1)},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ids) != 1 || ids[0] != item.ID {
		t.Errorf("unexpected updated ids: %v", ids)
	}
}

func TestInTx_RollsBack(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()
	e, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Travel", 100))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx port.EntryStore) error {
		if _, err := tx.CreateItem(ctx, domain.KindBudget, e.EntryID(), domain.ItemInput{Name: "Hotel", Amount: decimal.NewFromInt(80)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	items, _ := s.ListItems(ctx, domain.KindBudget, e.EntryID())
	if len(items) != 0 {
		t.Errorf("expected rollback, found %d items", len(items))
	}
}

func TestTodos(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	todo, err := s.CreateTodo(ctx, "u1", "Pay rent", false)
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}
	_, err = s.CreateTodo(ctx, "u1", "Pay rent", false)
	var nu *domain.ErrNotUnique
	if !errors.As(err, &nu) {
		t.Fatalf("expected ErrNotUnique, got %v", err)
	}

	done := true
	if n, err := s.UpdateTodo(ctx, "u1", todo.ID, domain.TodoPatch{Completed: &done}); err != nil || n != 1 {
		t.Fatalf("update todo = %d, %v", n, err)
	}
	if n, _ := s.UpdateTodo(ctx, "u2", todo.ID, domain.TodoPatch{Completed: &done}); n != 0 {
		t.Error("expected foreign owner update to match nothing")
	}

	todos, _ := s.ListTodos(ctx, "u1", 0)
	if len(todos) != 1 || !todos[0].Completed {
		t.Errorf("unexpected todos: %+v", todos)
	}
}

func TestPurgeOwner(t *testing.T) {
	s := openStore(t, store.UniquePerOwner)
	ctx := context.Background()

	b, _ := s.CreateEntry(ctx, domain.KindBudget, "u1", budgetInput("Food", 100))
	_, _ = s.CreateItem(ctx, domain.KindBudget, b.EntryID(), domain.ItemInput{Name: "Bread", Amount: decimal.NewFromInt(3)})
	_, _ = s.CreateEntry(ctx, domain.KindLoan, "u1", budgetInput("Car", 100))
	_, _ = s.CreateTodo(ctx, "u1", "Call bank", false)
	_, _ = s.CreateEntry(ctx, domain.KindBudget, "u2", budgetInput("Food", 100))

	purged, err := s.PurgeOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(purged.BudgetIDs) != 1 || len(purged.LoanIDs) != 1 || len(purged.TodoIDs) != 1 {
		t.Errorf("unexpected purge result: %+v", purged)
	}

	left, _ := s.ListEntries(ctx, domain.KindBudget, "u2", 0)
	if len(left) != 1 {
		t.Errorf("expected other owner untouched, got %d budgets", len(left))
	}
	items, _ := s.ListItems(ctx, domain.KindBudget, b.EntryID())
	if len(items) != 0 {
		t.Errorf("expected purged budget items removed, got %d", len(items))
	}
}
