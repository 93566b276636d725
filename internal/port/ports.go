// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the relational store implementation.
package port

import (
	"context"

	"github.com/boddenberg/finance-tracker-go/internal/domain"

	"github.com/shopspring/decimal"
)

// EntryStore defines all data operations on budgets, loans and their items.
// Every entry operation is scoped by owner; item operations are scoped by
// parent, and callers verify parent ownership before touching items.
type EntryStore interface {
	// InTx runs fn inside one store transaction. fn must only use the store it
	// receives. Returning an error rolls the transaction back.
	InTx(ctx context.Context, fn func(tx EntryStore) error) error

	// Entries
	CreateEntry(ctx context.Context, kind domain.Kind, ownerID string, in domain.EntryInput) (domain.Entry, error)
	GetEntry(ctx context.Context, kind domain.Kind, ownerID, id string) (domain.Entry, error)
	ListEntries(ctx context.Context, kind domain.Kind, ownerID string, limit int) ([]domain.Entry, error)
	UpdateEntry(ctx context.Context, kind domain.Kind, ownerID, id string, in domain.EntryInput) (int64, error)
	DeleteEntry(ctx context.Context, kind domain.Kind, ownerID, id string) (int64, error)

	// Aggregates
	LockCapacity(ctx context.Context, kind domain.Kind, ownerID, id string) (decimal.Decimal, bool, error)
	SumItems(ctx context.Context, kind domain.Kind, parentID string) (decimal.Decimal, error)
	SetTotals(ctx context.Context, kind domain.Kind, ownerID, id string, consumed, remaining decimal.Decimal) error

	// Items
	CreateItem(ctx context.Context, kind domain.Kind, parentID string, in domain.ItemInput) (*domain.Item, error)
	ListItems(ctx context.Context, kind domain.Kind, parentID string) ([]domain.Item, error)
	UpdateItems(ctx context.Context, kind domain.Kind, parentID string, rows []domain.ItemUpdate) ([]string, error)
	MoveItems(ctx context.Context, kind domain.Kind, oldParentID, newParentID string, ids []string) ([]string, error)
	DeleteItem(ctx context.Context, kind domain.Kind, parentID, id string) (int64, error)
}

// TodoStore defines the data operations on todos.
type TodoStore interface {
	CreateTodo(ctx context.Context, ownerID, name string, completed bool) (*domain.Todo, error)
	ListTodos(ctx context.Context, ownerID string, limit int) ([]domain.Todo, error)
	UpdateTodo(ctx context.Context, ownerID, id string, patch domain.TodoPatch) (int64, error)
	DeleteTodo(ctx context.Context, ownerID, id string) (int64, error)
}

// PurgedAccount lists what was removed when an owner's data was purged.
type PurgedAccount struct {
	BudgetIDs []string
	LoanIDs   []string
	TodoIDs   []string
}

// AccountStore removes every row owned by one owner.
type AccountStore interface {
	PurgeOwner(ctx context.Context, ownerID string) (*PurgedAccount, error)
}

// Pinger reports store reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
