// Package action is the façade between the HTTP surface and the mutation
// operations. Every call returns an Envelope; errors and panics never cross
// this boundary.
package action

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/service"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("action")

// Envelope is the user-facing result of a mutation. Reason is only set for
// name collisions. ID is set on create success.
type Envelope struct {
	Error   bool     `json:"error"`
	Message string   `json:"message"`
	Reason  string   `json:"reason,omitempty"`
	ID      string   `json:"id,omitempty"`
	IDs     []string `json:"ids,omitempty"`

	// Status is the HTTP status the envelope should be served with.
	Status int `json:"-"`
}

// Facade maps mutation results to envelopes.
type Facade struct {
	entries  *service.EntryService
	todos    *service.TodoService
	accounts *service.AccountService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewFacade(entries *service.EntryService, todos *service.TodoService, accounts *service.AccountService, metrics *observability.Metrics, logger *zap.Logger) *Facade {
	return &Facade{entries: entries, todos: todos, accounts: accounts, metrics: metrics, logger: logger}
}

// ============================================================
// Entries
// ============================================================

func (f *Facade) CreateEntry(ctx context.Context, kind domain.Kind, ownerID string, in domain.EntryInput) Envelope {
	return f.run(ctx, "create_"+string(kind), http.StatusCreated, messagesFor(kind, opCreate), func(ctx context.Context) (result, error) {
		e, err := f.entries.CreateEntry(ctx, kind, ownerID, in)
		if err != nil {
			return result{}, err
		}
		return result{id: e.EntryID()}, nil
	})
}

func (f *Facade) UpdateEntry(ctx context.Context, kind domain.Kind, id, ownerID string, in domain.EntryInput) Envelope {
	return f.run(ctx, "update_"+string(kind), http.StatusOK, messagesFor(kind, opUpdate), func(ctx context.Context) (result, error) {
		return result{id: id}, f.entries.UpdateEntry(ctx, kind, id, ownerID, in)
	})
}

func (f *Facade) DeleteEntry(ctx context.Context, kind domain.Kind, id, ownerID string) Envelope {
	return f.run(ctx, "delete_"+string(kind), http.StatusOK, messagesFor(kind, opDelete), func(ctx context.Context) (result, error) {
		return result{}, f.entries.DeleteEntry(ctx, kind, id, ownerID)
	})
}

// ============================================================
// Items
// ============================================================

func (f *Facade) CreateItem(ctx context.Context, kind domain.Kind, parentID, ownerID string, in domain.ItemInput) Envelope {
	return f.run(ctx, "create_"+kind.ItemLabel(), http.StatusCreated, messagesFor(kind, opCreateItem), func(ctx context.Context) (result, error) {
		item, err := f.entries.CreateItem(ctx, kind, parentID, ownerID, in)
		if err != nil {
			return result{}, err
		}
		return result{id: item.ID}, nil
	})
}

func (f *Facade) DeleteItem(ctx context.Context, kind domain.Kind, id, parentID, ownerID string) Envelope {
	return f.run(ctx, "delete_"+kind.ItemLabel(), http.StatusOK, messagesFor(kind, opDeleteItem), func(ctx context.Context) (result, error) {
		return result{}, f.entries.DeleteItem(ctx, kind, id, parentID, ownerID)
	})
}

func (f *Facade) UpdateItems(ctx context.Context, kind domain.Kind, parentID, ownerID string, items []domain.ItemUpdate) Envelope {
	return f.run(ctx, "update_"+kind.ItemLabel()+"s", http.StatusOK, messagesFor(kind, opUpdateItems), func(ctx context.Context) (result, error) {
		ids, err := f.entries.UpdateItems(ctx, kind, parentID, ownerID, items)
		return result{ids: ids}, err
	})
}

func (f *Facade) MoveItems(ctx context.Context, kind domain.Kind, oldParentID, newParentID, ownerID string, ids []string) Envelope {
	return f.run(ctx, "move_"+kind.ItemLabel()+"s", http.StatusOK, messagesFor(kind, opMoveItems), func(ctx context.Context) (result, error) {
		moved, err := f.entries.MoveItems(ctx, kind, oldParentID, newParentID, ownerID, ids)
		return result{ids: moved}, err
	})
}

// ============================================================
// Todos
// ============================================================

func (f *Facade) CreateTodo(ctx context.Context, ownerID, name string, completed bool) Envelope {
	return f.run(ctx, "create_todo", http.StatusCreated, todoMessages[opCreate], func(ctx context.Context) (result, error) {
		todo, err := f.todos.Create(ctx, ownerID, name, completed)
		if err != nil {
			return result{}, err
		}
		return result{id: todo.ID}, nil
	})
}

func (f *Facade) UpdateTodo(ctx context.Context, ownerID, id string, patch domain.TodoPatch) Envelope {
	return f.run(ctx, "update_todo", http.StatusOK, todoMessages[opUpdate], func(ctx context.Context) (result, error) {
		return result{id: id}, f.todos.Update(ctx, ownerID, id, patch)
	})
}

func (f *Facade) DeleteTodo(ctx context.Context, ownerID, id string) Envelope {
	return f.run(ctx, "delete_todo", http.StatusOK, todoMessages[opDelete], func(ctx context.Context) (result, error) {
		return result{}, f.todos.Delete(ctx, ownerID, id)
	})
}

// ============================================================
// Accounts
// ============================================================

func (f *Facade) DeleteAccount(ctx context.Context, ownerID string) Envelope {
	return f.run(ctx, "delete_account", http.StatusOK, accountMessages, func(ctx context.Context) (result, error) {
		_, err := f.accounts.DeleteAccount(ctx, ownerID)
		return result{}, err
	})
}

// ============================================================
// Envelope mapping
// ============================================================

type result struct {
	id  string
	ids []string
}

// run calls fn and converts its outcome into an Envelope. A panic in fn is
// recovered and reported as a generic failure.
func (f *Facade) run(ctx context.Context, op string, okStatus int, msgs messages, fn func(context.Context) (result, error)) (env Envelope) {
	ctx, span := tracer.Start(ctx, "Facade."+op)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Error("action panicked",
				zap.String("operation", op),
				zap.String("panic", fmt.Sprint(rec)),
			)
			f.metrics.IncrOperation(op, "error")
			env = Envelope{Error: true, Message: msgs.failure, Status: http.StatusInternalServerError}
		}
	}()

	res, err := fn(ctx)
	if err != nil {
		env = f.failure(op, msgs, err)
		span.RecordError(err)
		return env
	}

	f.metrics.IncrOperation(op, "success")
	return Envelope{Message: msgs.success, ID: res.id, IDs: res.ids, Status: okStatus}
}

func (f *Facade) failure(op string, msgs messages, err error) Envelope {
	env := Envelope{Error: true, Message: msgs.failure, Status: StatusFor(err)}

	var notUnique *domain.ErrNotUnique
	if errors.As(err, &notUnique) {
		env.Reason = notUniqueReason(notUnique)
	}

	outcome := "failure"
	if env.Status >= http.StatusInternalServerError {
		outcome = "error"
		f.logger.Error("action failed", zap.String("operation", op), zap.Error(err))
	} else {
		f.logger.Debug("action rejected", zap.String("operation", op), zap.Error(err))
	}
	f.metrics.IncrOperation(op, outcome)
	return env
}

// StatusFor maps a domain error to an HTTP status. Not-found and not-owned
// share a status.
func StatusFor(err error) int {
	var (
		unauthorized *domain.ErrUnauthorized
		validation   *domain.ErrValidation
		notFound     *domain.ErrNotFound
		parent       *domain.ErrParentNotFound
		notUnique    *domain.ErrNotUnique
		emptyBatch   *domain.ErrEmptyBatch
		recalc       *domain.ErrRecalculation
		circuitOpen  *domain.ErrCircuitOpen
		external     *domain.ErrExternalService
	)

	switch {
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &parent):
		return http.StatusNotFound
	case errors.As(err, &notUnique):
		return http.StatusConflict
	case errors.As(err, &emptyBatch):
		return http.StatusUnprocessableEntity
	case errors.As(err, &recalc):
		return http.StatusInternalServerError
	case errors.As(err, &circuitOpen), errors.As(err, &external):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
