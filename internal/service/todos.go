package service

import (
	"context"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var todoTracer = otel.Tracer("service/todos")

// TodoService handles the owner's todo list.
type TodoService struct {
	store   port.TodoStore
	queries *Queries
	cache   *cache.Cache
	logger  *zap.Logger
}

func NewTodoService(store port.TodoStore, queries *Queries, c *cache.Cache, logger *zap.Logger) *TodoService {
	return &TodoService{store: store, queries: queries, cache: c, logger: logger}
}

func (s *TodoService) List(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	ctx, span := todoTracer.Start(ctx, "TodoService.List")
	defer span.End()

	return s.queries.ListTodos(ctx, ownerID, 0)
}

func (s *TodoService) Create(ctx context.Context, ownerID, name string, completed bool) (*domain.Todo, error) {
	ctx, span := todoTracer.Start(ctx, "TodoService.Create")
	defer span.End()

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	name, err := domain.ValidateTodoName(name)
	if err != nil {
		return nil, err
	}

	todo, err := s.store.CreateTodo(ctx, ownerID, name, completed)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID, todo.ID)
	return todo, nil
}

// Update applies a partial update. At least one field must be set.
func (s *TodoService) Update(ctx context.Context, ownerID, id string, patch domain.TodoPatch) error {
	ctx, span := todoTracer.Start(ctx, "TodoService.Update")
	defer span.End()

	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if patch.Name == nil && patch.Completed == nil {
		return &domain.ErrValidation{Field: "todo", Message: "nothing to update"}
	}
	if patch.Name != nil {
		name, err := domain.ValidateTodoName(*patch.Name)
		if err != nil {
			return err
		}
		patch.Name = &name
	}

	n, err := s.store.UpdateTodo(ctx, ownerID, id, patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "todo", ID: id}
	}
	s.invalidate(ctx, ownerID, id)
	return nil
}

func (s *TodoService) Delete(ctx context.Context, ownerID, id string) error {
	ctx, span := todoTracer.Start(ctx, "TodoService.Delete")
	defer span.End()

	if err := requireOwner(ownerID); err != nil {
		return err
	}
	n, err := s.store.DeleteTodo(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "todo", ID: id}
	}
	s.invalidate(ctx, ownerID, id)
	return nil
}

func (s *TodoService) invalidate(ctx context.Context, ownerID, id string) {
	tags := cache.EntryTags(domain.ResourceTodos, ownerID, id)
	if err := s.cache.Invalidate(ctx, tags...); err != nil {
		s.logger.Error("cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}
