package store

import (
	"context"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

// ============================================================
// Todos
// ============================================================

func (s *Store) CreateTodo(ctx context.Context, ownerID, name string, completed bool) (*domain.Todo, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateTodo")
	defer span.End()

	row := &todoRow{OwnerID: ownerID, Name: name, Completed: completed}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, s.wrapWrite("CreateTodo", "todo", name, err)
	}
	todo := row.toDomain()
	return &todo, nil
}

// ListTodos returns an owner's todos oldest first.
func (s *Store) ListTodos(ctx context.Context, ownerID string, limit int) ([]domain.Todo, error) {
	ctx, span := tracer.Start(ctx, "Store.ListTodos")
	defer span.End()

	db := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC, id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	var rows []todoRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, s.wrap("ListTodos", err)
	}
	todos := make([]domain.Todo, 0, len(rows))
	for i := range rows {
		todos = append(todos, rows[i].toDomain())
	}
	return todos, nil
}

func (s *Store) UpdateTodo(ctx context.Context, ownerID, id string, patch domain.TodoPatch) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateTodo")
	defer span.End()

	updates := map[string]any{}
	name := ""
	if patch.Name != nil {
		name = *patch.Name
		updates["name"] = name
	}
	if patch.Completed != nil {
		updates["completed"] = *patch.Completed
	}

	res := s.db.WithContext(ctx).Model(&todoRow{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return 0, s.wrapWrite("UpdateTodo", "todo", name, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) DeleteTodo(ctx context.Context, ownerID, id string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteTodo")
	defer span.End()

	res := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&todoRow{})
	if res.Error != nil {
		return 0, s.wrap("DeleteTodo", res.Error)
	}
	return res.RowsAffected, nil
}
