package handler

import (
	"net/http"

	"github.com/boddenberg/finance-tracker-go/internal/action"
	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Todos Handlers
// ============================================================

type todoRequest struct {
	Name      *string `json:"name"`
	Completed *bool   `json:"completed"`
}

func listTodosHandler(queries *service.Queries, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/todos")
		defer span.End()

		todos, err := queries.ListTodos(ctx, OwnerIDFromContext(ctx), parseLimit(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, todos)
	}
}

func createTodoHandler(facade *action.Facade, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/todos")
		defer span.End()

		var req todoRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var name string
		if req.Name != nil {
			name = *req.Name
		}
		writeEnvelope(w, facade.CreateTodo(ctx, OwnerIDFromContext(ctx), name, req.Completed != nil && *req.Completed))
	}
}

func updateTodoHandler(facade *action.Facade, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/todos/{id}")
		defer span.End()

		var req todoRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		patch := domain.TodoPatch{Name: req.Name, Completed: req.Completed}
		writeEnvelope(w, facade.UpdateTodo(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "id"), patch))
	}
}

func deleteTodoHandler(facade *action.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/todos/{id}")
		defer span.End()

		writeEnvelope(w, facade.DeleteTodo(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "id")))
	}
}
