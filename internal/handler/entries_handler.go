package handler

import (
	"fmt"
	"net/http"

	"github.com/boddenberg/finance-tracker-go/internal/action"
	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Budgets & Loans Handlers
// ============================================================

type entryRequest struct {
	Name       string           `json:"name"`
	TotalQuota *decimal.Decimal `json:"totalQuota,omitempty"`
	TotalDebt  *decimal.Decimal `json:"totalDebt,omitempty"`
	BgColor    string           `json:"bgColor"`
	IsAgainst  bool             `json:"isAgainst"`
}

func (req entryRequest) input(kind domain.Kind) (domain.EntryInput, error) {
	capacity := req.TotalQuota
	if kind == domain.KindLoan {
		capacity = req.TotalDebt
	}
	if capacity == nil {
		return domain.EntryInput{}, &domain.ErrValidation{Field: kind.CapacityField(), Message: "required"}
	}
	return domain.EntryInput{
		Name:      req.Name,
		Capacity:  *capacity,
		BgColor:   req.BgColor,
		IsAgainst: req.IsAgainst,
	}, nil
}

func listEntriesHandler(kind domain.Kind, queries *service.Queries, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/"+string(kind.Resource()))
		defer span.End()

		entries, err := queries.ListEntries(ctx, kind, OwnerIDFromContext(ctx), parseLimit(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func getEntryHandler(kind domain.Kind, queries *service.Queries, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/"+string(kind.Resource())+"/{id}")
		defer span.End()

		entry, err := queries.GetEntry(ctx, kind, chi.URLParam(r, "id"), OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func createEntryHandler(kind domain.Kind, facade *action.Facade, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/"+string(kind.Resource()))
		defer span.End()

		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		in, err := req.input(kind)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeEnvelope(w, facade.CreateEntry(ctx, kind, OwnerIDFromContext(ctx), in))
	}
}

func updateEntryHandler(kind domain.Kind, facade *action.Facade, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/"+string(kind.Resource())+"/{id}")
		defer span.End()

		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		in, err := req.input(kind)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeEnvelope(w, facade.UpdateEntry(ctx, kind, chi.URLParam(r, "id"), OwnerIDFromContext(ctx), in))
	}
}

func deleteEntryHandler(kind domain.Kind, facade *action.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/"+string(kind.Resource())+"/{id}")
		defer span.End()

		writeEnvelope(w, facade.DeleteEntry(ctx, kind, chi.URLParam(r, "id"), OwnerIDFromContext(ctx)))
	}
}

// ============================================================
// Expenses & Installments Handlers
// ============================================================

type itemRequest struct {
	Name   string           `json:"name"`
	Amount *decimal.Decimal `json:"amount"`
}

type itemsUpdateRequest struct {
	Items []struct {
		ID     string           `json:"id"`
		Name   string           `json:"name"`
		Amount *decimal.Decimal `json:"amount"`
	} `json:"items"`
}

// rows converts the batch, rejecting any row without an amount.
func (req itemsUpdateRequest) rows() ([]domain.ItemUpdate, error) {
	rows := make([]domain.ItemUpdate, 0, len(req.Items))
	for i, it := range req.Items {
		if it.Amount == nil {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("items[%d].amount", i), Message: "required"}
		}
		rows = append(rows, domain.ItemUpdate{ID: it.ID, Name: it.Name, Amount: *it.Amount})
	}
	return rows, nil
}

type moveItemsRequest struct {
	NewParentID string   `json:"newParentId"`
	IDs         []string `json:"ids"`
}

func listItemsHandler(kind domain.Kind, queries *service.Queries, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/"+string(kind.Resource())+"/{id}/items")
		defer span.End()

		items, err := queries.ListItems(ctx, kind, chi.URLParam(r, "id"), OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func createItemHandler(kind domain.Kind, facade *action.Facade, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/"+string(kind.Resource())+"/{id}/items")
		defer span.End()

		var req itemRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if req.Amount == nil {
			handleServiceError(w, &domain.ErrValidation{Field: "amount", Message: "required"}, logger)
			return
		}
		in := domain.ItemInput{Name: req.Name, Amount: *req.Amount}
		writeEnvelope(w, facade.CreateItem(ctx, kind, chi.URLParam(r, "id"), OwnerIDFromContext(ctx), in))
	}
}

func updateItemsHandler(kind domain.Kind, facade *action.Facade, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/"+string(kind.Resource())+"/{id}/items")
		defer span.End()

		var req itemsUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		rows, err := req.rows()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeEnvelope(w, facade.UpdateItems(ctx, kind, chi.URLParam(r, "id"), OwnerIDFromContext(ctx), rows))
	}
}

func moveItemsHandler(kind domain.Kind, facade *action.Facade, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/"+string(kind.Resource())+"/{id}/items/move")
		defer span.End()

		var req moveItemsRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeEnvelope(w, facade.MoveItems(ctx, kind, chi.URLParam(r, "id"), req.NewParentID, OwnerIDFromContext(ctx), req.IDs))
	}
}

func deleteItemHandler(kind domain.Kind, facade *action.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/"+string(kind.Resource())+"/{id}/items/{itemId}")
		defer span.End()

		writeEnvelope(w, facade.DeleteItem(ctx, kind, chi.URLParam(r, "itemId"), chi.URLParam(r, "id"), OwnerIDFromContext(ctx)))
	}
}
