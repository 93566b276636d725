package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/action"
	"github.com/boddenberg/finance-tracker-go/internal/handler"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-go/internal/infra/store"
	"github.com/boddenberg/finance-tracker-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	testSecret        = "test-secret"
	testIssuer        = "https://id.example.test"
	testWebhookSecret = "whsec-test"
)

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Metrics: observability.NewMetrics(), Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthz_StoreDown(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Store: downStore{}, Logger: zap.NewNop()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("expected the raw store error to stay out of the response")
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Metrics: observability.NewMetrics(), Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Metrics: observability.NewMetrics(), Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// ============================================================
// Full stack over an in-memory store
// ============================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	s, err := store.Open(store.Config{Driver: "sqlite", DSN: store.MemoryDSN(t.Name())}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	metrics := observability.NewMetrics()
	c := cache.New(cache.NewMemoryBackend(time.Minute), time.Minute, metrics, logger)
	t.Cleanup(func() { _ = c.Close() })

	queries := service.NewQueries(s, s, c)
	engine := service.NewEngine(s, c, metrics, logger)
	entries := service.NewEntryService(s, engine, queries, c, metrics, logger)
	todos := service.NewTodoService(s, queries, c, logger)
	accounts := service.NewAccountService(s, c, logger)

	return handler.NewRouter(handler.Deps{
		Facade:        action.NewFacade(entries, todos, accounts, metrics, logger),
		Queries:       queries,
		Overview:      service.NewOverviewService(queries, metrics, logger),
		Export:        service.NewExportService(queries, logger),
		Store:         s,
		Verifier:      handler.NewTokenVerifier(testSecret, testIssuer),
		WebhookSecret: testWebhookSecret,
		Bulkhead:      resilience.NewBulkhead(8),
		Metrics:       metrics,
		Logger:        logger,
	})
}

func token(t *testing.T, owner string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		Issuer:    testIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func do(t *testing.T, router http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, owner))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) action.Envelope {
	t.Helper()
	var env action.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func TestBudgetFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/v1/budgets", "u1", map[string]any{
		"name": "groceries", "totalQuota": "250.00", "bgColor": "lime",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create budget: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	budgetID := decodeEnvelope(t, rec).ID

	rec = do(t, router, http.MethodPost, "/v1/budgets/"+budgetID+"/items", "u1", map[string]any{
		"name": "Market", "amount": 90.5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/v1/budgets/"+budgetID, "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get budget: expected 200, got %d", rec.Code)
	}
	var got struct {
		Name           string `json:"name"`
		ExpensesTotal  string `json:"expensesTotal"`
		AvailableQuota string `json:"availableQuota"`
		Expenses       []any  `json:"expenses"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Groceries" || got.ExpensesTotal != "90.5" || got.AvailableQuota != "159.5" || len(got.Expenses) != 1 {
		t.Errorf("unexpected budget: %+v", got)
	}

	rec = do(t, router, http.MethodGet, "/v1/budgets/"+budgetID, "u2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another owner, got %d", rec.Code)
	}
}

func TestCreateBudget_WithoutTokenIsUnauthorized(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/v1/budgets", "", map[string]any{
		"name": "Rent", "totalQuota": 1000, "bgColor": "sky",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Error || env.Message != "Error creating budget" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestInvalidToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/loans", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestCreateLoan_DuplicateNameHasReason(t *testing.T) {
	router := newTestRouter(t)
	body := map[string]any{"name": "Car", "totalDebt": 9000, "bgColor": "pink", "isAgainst": true}

	if rec := do(t, router, http.MethodPost, "/v1/loans", "u1", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create: %d", rec.Code)
	}
	rec := do(t, router, http.MethodPost, "/v1/loans", "u1", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Reason == "" {
		t.Errorf("expected a reason, got %+v", env)
	}
}

func TestCreateEntry_MissingCapacity(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/v1/loans", "u1", map[string]any{
		"name": "Car", "totalQuota": 10, "bgColor": "pink",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when totalDebt is missing, got %d", rec.Code)
	}
}

func TestItems_MissingAmount(t *testing.T) {
	router := newTestRouter(t)

	a := decodeEnvelope(t, do(t, router, http.MethodPost, "/v1/budgets", "u1", map[string]any{"name": "Budget A", "totalQuota": 200, "bgColor": "sky"})).ID

	rec := do(t, router, http.MethodPost, "/v1/budgets/"+a+"/items", "u1", map[string]any{"name": "Shoes"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("create: expected 400 when amount is missing, got %d", rec.Code)
	}

	item := decodeEnvelope(t, do(t, router, http.MethodPost, "/v1/budgets/"+a+"/items", "u1", map[string]any{"name": "Shoes", "amount": 50})).ID
	rec = do(t, router, http.MethodPut, "/v1/budgets/"+a+"/items", "u1", map[string]any{
		"items": []map[string]any{{"id": item, "name": "Boots"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("update: expected 400 when amount is missing, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/v1/budgets/"+a, "u1", nil)
	var budget struct {
		ExpensesTotal string `json:"expensesTotal"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&budget); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if budget.ExpensesTotal != "50" {
		t.Errorf("expected totals untouched by rejected requests, got %q", budget.ExpensesTotal)
	}
}

func TestListItems_EmptyIsArray(t *testing.T) {
	router := newTestRouter(t)

	a := decodeEnvelope(t, do(t, router, http.MethodPost, "/v1/budgets", "u1", map[string]any{"name": "Budget A", "totalQuota": 200, "bgColor": "sky"})).ID

	// Cold read, then cached read.
	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodGet, "/v1/budgets/"+a+"/items", "u1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("read %d: expected 200, got %d", i, rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("read %d: expected [], got %s", i, body)
		}
	}
}

func TestMoveItems_Endpoint(t *testing.T) {
	router := newTestRouter(t)

	a := decodeEnvelope(t, do(t, router, http.MethodPost, "/v1/budgets", "u1", map[string]any{"name": "Budget A", "totalQuota": 200, "bgColor": "sky"})).ID
	b := decodeEnvelope(t, do(t, router, http.MethodPost, "/v1/budgets", "u1", map[string]any{"name": "Budget B", "totalQuota": 300, "bgColor": "sky"})).ID
	item := decodeEnvelope(t, do(t, router, http.MethodPost, "/v1/budgets/"+a+"/items", "u1", map[string]any{"name": "Shoes", "amount": 50})).ID

	rec := do(t, router, http.MethodPost, "/v1/budgets/"+a+"/items/move", "u1", map[string]any{"newParentId": b, "ids": []string{item}})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/v1/budgets/"+b+"/items", "u1", nil)
	var items []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != item {
		t.Errorf("expected the expense under B, got %+v", items)
	}

	rec = do(t, router, http.MethodPost, "/v1/budgets/"+a+"/items/move", "u1", map[string]any{"newParentId": b, "ids": []string{}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for an empty batch, got %d", rec.Code)
	}
}

func TestTodosAndOverview(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/v1/todos", "u1", map[string]any{"name": "Call bank"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create todo: %d (%s)", rec.Code, rec.Body.String())
	}
	id := decodeEnvelope(t, rec).ID

	if rec := do(t, router, http.MethodPatch, "/v1/todos/"+id, "u1", map[string]any{"completed": true}); rec.Code != http.StatusOK {
		t.Fatalf("update todo: %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/v1/overview", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview: %d", rec.Code)
	}
	var ov struct {
		Todos     int `json:"todos"`
		OpenTodos int `json:"openTodos"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ov); err != nil {
		t.Fatal(err)
	}
	if ov.Todos != 1 || ov.OpenTodos != 0 {
		t.Errorf("unexpected overview: %+v", ov)
	}
}

func TestExport(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/v1/budgets", "u1", map[string]any{"name": "Books", "totalQuota": 40, "bgColor": "white"})

	rec := do(t, router, http.MethodGet, "/v1/export.xlsx", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("expected a zip container")
	}
}

func TestIdentityWebhook(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/v1/budgets", "u1", map[string]any{"name": "Books", "totalQuota": 40, "bgColor": "white"})

	payload := []byte(`{"type":"user.deleted","data":{"id":"u1"}}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/identity", bytes.NewReader(payload))
	req.Header.Set(handler.SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad signature, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/identity", bytes.NewReader(payload))
	req.Header.Set(handler.SignatureHeader, "sha256="+handler.Sign(testWebhookSecret, payload))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/v1/budgets", "u1", nil)
	var list []any
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected purged budgets, got %d", len(list))
	}
}

func TestCacheMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodGet, "/v1/todos", "u1", nil)
	do(t, router, http.MethodGet, "/v1/todos", "u1", nil)

	rec := do(t, router, http.MethodGet, "/v1/metrics/cache", "", nil)
	var stats struct {
		Queries []struct {
			Name string  `json:"name"`
			Hits float64 `json:"hits"`
		} `json:"queries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	var hits float64
	for _, q := range stats.Queries {
		if q.Name == "list_todos" {
			hits = q.Hits
		}
	}
	if hits != 1 {
		t.Errorf("expected 1 list_todos hit, got %v (%+v)", hits, stats)
	}
}
