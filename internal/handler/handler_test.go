package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"procurement/internal/database"
	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/service"
)

var testSecret = []byte("handler-secret")

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	Field      string          `json:"field"`
}

type testAPI struct {
	router *gin.Engine
	repo   repository.ApprovalRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection("file::memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, database.Seed(context.Background(), db, 0, 1))

	approvals := repository.NewApprovalRepository(db)
	audits := repository.NewAuditRepository(db)
	users := repository.NewUserRepository(db)

	auth := middleware.NewAuth(testSecret)
	approvalSvc := service.NewApprovalService(approvals, audits, repository.NewTransactionManager(db))

	r := gin.New()
	api := r.Group("/")
	NewUserHandler(service.NewUserService(users, audits, testSecret, time.Hour), auth, time.Hour, false).RegisterRoutes(api)
	NewApprovalHandler(approvalSvc, auth, middleware.NewRateLimiter(0, 0), 10).RegisterRoutes(api)
	NewAuditHandler(service.NewAuditService(audits), auth).RegisterRoutes(api)

	return &testAPI{router: r, repo: approvals}
}

func (a *testAPI) add(t *testing.T, id string, typ model.RequestType, risk model.RiskLevel, amount string, submitted time.Time) {
	t.Helper()
	require.NoError(t, a.repo.Create(context.Background(), &model.ApprovalRequest{
		ID: id, Type: typ, RequestorName: "R", Amount: decimal.RequireFromString(amount),
		Currency: "USD", RiskLevel: risk, DateSubmitted: submitted, Department: "Finance",
	}))
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-" + role, "name": role, "role": role}).SignedString(testSecret)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) call(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t)

	w, env := api.call(t, http.MethodPost, "/login", "", map[string]string{"email": "approver@example.org", "password": "changeme"})
	require.Equal(t, http.StatusOK, w.Code)
	var tok service.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.Token)

	w, env = api.call(t, http.MethodGet, "/me", tok.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Username    string   `json:"username"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "approver", me.Username)
	assert.Contains(t, me.Permissions, middleware.PermApprovalsDecide)

	w, _ = api.call(t, http.MethodPost, "/login", "", map[string]string{"email": "approver@example.org", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListApprovals_Filters(t *testing.T) {
	api := newTestAPI(t)
	day := time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC)
	api.add(t, "a", model.RequestTypePayment, model.RiskHigh, "10", day)
	api.add(t, "b", model.RequestTypePayment, model.RiskLow, "500", day.AddDate(0, 0, -1))
	api.add(t, "c", model.RequestTypeRequisition, model.RiskHigh, "900", day.AddDate(0, 0, -5))
	token := bearer(t, model.RoleViewer)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"a", "b", "c"}},
		{"type", "?type=payment", []string{"a", "b"}},
		{"risk", "?risk_level=high", []string{"a", "c"}},
		{"date only upper bound covers the day", "?date_to=2024-04-10&date_from=2024-04-10", []string{"a"}},
		{"rfc3339 bounds", "?date_from=2024-04-05T00:00:00Z&date_to=2024-04-09T23:59:59Z", []string{"b", "c"}},
		{"amount", "?amount_min=10&amount_max=500", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := api.call(t, http.MethodGet, "/api/approvals"+tt.query, token, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var page model.ApprovalPage
			require.NoError(t, json.Unmarshal(env.Data, &page))

			ids := make([]string, 0, len(page.Records))
			for _, r := range page.Records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, int64(len(tt.want)), page.Total)
			assert.Equal(t, 1, page.TotalPages)
			assert.Equal(t, 10, page.PageSize)
		})
	}
}

func TestListApprovals_BadInput(t *testing.T) {
	api := newTestAPI(t)
	token := bearer(t, model.RoleViewer)

	tests := []struct {
		query string
		field string
	}{
		{"?date_from=yesterday", "date_from"},
		{"?amount_min=ten", "amount_min"},
		{"?amount_min=100&amount_max=1", "amount_min"},
		{"?date_from=2024-05-01&date_to=2024-04-01", "date_from"},
		{"?type=invoice", "type"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w, env := api.call(t, http.MethodGet, "/api/approvals"+tt.query, token, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", env.Code)
			assert.Equal(t, tt.field, env.Field)
		})
	}
}

func TestDecisionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	now := time.Now().UTC()
	api.add(t, "x1", model.RequestTypePurchaseOrder, model.RiskMedium, "75", now)
	api.add(t, "x2", model.RequestTypePurchaseOrder, model.RiskMedium, "75", now)
	approver := bearer(t, model.RoleApprover)

	w, _ := api.call(t, http.MethodPut, "/api/approvals/x1/approve", bearer(t, model.RoleViewer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := api.call(t, http.MethodPut, "/api/approvals/x1/approve", approver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got model.ApprovalRequest
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, "u-approver", got.DecisionActor)

	w, env = api.call(t, http.MethodPut, "/api/approvals/x1/reject", approver, service.RejectRequestDTO{Reason: "late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", env.Code)

	w, env = api.call(t, http.MethodPut, "/api/approvals/x2/reject", approver, service.RejectRequestDTO{Reason: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "reason", env.Field)

	w, env = api.call(t, http.MethodPut, "/api/approvals/nope/approve", approver, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)

	w, env = api.call(t, http.MethodGet, "/api/approvals/stats", approver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.ApprovalStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.PurchaseOrders)
}

func TestBulkApproveEndpoint(t *testing.T) {
	api := newTestAPI(t)
	now := time.Now().UTC()
	for _, id := range []string{"b1", "b2", "b3"} {
		api.add(t, id, model.RequestTypeRequisition, model.RiskLow, "1", now)
	}
	admin := bearer(t, model.RoleAdmin)

	_, _ = api.call(t, http.MethodPut, "/api/approvals/b2/approve", admin, nil)

	w, env := api.call(t, http.MethodPost, "/api/approvals/bulk-approve", admin, service.BulkApproveRequestDTO{IDs: []string{"b1", "b2", "b3", "b1"}})
	require.Equal(t, http.StatusOK, w.Code)
	var res model.BulkApproveResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Succeeded, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "b2", res.Failed[0].ID)
	assert.Equal(t, "INVALID_STATE", res.Failed[0].Code)

	w, env = api.call(t, http.MethodPost, "/api/approvals/bulk-approve", admin, service.BulkApproveRequestDTO{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ids", env.Field)

	w, env = api.call(t, http.MethodGet, "/api/audit-logs?entity_id=b1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	assert.Equal(t, int64(1), logs.Total)

	w, _ = api.call(t, http.MethodGet, "/api/audit-logs", bearer(t, model.RoleApprover), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
