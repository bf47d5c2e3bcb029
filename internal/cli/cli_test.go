package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"procurement/internal/database"
	"procurement/internal/handler"
	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/internal/ui"
)

type testEnv struct {
	url       string
	tokenFile string
	repo      repository.ApprovalRepository
}

func newTestEnv(t *testing.T) *testEnv {
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

	secret := []byte("cli-secret")
	approvals := repository.NewApprovalRepository(db)
	audits := repository.NewAuditRepository(db)
	auth := middleware.NewAuth(secret)

	r := gin.New()
	api := r.Group("")
	handler.NewUserHandler(service.NewUserService(repository.NewUserRepository(db), audits, secret, time.Hour), auth, time.Hour, false).RegisterRoutes(api)
	handler.NewApprovalHandler(service.NewApprovalService(approvals, audits, repository.NewTransactionManager(db)), auth, middleware.NewRateLimiter(0, 0), 10).RegisterRoutes(api)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	for i, typ := range []model.RequestType{model.RequestTypePayment, model.RequestTypePayment, model.RequestTypeRequisition} {
		require.NoError(t, approvals.Create(context.Background(), &model.ApprovalRequest{
			ID:            []string{"pay-1", "pay-2", "req-1"}[i],
			Type:          typ,
			RequestorName: "Lena Petrova",
			Amount:        decimal.NewFromInt(int64(100 * (i + 1))),
			Currency:      "EUR",
			Description:   "Warehouse rent",
			RiskLevel:     model.RiskMedium,
			DateSubmitted: now.Add(-time.Duration(i) * time.Hour),
		}))
	}

	return &testEnv{url: srv.URL, tokenFile: filepath.Join(t.TempDir(), "token"), repo: approvals}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(&out)
	cmd.SetArgs(append([]string{"--server", e.url, "--token-file", e.tokenFile, "--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_LoginListAndDecide(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "list")
	require.Error(t, err, "list needs a token")

	out, err := env.run(t, "login", "--email", "approver@example.org", "--password", "changeme")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as approver@example.org")
	saved, err := os.ReadFile(env.tokenFile)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(saved)))

	out, err = env.run(t, "list", "--type", "payment")
	require.NoError(t, err)
	assert.Contains(t, out, "pay-1")
	assert.Contains(t, out, "pay-2")
	assert.NotContains(t, out, "req-1")
	assert.Contains(t, out, "Page 1 of 1, 2 total")

	out, err = env.run(t, "stats")
	require.NoError(t, err)
	assert.Regexp(t, `Payment\s+2`, out)
	assert.Regexp(t, `Requisition\s+1`, out)

	out, err = env.run(t, "approve", "pay-1", "--comment", "ok")
	require.NoError(t, err)
	assert.Contains(t, out, "pay-1 is now approved")

	_, err = env.run(t, "reject", "pay-1", "--reason", "late")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")

	_, err = env.run(t, "reject", "pay-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reason")

	out, err = env.run(t, "bulk-approve", "pay-1", "pay-2", "req-1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 3 approved; 1 failed")
	assert.Contains(t, out, "pay-1:")

	got, err := env.repo.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
}

func TestCLI_ListPageWithSearch(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "login", "--email", "viewer@example.org", "--password", "changeme")
	require.NoError(t, err)

	out, err := env.run(t, "list", "--page-size", "1", "--page", "2", "--search", "Lena")
	require.NoError(t, err)
	assert.Contains(t, out, "Page 2 of 3, 3 total, 1 shown on this page")
	assert.Contains(t, out, "pay-2")
	assert.NotContains(t, out, "pay-1")
}

func TestCLI_BulkApproveCountsDistinctIDs(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "login", "--email", "approver@example.org", "--password", "changeme")
	require.NoError(t, err)

	out, err := env.run(t, "bulk-approve", "pay-1", "pay-1", "req-1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 2 approved")
}

func TestCLI_ListRejectsBadFlags(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "list", "--from", "last week", "--token", "unused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from")

	_, err = env.run(t, "list", "--min-amount", "ten", "--token", "unused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min-amount")
}

func TestParseDate_BareUpperBoundCoversDay(t *testing.T) {
	to, err := parseDate("2024-04-10", "to", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 23, 59, 59, 999999999, time.UTC), *to)

	from, err := parseDate("2024-04-10", "from", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), *from)

	none, err := parseDate(" ", "from", false)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "\x1b[31mhigh\x1b[0m", paint(ui.ColorRed, "high", true))
	assert.Equal(t, "high", paint(ui.ColorRed, "high", false))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))

	var buf bytes.Buffer
	s := ui.NewState(10)
	require.NoError(t, renderPage(&buf, s, false))
	assert.Contains(t, buf.String(), "No approval requests.")

	buf.Reset()
	s.Filter.RiskLevel = model.RiskHigh
	require.NoError(t, renderPage(&buf, s, false))
	assert.Contains(t, buf.String(), "No approval requests match the active filters.")

	buf.Reset()
	s.Filter = model.ApprovalFilter{}
	s.Search = "lena"
	require.NoError(t, renderPage(&buf, s, false))
	assert.Contains(t, buf.String(), "No approval requests match the active filters.")
}
