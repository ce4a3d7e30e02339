package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coins-catcher/internal/config"
	"coins-catcher/internal/model"
	"coins-catcher/internal/repository/memstore"
	"coins-catcher/internal/service"
)

const (
	testSecret = "test-secret"
	testIssuer = "coins-auth"
)

type testServer struct {
	srv   *Server
	store *memstore.Store
	svc   *service.Services
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{AllowOrigins: "*"},
		Auth:     config.AuthConfig{JWTSecret: testSecret, Issuer: testIssuer},
		Database: config.DatabaseConfig{Driver: "memory"},
		Admin:    config.AdminConfig{BootstrapIDs: []string{"admin"}},
		Rewards: config.RewardsConfig{
			Timezone:      "Asia/Karachi",
			StartingBonus: 100,
			ReferralBonus: 500,
			Hourly:        config.TimedReward{Amount: 50, Cooldown: time.Hour},
			Faucet:        config.TimedReward{Amount: 10, Cooldown: 5 * time.Minute},
			DailySchedule: []int64{15, 30, 45, 60, 75, 90, 120},
			Game:          config.GameConfig{PointsPerCoin: 10, MaxPointsPerSession: 5000},
		},
		Wallet:     config.WalletConfig{MinConvertCoins: 1000},
		Withdrawal: config.WithdrawalConfig{MinCashPKR: 100},
	}
	if mutate != nil {
		mutate(cfg)
	}

	store := memstore.New()
	svc, err := service.New(store, cfg, nil)
	require.NoError(t, err)
	srv := New(cfg, svc, store)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, store: store, svc: svc}
}

func token(t *testing.T, accountID string) string {
	t.Helper()
	tok, err := IssueToken([]byte(testSecret), testIssuer, accountID, false, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, tok string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (ts *testServer) register(t *testing.T, accountID string) string {
	t.Helper()
	tok := token(t, accountID)
	status, body := ts.do(t, http.MethodPost, "/api/v1/accounts", tok, map[string]string{
		"display_name": accountID,
		"email":        accountID + "@example.com",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return tok
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, nil)

	expired, err := IssueToken([]byte(testSecret), testIssuer, "alice", false, -time.Minute)
	require.NoError(t, err)
	wrongSecret, err := IssueToken([]byte("other"), testIssuer, "alice", false, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := IssueToken([]byte(testSecret), "someone-else", "alice", false, time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken([]byte(testSecret), testIssuer, "", false, time.Hour)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "alice",
		Issuer:  testIssuer,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"no subject", noSubject},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodGet, "/api/v1/me", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRegisterAndMe(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := ts.do(t, http.MethodGet, "/api/v1/me", token(t, "alice"), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])

	tok := ts.register(t, "alice")
	status, body = ts.do(t, http.MethodGet, "/api/v1/me", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["id"])
	assert.EqualValues(t, 100, body["coins"])

	status, body = ts.do(t, http.MethodPost, "/api/v1/accounts", tok, map[string]string{"display_name": "again"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_registered", body["code"])
}

func TestClaim_CooldownReportsRemaining(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.register(t, "alice")

	status, body := ts.do(t, http.MethodPost, "/api/v1/me/rewards/hourly/claim", tok, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 50, body["awarded"])
	assert.EqualValues(t, 150, body["coins"])

	status, body = ts.do(t, http.MethodPost, "/api/v1/me/rewards/hourly/claim", tok, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ineligible", body["code"])
	remaining, ok := body["ms_remaining"].(float64)
	require.True(t, ok)
	assert.InDelta(t, float64(time.Hour.Milliseconds()), remaining, float64(time.Minute.Milliseconds()))

	status, body = ts.do(t, http.MethodPost, "/api/v1/me/rewards/jackpot/claim", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "unknown_reward", body["code"])
}

func TestWithdrawal_InsufficientBalance(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.register(t, "alice")
	pm, acct := "easypaisa", "03001234567"
	_, err := ts.svc.Accounts.UpdateProfile(context.Background(), model.Session{AccountID: "alice"}, service.ProfileUpdate{
		PaymentMethod:  &pm,
		PaymentAccount: &acct,
	})
	require.NoError(t, err)

	status, body := ts.do(t, http.MethodPost, "/api/v1/me/withdrawals", tok, map[string]any{
		"kind":       "cash",
		"amount_pkr": decimal.NewFromInt(500),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "insufficient_balance", body["code"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/me/withdrawals", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["requests"])
}

func TestAdminRoutes_RequireStoredAdminFlag(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.register(t, "admin")
	alice := ts.register(t, "alice")

	// The token claim alone grants nothing.
	claimsAdmin, err := IssueToken([]byte(testSecret), testIssuer, "alice", true, time.Hour)
	require.NoError(t, err)
	status, body := ts.do(t, http.MethodPost, "/api/v1/admin/accounts/alice/bonus", claimsAdmin, map[string]any{"amount": 500})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "permission_denied", body["code"])

	status, body = ts.do(t, http.MethodPost, "/api/v1/admin/accounts/alice/block", admin, map[string]bool{"value": true})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["is_blocked"])

	status, body = ts.do(t, http.MethodPost, "/api/v1/me/rewards/faucet/claim", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "account_blocked", body["code"])

	status, body = ts.do(t, http.MethodPost, "/api/v1/admin/accounts/alice/bonus", admin, map[string]any{"amount": 500})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 600, body["coins"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/admin/accounts/alice/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["balanced"])
	assert.EqualValues(t, 2, body["entries"])

	status, _ = ts.do(t, http.MethodPost, "/api/v1/admin/withdrawals/not-a-uuid/approve", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWalletConfigAndQuote(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := ts.register(t, "admin")

	status, body := ts.do(t, http.MethodGet, "/api/v1/wallet/quote?coins=100000", admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "conversion_unavailable", body["code"])

	status, body = ts.do(t, http.MethodPut, "/api/v1/admin/wallet", admin, map[string]any{
		"coinToPkrRate": "300",
		"ucPackages":    []map[string]any{{"amount": 60, "price": "250"}},
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = ts.do(t, http.MethodGet, "/api/v1/wallet/quote?coins=100000", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "300", body["pkr"])

	status, body = ts.do(t, http.MethodGet, "/api/v1/wallet/catalog/uc", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["packages"], 1)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/wallet/catalog/gold", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.register(t, "alice")

	status, body := ts.do(t, http.MethodGet, "/api/v1/leaderboard?by=coins", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["entries"], 1)

	status, _ = ts.do(t, http.MethodGet, "/api/v1/leaderboard?by=luck", tok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})
	tok := token(t, "alice")

	for i := 0; i < 2; i++ {
		status, _ := ts.do(t, http.MethodGet, "/api/v1/me", tok, nil)
		assert.Equal(t, http.StatusNotFound, status)
	}
	status, _ := ts.do(t, http.MethodGet, "/api/v1/me", tok, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)

	// Buckets are per account.
	status, _ = ts.do(t, http.MethodGet, "/api/v1/me", token(t, "bob"), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.Equal(t, 1, rl.Sweep(0))
	assert.True(t, rl.Allow("a"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodGet, "/healthz", "", nil)

	resp, err := ts.srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "coins_catcher_http_requests_total")
}

func TestStreamEvents(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	events := make(chan model.AccountEvent, 2)
	events <- model.AccountEvent{AccountID: "alice", Coins: 150, PKRBalance: decimal.Zero, Reason: "hourly"}
	close(events)

	err := streamEvents(context.Background(), w, events, time.Hour)
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, ": connected\n\n"))
	assert.Contains(t, out, "event: balance\n")
	assert.Contains(t, out, `"coins":150`)
	assert.Contains(t, out, `"reason":"hourly"`)
}

func TestStreamEvents_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := streamEvents(ctx, bufio.NewWriter(io.Discard), make(chan model.AccountEvent), time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorHandler_HidesUnknownErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.srv.App().Get("/boom", func(c *fiber.Ctx) error { return errors.New("database exploded") })

	status, body := ts.do(t, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", body["code"])
	assert.NotContains(t, body["error"], "exploded")
}
