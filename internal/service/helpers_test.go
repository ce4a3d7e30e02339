package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"coins-catcher/internal/config"
	"coins-catcher/internal/model"
	"coins-catcher/internal/repository/memstore"
)

const adminID = "admin"

// testClock is a settable time source shared by all services of an env.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Admin:    config.AdminConfig{BootstrapIDs: []string{adminID}},
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
}

type env struct {
	svc   *Services
	store *memstore.Store
	clock *testClock
	admin model.Session
}

func newEnv(t testing.TB, estimator Estimator) *env {
	t.Helper()
	return newEnvWith(t, testConfig(), estimator)
}

func newEnvWith(t testing.TB, cfg *config.Config, estimator Estimator) *env {
	t.Helper()
	store := memstore.New()
	svc, err := New(store, cfg, estimator)
	require.NoError(t, err)

	clk := &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc.SetClock(clk.Now)

	_, err = svc.Accounts.Register(context.Background(), RegisterInput{AccountID: adminID, DisplayName: "Admin"})
	require.NoError(t, err)

	return &env{svc: svc, store: store, clock: clk, admin: model.Session{AccountID: adminID, IsAdmin: true}}
}

// user registers an account and returns its session.
func (e *env) user(t testing.TB, id string) model.Session {
	t.Helper()
	_, err := e.svc.Accounts.Register(context.Background(), RegisterInput{AccountID: id, DisplayName: id, Email: id + "@example.com"})
	require.NoError(t, err)
	return model.Session{AccountID: id}
}

func (e *env) account(t testing.TB, id string) *model.Account {
	t.Helper()
	a, err := e.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *env) transactions(t testing.TB, id string) []*model.Transaction {
	t.Helper()
	txs, err := e.store.ListTransactions(context.Background(), id, 500)
	require.NoError(t, err)
	return txs
}

// fund gives an account PKR by way of an admin bonus and a conversion.
func (e *env) fund(t testing.TB, sess model.Session, coins int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.svc.Admin.GiveBonus(ctx, e.admin, sess.AccountID, coins, "funding")
	require.NoError(t, err)
	_, err = e.svc.Wallet.Convert(ctx, sess, coins)
	require.NoError(t, err)
}

func (e *env) setWallet(t testing.TB) *model.WalletConfig {
	t.Helper()
	cfg, err := e.svc.Wallet.SetConfig(context.Background(), e.admin, &model.WalletConfig{
		CoinToPKRRate: decimal.NewFromInt(300),
		UCPackages: []model.Package{
			{Amount: 60, Price: decimal.NewFromInt(250)},
			{Amount: 325, Price: decimal.NewFromInt(1200)},
		},
		DiamondPackages: []model.Package{
			{Amount: 100, Price: decimal.NewFromInt(280)},
		},
	})
	require.NoError(t, err)
	return cfg
}
