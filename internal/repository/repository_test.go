// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/db"
	"coins-catcher/internal/pkg/lifecycle"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated pool.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func createAccount(t *testing.T, s *PostgresStore, id string, coins int64) *model.Account {
	t.Helper()
	a := &model.Account{
		ID:           id,
		DisplayName:  "user " + id,
		Email:        id + "@example.com",
		Coins:        coins,
		PKRBalance:   decimal.Zero,
		ReferralCode: "C" + id,
	}
	err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.CreateAccount(context.Background(), a)
	})
	require.NoError(t, err)
	return a
}

func TestPostgresStore_AccountRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	ctx := context.Background()
	createAccount(t, s, "alice", 100)

	now := time.Now().UTC().Truncate(time.Microsecond)
	err := s.RunInTx(ctx, func(tx Tx) error {
		a, err := tx.GetAccountForUpdate(ctx, "alice")
		if err != nil {
			return err
		}
		a.PKRBalance = decimal.RequireFromString("0.003")
		a.LastHourlyClaim = &now
		a.DailyStreak = 3
		a.PaymentAccount = "03001234567"
		return tx.UpdateAccount(ctx, a, "test")
	})
	require.NoError(t, err)

	a, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, a.PKRBalance.Equal(decimal.RequireFromString("0.003")), "stored PKR must not be rounded")
	require.NotNil(t, a.LastHourlyClaim)
	assert.True(t, now.Equal(*a.LastHourlyClaim))
	assert.Nil(t, a.LastDailyClaim)
	assert.Equal(t, 3, a.DailyStreak)
	assert.Equal(t, "03001234567", a.PaymentAccount)

	byCode, err := s.GetAccountByReferralCode(ctx, "Calice")
	require.NoError(t, err)
	assert.Equal(t, "alice", byCode.ID)

	_, err = s.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_CreateConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	createAccount(t, s, "alice", 0)

	err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.CreateAccount(context.Background(), &model.Account{ID: "bob", ReferralCode: "Calice", PKRBalance: decimal.Zero})
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostgresStore_RollbackOnError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	ctx := context.Background()
	createAccount(t, s, "alice", 100)

	err := s.RunInTx(ctx, func(tx Tx) error {
		a, err := tx.GetAccountForUpdate(ctx, "alice")
		if err != nil {
			return err
		}
		a.Coins = 0
		if err := tx.UpdateAccount(ctx, a, "test"); err != nil {
			return err
		}
		return ErrNotFound
	})
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Coins)
}

func TestPostgresStore_ConcurrentIncrements(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	ctx := context.Background()
	createAccount(t, s, "alice", 0)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(tx Tx) error {
				a, err := tx.GetAccountForUpdate(ctx, "alice")
				if err != nil {
					return err
				}
				a.Coins += 10
				if err := tx.UpdateAccount(ctx, a, "inc"); err != nil {
					return err
				}
				return tx.AppendTransaction(ctx, &model.Transaction{
					ID: uuid.New(), AccountID: "alice", CoinDelta: 10, PKRDelta: decimal.Zero, Type: model.TxTypeHourly,
				})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), a.Coins)

	totals, err := s.SumTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.Coins, totals.Coins)
	assert.Equal(t, workers, totals.Count)
}

func TestPostgresStore_TransactionsAndEarners(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	ctx := context.Background()
	createAccount(t, s, "alice", 0)
	createAccount(t, s, "bob", 0)

	yesterday := time.Now().Add(-36 * time.Hour)
	records := []*model.Transaction{
		{ID: uuid.New(), AccountID: "alice", CoinDelta: 50, PKRDelta: decimal.Zero, Type: model.TxTypeHourly},
		{ID: uuid.New(), AccountID: "alice", CoinDelta: -40, PKRDelta: decimal.RequireFromString("0.12"), Type: model.TxTypeConvert},
		{ID: uuid.New(), AccountID: "bob", CoinDelta: 120, PKRDelta: decimal.Zero, Type: model.TxTypeDaily},
		{ID: uuid.New(), AccountID: "bob", CoinDelta: 999, PKRDelta: decimal.Zero, Type: model.TxTypeDaily, CreatedAt: yesterday},
		{ID: uuid.New(), AccountID: "bob", CoinDelta: 500, PKRDelta: decimal.Zero, Type: model.TxTypeAdminBonus},
	}
	require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
		for _, r := range records {
			if err := tx.AppendTransaction(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err := s.ListTransactions(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	totals, err := s.SumTransactions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), totals.Coins)
	assert.True(t, totals.PKR.Equal(decimal.RequireFromString("0.12")))

	since := time.Now().Add(-time.Hour)
	top, err := s.TopEarners(ctx, since, model.RewardTransactionTypes(), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].AccountID)
	assert.Equal(t, int64(120), top[0].Coins)
	assert.Equal(t, int64(50), top[1].Coins)
}

func TestPostgresStore_WithdrawalLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	ctx := context.Background()
	createAccount(t, s, "alice", 0)

	w := model.NewWithdrawalRequest(model.WithdrawalPayload{
		AccountID:      "alice",
		Kind:           model.RequestUC,
		AmountPKR:      decimal.RequireFromString("250.50"),
		CoinEquivalent: 83500,
		PackageAmount:  60,
		GameID:         "5123456789",
	})
	require.NoError(t, s.RunInTx(ctx, func(tx Tx) error { return tx.CreateWithdrawal(ctx, w) }))

	got, err := s.GetWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, got.Status)
	assert.True(t, got.Payload.AmountPKR.Equal(decimal.RequireFromString("250.5")))
	assert.Nil(t, got.Resolution)

	require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
		r, err := tx.GetWithdrawalForUpdate(ctx, w.ID)
		if err != nil {
			return err
		}
		if err := r.Resolve(lifecycle.WithdrawalPolicy, lifecycle.StatusRejected, "wrong id", "admin", time.Now().UTC()); err != nil {
			return err
		}
		return tx.UpdateWithdrawal(ctx, r)
	}))

	got, err = s.GetWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRejected, got.Status)
	require.NotNil(t, got.Resolution)
	assert.Equal(t, "wrong id", got.Resolution.Reason)

	pending, err := s.ListWithdrawals(ctx, WithdrawalFilter{Status: lifecycle.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	mine, err := s.ListWithdrawals(ctx, WithdrawalFilter{AccountID: "alice"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestPostgresStore_FriendPendingUniqueness(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	ctx := context.Background()
	createAccount(t, s, "alice", 0)
	createAccount(t, s, "bob", 0)

	require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
		return tx.CreateFriendRequest(ctx, model.NewFriendRequest("alice", "bob"))
	}))
	err := s.RunInTx(ctx, func(tx Tx) error {
		return tx.CreateFriendRequest(ctx, model.NewFriendRequest("bob", "alice"))
	})
	assert.ErrorIs(t, err, ErrConflict)

	incoming, err := s.ListFriendRequests(ctx, FriendFilter{AccountID: "bob"})
	require.NoError(t, err)
	assert.Len(t, incoming, 1)
}

func TestPostgresStore_WalletConfig(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	ctx := context.Background()

	cfg, err := s.GetWalletConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
		return tx.SetWalletConfig(ctx, &model.WalletConfig{
			CoinToPKRRate:   decimal.NewFromInt(300),
			DiamondPackages: []model.Package{{Amount: 100, Price: decimal.NewFromInt(280)}},
		})
	}))

	cfg, err = s.GetWalletConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.CoinToPKRRate.Equal(decimal.NewFromInt(300)))
	require.Len(t, cfg.DiamondPackages, 1)
	assert.Equal(t, int64(100), cfg.DiamondPackages[0].Amount)
}

func TestPostgresStore_Subscribe(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewPostgresStore(pool)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	createAccount(t, s, "alice", 0)

	events, err := s.Subscribe(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
		a, err := tx.GetAccountForUpdate(ctx, "alice")
		if err != nil {
			return err
		}
		a.Coins = 42
		return tx.UpdateAccount(ctx, a, "hourly")
	}))

	select {
	case ev := <-events:
		assert.Equal(t, "alice", ev.AccountID)
		assert.Equal(t, int64(42), ev.Coins)
		assert.Equal(t, "hourly", ev.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("no account event received")
	}
}
