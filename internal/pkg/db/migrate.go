package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is the subset of a pool needed to apply migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"accounts table", `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			coins BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
			pkr_balance NUMERIC NOT NULL DEFAULT 0 CHECK (pkr_balance >= 0),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
			logout_disabled BOOLEAN NOT NULL DEFAULT FALSE,
			last_hourly_claim TIMESTAMPTZ,
			last_faucet_claim TIMESTAMPTZ,
			last_daily_claim TIMESTAMPTZ,
			daily_streak INT NOT NULL DEFAULT 0,
			game_points_carry BIGINT NOT NULL DEFAULT 0,
			referral_code TEXT NOT NULL UNIQUE,
			referred_by TEXT REFERENCES accounts(id),
			payment_method TEXT NOT NULL DEFAULT '',
			payment_account TEXT NOT NULL DEFAULT '',
			pubg_id TEXT NOT NULL DEFAULT '',
			pubg_name TEXT NOT NULL DEFAULT '',
			free_fire_id TEXT NOT NULL DEFAULT '',
			free_fire_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_coins ON accounts(coins DESC);
	`},
	{"transactions table", `
		CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			coin_delta BIGINT NOT NULL DEFAULT 0,
			pkr_delta NUMERIC NOT NULL DEFAULT 0,
			type VARCHAR(50) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			request_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account_time ON transactions(account_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
	`},
	{"withdrawal_requests table", `
		CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id UUID PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			kind VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			amount_pkr NUMERIC NOT NULL,
			payload JSONB NOT NULL,
			resolution JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_status_time ON withdrawal_requests(status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_account_time ON withdrawal_requests(account_id, created_at DESC);
	`},
	{"friend_requests table", `
		CREATE TABLE IF NOT EXISTS friend_requests (
			id UUID PRIMARY KEY,
			status VARCHAR(20) NOT NULL,
			from_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			to_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			pair_key TEXT NOT NULL,
			resolution JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_friend_requests_pending_pair
			ON friend_requests(pair_key) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_id, created_at DESC);
	`},
	{"settings table", `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
