package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"coins-catcher/internal/model"
)

// EventChannel is the NOTIFY channel carrying account balance changes.
const EventChannel = "account_events"

const accountColumns = `
	id, display_name, email, coins, pkr_balance, is_admin, is_blocked, logout_disabled,
	last_hourly_claim, last_faucet_claim, last_daily_claim, daily_streak, game_points_carry,
	referral_code, referred_by, payment_method, payment_account, pubg_id, pubg_name,
	free_fire_id, free_fire_name, created_at, updated_at`

// AccountRepository handles account persistence.
type AccountRepository struct {
	q Querier
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(q Querier) *AccountRepository {
	return &AccountRepository{q: q}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.DisplayName,
		&a.Email,
		&a.Coins,
		&a.PKRBalance,
		&a.IsAdmin,
		&a.IsBlocked,
		&a.LogoutDisabled,
		&a.LastHourlyClaim,
		&a.LastFaucetClaim,
		&a.LastDailyClaim,
		&a.DailyStreak,
		&a.GamePointsCarry,
		&a.ReferralCode,
		&a.ReferredBy,
		&a.PaymentMethod,
		&a.PaymentAccount,
		&a.PubgID,
		&a.PubgName,
		&a.FreeFireID,
		&a.FreeFireName,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetAccount retrieves an account by id.
func (r *AccountRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, err
}

// GetAccountForUpdate retrieves an account and locks its row.
func (r *AccountRepository) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return a, err
}

// GetAccountByReferralCode retrieves the account owning a referral code.
func (r *AccountRepository) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referral_code = $1`

	a, err := scanAccount(r.q.QueryRow(ctx, query, code))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get account by referral code: %w", err)
	}
	return a, err
}

// CreateAccount inserts a new account. Returns ErrConflict when the id or
// referral code is taken.
func (r *AccountRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	const query = `
		INSERT INTO accounts (
			id, display_name, email, coins, pkr_balance, is_admin, is_blocked, logout_disabled,
			last_hourly_claim, last_faucet_claim, last_daily_claim, daily_streak, game_points_carry,
			referral_code, referred_by, payment_method, payment_account, pubg_id, pubg_name,
			free_fire_id, free_fire_name, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $22)
	`

	now := time.Now().UTC()
	_, err := r.q.Exec(ctx, query,
		a.ID, a.DisplayName, a.Email, a.Coins, a.PKRBalance, a.IsAdmin, a.IsBlocked, a.LogoutDisabled,
		a.LastHourlyClaim, a.LastFaucetClaim, a.LastDailyClaim, a.DailyStreak, a.GamePointsCarry,
		a.ReferralCode, a.ReferredBy, a.PaymentMethod, a.PaymentAccount, a.PubgID, a.PubgName,
		a.FreeFireID, a.FreeFireName, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return r.notify(ctx, a, "created")
}

// UpdateAccount writes every mutable field of a and emits a change event
// that is delivered when the surrounding transaction commits.
func (r *AccountRepository) UpdateAccount(ctx context.Context, a *model.Account, reason string) error {
	const query = `
		UPDATE accounts SET
			display_name = $2, email = $3, coins = $4, pkr_balance = $5, is_admin = $6,
			is_blocked = $7, logout_disabled = $8, last_hourly_claim = $9, last_faucet_claim = $10,
			last_daily_claim = $11, daily_streak = $12, game_points_carry = $13,
			payment_method = $14, payment_account = $15, pubg_id = $16, pubg_name = $17,
			free_fire_id = $18, free_fire_name = $19, updated_at = $20
		WHERE id = $1
	`

	now := time.Now().UTC()
	tag, err := r.q.Exec(ctx, query,
		a.ID, a.DisplayName, a.Email, a.Coins, a.PKRBalance, a.IsAdmin,
		a.IsBlocked, a.LogoutDisabled, a.LastHourlyClaim, a.LastFaucetClaim,
		a.LastDailyClaim, a.DailyStreak, a.GamePointsCarry,
		a.PaymentMethod, a.PaymentAccount, a.PubgID, a.PubgName,
		a.FreeFireID, a.FreeFireName, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	a.UpdatedAt = now
	return r.notify(ctx, a, reason)
}

func (r *AccountRepository) notify(ctx context.Context, a *model.Account, reason string) error {
	payload, err := json.Marshal(model.AccountEvent{
		AccountID:  a.ID,
		Coins:      a.Coins,
		PKRBalance: a.PKRBalance,
		Reason:     reason,
		At:         a.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode account event: %w", err)
	}
	if _, err := r.q.Exec(ctx, `SELECT pg_notify($1, $2)`, EventChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify account event: %w", err)
	}
	return nil
}

// ListAccounts returns accounts, newest first.
func (r *AccountRepository) ListAccounts(ctx context.Context, f AccountFilter) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE ($1 = false OR is_blocked)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.q.Query(ctx, query, f.BlockedOnly, limitOrDefault(f.Limit), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// TopAccountsByCoins returns the richest accounts by coin balance.
func (r *AccountRepository) TopAccountsByCoins(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	const query = `
		SELECT id, display_name, coins
		FROM accounts
		WHERE NOT is_blocked
		ORDER BY coins DESC, id
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get top accounts: %w", err)
	}
	defer rows.Close()

	return scanLeaderboard(rows)
}

func scanLeaderboard(rows pgx.Rows) ([]*model.LeaderboardEntry, error) {
	entries := []*model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.AccountID, &e.DisplayName, &e.Coins); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
