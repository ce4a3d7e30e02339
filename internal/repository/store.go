// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
)

// Common errors for repository operations.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// repository code serves plain reads and transactional access.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithdrawalFilter narrows ListWithdrawals. Zero values match everything.
type WithdrawalFilter struct {
	AccountID string
	Status    lifecycle.Status
	Limit     int
}

// FriendFilter narrows ListFriendRequests. AccountID matches the recipient.
type FriendFilter struct {
	AccountID string
	Status    lifecycle.Status
	Limit     int
}

// AccountFilter narrows ListAccounts.
type AccountFilter struct {
	BlockedOnly bool
	Limit       int
	Offset      int
}

// Totals are the sums of an account's transaction deltas.
type Totals struct {
	Coins int64
	PKR   decimal.Decimal
	Count int
}

// Reader is the read-only side of the store. Reads outside a transaction
// may be stale and must never be the basis of a write.
type Reader interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error)
	ListAccounts(ctx context.Context, f AccountFilter) ([]*model.Account, error)
	TopAccountsByCoins(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error)

	ListTransactions(ctx context.Context, accountID string, limit int) ([]*model.Transaction, error)
	SumTransactions(ctx context.Context, accountID string) (Totals, error)
	TopEarners(ctx context.Context, since time.Time, types []string, limit int) ([]*model.LeaderboardEntry, error)

	GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, f WithdrawalFilter) ([]*model.WithdrawalRequest, error)

	ListFriendRequests(ctx context.Context, f FriendFilter) ([]*model.FriendRequest, error)

	// GetWalletConfig returns nil without error when no config has been set.
	GetWalletConfig(ctx context.Context) (*model.WalletConfig, error)
}

// Tx is a unit of work. Every ForUpdate read locks the row until the
// transaction ends.
type Tx interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error)
	CreateAccount(ctx context.Context, a *model.Account) error
	UpdateAccount(ctx context.Context, a *model.Account, reason string) error

	AppendTransaction(ctx context.Context, t *model.Transaction) error

	CreateWithdrawal(ctx context.Context, r *model.WithdrawalRequest) error
	GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, r *model.WithdrawalRequest) error

	CreateFriendRequest(ctx context.Context, r *model.FriendRequest) error
	GetFriendRequestForUpdate(ctx context.Context, id uuid.UUID) (*model.FriendRequest, error)
	UpdateFriendRequest(ctx context.Context, r *model.FriendRequest) error
	HasPendingFriendRequest(ctx context.Context, pairKey string) (bool, error)

	GetWalletConfig(ctx context.Context) (*model.WalletConfig, error)
	SetWalletConfig(ctx context.Context, cfg *model.WalletConfig) error
}

// Store is the transactional document store the ledger runs on.
type Store interface {
	Reader

	// RunInTx runs fn in a transaction. Either every write in fn commits or
	// none does. Conflicts are retried, so fn must be safe to re-run.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// Subscribe delivers balance changes of an account after they commit
	// until ctx is done. Slow consumers miss events rather than block writers.
	Subscribe(ctx context.Context, accountID string) (<-chan model.AccountEvent, error)

	Ping(ctx context.Context) error
	Close()
}
