package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// RetryObserver is told about every retried transaction. Used for metrics.
type RetryObserver func(attempt int, err error)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	*AccountRepository
	*TransactionRepository
	*WithdrawalRepository
	*FriendRepository
	*SettingsRepository

	pool    *pgxpool.Pool
	retries int
	onRetry RetryObserver

	hub          *Hub
	listenOnce   sync.Once
	listenErr    error
	stopListener context.CancelFunc
	listenerDone chan struct{}
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithRetries sets how many times a conflicting transaction is re-run.
func WithRetries(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithRetryObserver registers a callback for retried transactions.
func WithRetryObserver(fn RetryObserver) PostgresOption {
	return func(s *PostgresStore) { s.onRetry = fn }
}

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		AccountRepository:     NewAccountRepository(pool),
		TransactionRepository: NewTransactionRepository(pool),
		WithdrawalRepository:  NewWithdrawalRepository(pool),
		FriendRepository:      NewFriendRepository(pool),
		SettingsRepository:    NewSettingsRepository(pool),
		pool:                  pool,
		retries:               5,
		hub:                   NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pgTx binds the repositories to a single pgx transaction.
type pgTx struct {
	*AccountRepository
	*TransactionRepository
	*WithdrawalRepository
	*FriendRepository
	*SettingsRepository
}

func newPgTx(tx pgx.Tx) *pgTx {
	return &pgTx{
		AccountRepository:     NewAccountRepository(tx),
		TransactionRepository: NewTransactionRepository(tx),
		WithdrawalRepository:  NewWithdrawalRepository(tx),
		FriendRepository:      NewFriendRepository(tx),
		SettingsRepository:    NewSettingsRepository(tx),
	}
}

// RunInTx runs fn in a READ COMMITTED transaction. Row locks taken with
// FOR UPDATE serialize writers; deadlocks and serialization failures are
// retried with a short backoff.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(newPgTx(tx))
		})
		if err == nil || !isRetryable(err) {
			return err
		}

		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Retrying store transaction")
		if s.onRetry != nil {
			s.onRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction failed after %d retries: %w", s.retries, err)
}

// isRetryable reports whether err is a serialization failure, a deadlock or
// a lock_timeout expiry.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close stops the change listener. The pool is owned by the caller.
func (s *PostgresStore) Close() {
	if s.stopListener != nil {
		s.stopListener()
		<-s.listenerDone
	}
}

var _ Store = (*PostgresStore)(nil)
