// Package memstore is an in-memory Store with the same transactional
// semantics as the Postgres store. Row locks are per-key locks, writes are
// staged and applied atomically at commit, events fan out after commit.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/pkg/lock"
	"coins-catcher/internal/repository"
)

// Store keeps committed state in maps guarded by mu.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*model.Account
	codes        map[string]string
	transactions map[string][]*model.Transaction
	withdrawals  map[uuid.UUID]*model.WithdrawalRequest
	friends      map[uuid.UUID]*model.FriendRequest
	wallet       *model.WalletConfig

	locks       *lock.KeyLock
	lockTimeout time.Duration
	retries     int
	hub         *repository.Hub
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a ForUpdate read waits for a row.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithRetries sets how many times a transaction that timed out on a lock
// is re-run.
func WithRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		accounts:     make(map[string]*model.Account),
		codes:        make(map[string]string),
		transactions: make(map[string][]*model.Transaction),
		withdrawals:  make(map[uuid.UUID]*model.WithdrawalRequest),
		friends:      make(map[uuid.UUID]*model.FriendRequest),
		locks:        lock.New(),
		lockTimeout:  5 * time.Second,
		retries:      5,
		hub:          repository.NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

// RunInTx runs fn against a staging area and applies it atomically when fn
// succeeds. A transaction that times out waiting on a row is retried.
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		err = s.runOnce(ctx, fn)
		if !errors.Is(err, lock.ErrLockTimeout) {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Retrying store transaction")
	}
	return fmt.Errorf("transaction failed after %d retries: %w", s.retries, err)
}

func (s *Store) runOnce(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx := newTx(s)
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := s.commit(tx); err != nil {
		return err
	}
	for _, ev := range tx.events {
		s.hub.Publish(ev)
	}
	return nil
}

// commit validates uniqueness against committed state, then applies every
// staged write.
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tx.created {
		a := tx.accounts[id]
		if _, ok := s.accounts[id]; ok {
			return repository.ErrConflict
		}
		if _, ok := s.codes[a.ReferralCode]; ok {
			return repository.ErrConflict
		}
	}
	for _, f := range tx.friends {
		if f.Status != lifecycle.StatusPending {
			continue
		}
		for _, existing := range s.friends {
			if existing.ID != f.ID && existing.Payload.PairKey == f.Payload.PairKey && existing.Status == lifecycle.StatusPending {
				return repository.ErrConflict
			}
		}
	}

	for id, a := range tx.accounts {
		s.accounts[id] = a
		s.codes[a.ReferralCode] = id
	}
	for _, t := range tx.transactions {
		s.transactions[t.AccountID] = append(s.transactions[t.AccountID], t)
	}
	for id, w := range tx.withdrawals {
		s.withdrawals[id] = w
	}
	for id, f := range tx.friends {
		s.friends[id] = f
	}
	if tx.wallet != nil {
		s.wallet = tx.wallet
	}
	return nil
}

// Subscribe registers a subscriber for committed account changes.
func (s *Store) Subscribe(ctx context.Context, accountID string) (<-chan model.AccountEvent, error) {
	return s.hub.Subscribe(ctx, accountID), nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// GetAccount returns a copy of the committed account.
func (s *Store) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAccount(a), nil
}

// GetAccountByReferralCode returns a copy of the account owning code.
func (s *Store) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	s.mu.RLock()
	id, ok := s.codes[code]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.GetAccount(ctx, id)
}

// ListAccounts returns accounts newest first.
func (s *Store) ListAccounts(_ context.Context, f repository.AccountFilter) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Account{}
	for _, a := range s.accounts {
		if f.BlockedOnly && !a.IsBlocked {
			continue
		}
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f.Offset, f.Limit), nil
}

// TopAccountsByCoins ranks unblocked accounts by coin balance.
func (s *Store) TopAccountsByCoins(_ context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.LeaderboardEntry{}
	for _, a := range s.accounts {
		if a.IsBlocked {
			continue
		}
		out = append(out, &model.LeaderboardEntry{AccountID: a.ID, DisplayName: a.DisplayName, Coins: a.Coins})
	}
	sortLeaderboard(out)
	return page(out, 0, limit), nil
}

// ListTransactions returns an account's records newest first.
func (s *Store) ListTransactions(_ context.Context, accountID string, limit int) ([]*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.transactions[accountID]
	out := make([]*model.Transaction, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		t := *src[i]
		out = append(out, &t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, 0, limit), nil
}

// SumTransactions totals every record of an account.
func (s *Store) SumTransactions(_ context.Context, accountID string) (repository.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := repository.Totals{PKR: decimal.Zero}
	for _, t := range s.transactions[accountID] {
		totals.Coins += t.CoinDelta
		totals.PKR = totals.PKR.Add(t.PKRDelta)
		totals.Count++
	}
	return totals, nil
}

// TopEarners ranks accounts by positive coin deltas of the given types since a point in time.
func (s *Store) TopEarners(_ context.Context, since time.Time, types []string, limit int) ([]*model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	out := []*model.LeaderboardEntry{}
	for id, txs := range s.transactions {
		a := s.accounts[id]
		if a == nil || a.IsBlocked {
			continue
		}
		var earned int64
		for _, t := range txs {
			if allowed[t.Type] && t.CoinDelta > 0 && !t.CreatedAt.Before(since) {
				earned += t.CoinDelta
			}
		}
		if earned > 0 {
			out = append(out, &model.LeaderboardEntry{AccountID: id, DisplayName: a.DisplayName, Coins: earned})
		}
	}
	sortLeaderboard(out)
	return page(out, 0, limit), nil
}

// GetWithdrawal returns a copy of a committed request.
func (s *Store) GetWithdrawal(_ context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneWithdrawal(w), nil
}

// ListWithdrawals returns requests matching f, newest first.
func (s *Store) ListWithdrawals(_ context.Context, f repository.WithdrawalFilter) ([]*model.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.WithdrawalRequest{}
	for _, w := range s.withdrawals {
		if f.AccountID != "" && w.Payload.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		out = append(out, cloneWithdrawal(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, 0, f.Limit), nil
}

// ListFriendRequests returns requests addressed to f.AccountID, newest first.
func (s *Store) ListFriendRequests(_ context.Context, f repository.FriendFilter) ([]*model.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.FriendRequest{}
	for _, r := range s.friends {
		if r.Payload.ToID != f.AccountID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, cloneFriend(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, 0, f.Limit), nil
}

// GetWalletConfig returns a copy of the wallet document or nil.
func (s *Store) GetWalletConfig(context.Context) (*model.WalletConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWallet(s.wallet), nil
}

func sortLeaderboard(entries []*model.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Coins != entries[j].Coins {
			return entries[i].Coins > entries[j].Coins
		}
		return entries[i].AccountID < entries[j].AccountID
	})
}

func page[T any](items []T, offset, limit int) []T {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
