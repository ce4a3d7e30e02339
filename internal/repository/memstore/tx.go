package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/repository"
)

// memTx stages writes and holds row locks until release.
type memTx struct {
	s    *Store
	held map[string]bool

	accounts     map[string]*model.Account
	created      []string
	transactions []*model.Transaction
	withdrawals  map[uuid.UUID]*model.WithdrawalRequest
	friends      map[uuid.UUID]*model.FriendRequest
	wallet       *model.WalletConfig
	events       []model.AccountEvent
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:           s,
		held:        make(map[string]bool),
		accounts:    make(map[string]*model.Account),
		withdrawals: make(map[uuid.UUID]*model.WithdrawalRequest),
		friends:     make(map[uuid.UUID]*model.FriendRequest),
	}
}

// lockRow takes the row lock for key once per transaction.
func (tx *memTx) lockRow(ctx context.Context, key string) error {
	if tx.held[key] {
		return nil
	}
	if err := tx.s.locks.LockWithTimeout(ctx, key, tx.s.lockTimeout); err != nil {
		return err
	}
	tx.held[key] = true
	return nil
}

func (tx *memTx) release() {
	for key := range tx.held {
		tx.s.locks.Unlock(key)
	}
	tx.held = nil
}

func accountKey(id string) string       { return "account:" + id }
func codeKey(code string) string        { return "code:" + code }
func withdrawalKey(id uuid.UUID) string { return "withdrawal:" + id.String() }
func friendKey(id uuid.UUID) string     { return "friend:" + id.String() }
func pairKey(key string) string         { return "pair:" + key }

const walletLockKey = "settings:wallet"

// GetAccount reads the staged copy if this transaction wrote one, else the
// committed row. It takes no lock.
func (tx *memTx) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if a, ok := tx.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return tx.s.GetAccount(ctx, id)
}

// GetAccountForUpdate locks the account row and reads it.
func (tx *memTx) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	if err := tx.lockRow(ctx, accountKey(id)); err != nil {
		return nil, err
	}
	return tx.GetAccount(ctx, id)
}

// GetAccountByReferralCode resolves a code against staged and committed accounts.
func (tx *memTx) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	for _, a := range tx.accounts {
		if a.ReferralCode == code {
			return cloneAccount(a), nil
		}
	}
	return tx.s.GetAccountByReferralCode(ctx, code)
}

// CreateAccount stages a new account. Uniqueness of id and referral code is
// checked now and again at commit.
func (tx *memTx) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := tx.lockRow(ctx, accountKey(a.ID)); err != nil {
		return err
	}
	if err := tx.lockRow(ctx, codeKey(a.ReferralCode)); err != nil {
		return err
	}
	if _, ok := tx.accounts[a.ID]; ok {
		return repository.ErrConflict
	}
	if _, err := tx.s.GetAccount(ctx, a.ID); err == nil {
		return repository.ErrConflict
	}
	if _, err := tx.s.GetAccountByReferralCode(ctx, a.ReferralCode); err == nil {
		return repository.ErrConflict
	}

	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	tx.accounts[a.ID] = cloneAccount(a)
	tx.created = append(tx.created, a.ID)
	tx.emit(a, "created")
	return nil
}

// UpdateAccount stages every mutable field of a.
func (tx *memTx) UpdateAccount(ctx context.Context, a *model.Account, reason string) error {
	if err := tx.lockRow(ctx, accountKey(a.ID)); err != nil {
		return err
	}
	current, err := tx.GetAccount(ctx, a.ID)
	if err != nil {
		return err
	}

	next := cloneAccount(a)
	next.ReferralCode = current.ReferralCode
	next.ReferredBy = current.ReferredBy
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	a.UpdatedAt = next.UpdatedAt

	tx.accounts[a.ID] = next
	tx.emit(next, reason)
	return nil
}

func (tx *memTx) emit(a *model.Account, reason string) {
	tx.events = append(tx.events, model.AccountEvent{
		AccountID:  a.ID,
		Coins:      a.Coins,
		PKRBalance: a.PKRBalance,
		Reason:     reason,
		At:         a.UpdatedAt,
	})
}

// AppendTransaction stages a ledger record.
func (tx *memTx) AppendTransaction(_ context.Context, t *model.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	tx.transactions = append(tx.transactions, &cp)
	return nil
}

// CreateWithdrawal stages a new request.
func (tx *memTx) CreateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) error {
	if err := tx.lockRow(ctx, withdrawalKey(w.ID)); err != nil {
		return err
	}
	if _, err := tx.s.GetWithdrawal(ctx, w.ID); err == nil {
		return repository.ErrConflict
	}
	tx.withdrawals[w.ID] = cloneWithdrawal(w)
	return nil
}

// GetWithdrawalForUpdate locks and reads a request.
func (tx *memTx) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	if err := tx.lockRow(ctx, withdrawalKey(id)); err != nil {
		return nil, err
	}
	if w, ok := tx.withdrawals[id]; ok {
		return cloneWithdrawal(w), nil
	}
	return tx.s.GetWithdrawal(ctx, id)
}

// UpdateWithdrawal stages a status transition.
func (tx *memTx) UpdateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) error {
	if _, err := tx.GetWithdrawalForUpdate(ctx, w.ID); err != nil {
		return err
	}
	tx.withdrawals[w.ID] = cloneWithdrawal(w)
	return nil
}

// CreateFriendRequest stages a pending request, serialized per pair.
func (tx *memTx) CreateFriendRequest(ctx context.Context, f *model.FriendRequest) error {
	exists, err := tx.HasPendingFriendRequest(ctx, f.Payload.PairKey)
	if err != nil {
		return err
	}
	if exists {
		return repository.ErrConflict
	}
	if err := tx.lockRow(ctx, friendKey(f.ID)); err != nil {
		return err
	}
	tx.friends[f.ID] = cloneFriend(f)
	return nil
}

// GetFriendRequestForUpdate locks and reads a request.
func (tx *memTx) GetFriendRequestForUpdate(ctx context.Context, id uuid.UUID) (*model.FriendRequest, error) {
	if err := tx.lockRow(ctx, friendKey(id)); err != nil {
		return nil, err
	}
	if f, ok := tx.friends[id]; ok {
		return cloneFriend(f), nil
	}

	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	f, ok := tx.s.friends[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneFriend(f), nil
}

// UpdateFriendRequest stages a status transition.
func (tx *memTx) UpdateFriendRequest(ctx context.Context, f *model.FriendRequest) error {
	if _, err := tx.GetFriendRequestForUpdate(ctx, f.ID); err != nil {
		return err
	}
	tx.friends[f.ID] = cloneFriend(f)
	return nil
}

// HasPendingFriendRequest locks the pair and reports whether a pending
// request already exists for it.
func (tx *memTx) HasPendingFriendRequest(ctx context.Context, key string) (bool, error) {
	if err := tx.lockRow(ctx, pairKey(key)); err != nil {
		return false, err
	}
	for _, f := range tx.friends {
		if f.Payload.PairKey == key && f.Status == lifecycle.StatusPending {
			return true, nil
		}
	}

	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	for id, f := range tx.s.friends {
		if staged, ok := tx.friends[id]; ok {
			f = staged
		}
		if f.Payload.PairKey == key && f.Status == lifecycle.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

// GetWalletConfig returns the staged or committed wallet document.
func (tx *memTx) GetWalletConfig(ctx context.Context) (*model.WalletConfig, error) {
	if tx.wallet != nil {
		return cloneWallet(tx.wallet), nil
	}
	return tx.s.GetWalletConfig(ctx)
}

// SetWalletConfig stages a replacement wallet document.
func (tx *memTx) SetWalletConfig(ctx context.Context, cfg *model.WalletConfig) error {
	if err := tx.lockRow(ctx, walletLockKey); err != nil {
		return err
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	tx.wallet = cloneWallet(cfg)
	return nil
}
