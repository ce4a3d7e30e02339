package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/metrics"
	"coins-catcher/internal/model"
	"coins-catcher/internal/repository"
)

// AdminService handles manual adjustments and access control. Every call
// checks the caller's stored admin flag inside the same transaction as the
// change.
type AdminService struct {
	clock
	store repository.Store
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(store repository.Store) *AdminService {
	return &AdminService{store: store}
}

// GiveBonus credits coins to any account, blocked or not.
func (s *AdminService) GiveBonus(ctx context.Context, sess model.Session, accountID string, amount int64, reason string) (*model.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: bonus must be positive", ErrInvalidAmount)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Admin bonus"
	}

	return s.mutate(ctx, sess, accountID, "give_bonus", func(tx repository.Tx, a *model.Account) error {
		return post(ctx, tx, a, posting{
			Coins:       amount,
			PKR:         decimal.Zero,
			Type:        model.TxTypeAdminBonus,
			Description: reason,
			At:          s.Now(),
		})
	}, func(e *zerolog.Event) *zerolog.Event { return e.Int64("amount", amount).Str("reason", reason) })
}

// SetBlocked blocks or unblocks an account. Balances and pending requests
// are left as they are.
func (s *AdminService) SetBlocked(ctx context.Context, sess model.Session, accountID string, blocked bool) (*model.Account, error) {
	if accountID == sess.AccountID {
		return nil, fmt.Errorf("%w: cannot block yourself", ErrInvalidInput)
	}
	return s.setFlag(ctx, sess, accountID, "set_blocked", blocked, func(a *model.Account) { a.IsBlocked = blocked })
}

// SetLogoutDisabled toggles whether the account may sign out.
func (s *AdminService) SetLogoutDisabled(ctx context.Context, sess model.Session, accountID string, disabled bool) (*model.Account, error) {
	return s.setFlag(ctx, sess, accountID, "set_logout_disabled", disabled, func(a *model.Account) { a.LogoutDisabled = disabled })
}

// SetAdmin grants or revokes admin rights.
func (s *AdminService) SetAdmin(ctx context.Context, sess model.Session, accountID string, admin bool) (*model.Account, error) {
	if accountID == sess.AccountID {
		return nil, fmt.Errorf("%w: cannot change your own admin flag", ErrInvalidInput)
	}
	return s.setFlag(ctx, sess, accountID, "set_admin", admin, func(a *model.Account) { a.IsAdmin = admin })
}

// ListAccounts pages through accounts. Admin only.
func (s *AdminService) ListAccounts(ctx context.Context, sess model.Session, f repository.AccountFilter) ([]*model.Account, error) {
	if _, err := requireAdmin(ctx, s.store, sess); err != nil {
		return nil, err
	}
	return s.store.ListAccounts(ctx, f)
}

// Reconcile checks any account's balances against its ledger. Admin only.
func (s *AdminService) Reconcile(ctx context.Context, sess model.Session, accountID string) (*Reconciliation, error) {
	if _, err := requireAdmin(ctx, s.store, sess); err != nil {
		return nil, err
	}
	return reconcile(ctx, s.store, accountID)
}

func (s *AdminService) setFlag(ctx context.Context, sess model.Session, accountID, op string, value bool, apply func(*model.Account)) (*model.Account, error) {
	return s.mutate(ctx, sess, accountID, op, func(tx repository.Tx, a *model.Account) error {
		apply(a)
		return tx.UpdateAccount(ctx, a, op)
	}, func(e *zerolog.Event) *zerolog.Event { return e.Bool("value", value) })
}

// mutate runs fn against the locked target account after checking the
// caller is an admin, then logs the committed operation.
func (s *AdminService) mutate(
	ctx context.Context,
	sess model.Session,
	accountID, op string,
	fn func(tx repository.Tx, a *model.Account) error,
	fields func(*zerolog.Event) *zerolog.Event,
) (*model.Account, error) {
	var updated *model.Account
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := requireAdmin(ctx, tx, sess); err != nil {
			return err
		}
		a, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := fn(tx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		log.Warn().Err(err).
			Str("admin_id", sess.AccountID).
			Str("target_id", accountID).
			Str("operation", op).
			Msg("Admin operation failed")
		return nil, err
	}

	fields(log.Info().
		Str("admin_id", sess.AccountID).
		Str("target_id", updated.ID).
		Str("operation", op)).
		Msg("Admin operation")
	metrics.RecordAdminOp(op)
	return updated, nil
}
