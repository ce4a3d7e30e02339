// Package service implements the reward and ledger core on top of a
// transactional store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/model"
	"coins-catcher/internal/repository"
)

// posting is one balance change and the ledger record that explains it.
type posting struct {
	Coins       int64
	PKR         decimal.Decimal
	Type        string
	Description string
	RequestID   *uuid.UUID
	At          time.Time
}

// post applies p to a locked account, appends the matching Transaction and
// writes the account back. Neither balance may go negative.
func post(ctx context.Context, tx repository.Tx, a *model.Account, p posting) error {
	coins := a.Coins + p.Coins
	pkr := a.PKRBalance.Add(p.PKR)
	if coins < 0 || pkr.IsNegative() {
		return ErrInsufficientBalance
	}

	if err := tx.AppendTransaction(ctx, &model.Transaction{
		ID:          uuid.New(),
		AccountID:   a.ID,
		CoinDelta:   p.Coins,
		PKRDelta:    p.PKR,
		Type:        p.Type,
		Description: p.Description,
		RequestID:   p.RequestID,
		CreatedAt:   p.At,
	}); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	a.Coins = coins
	a.PKRBalance = pkr
	if err := tx.UpdateAccount(ctx, a, p.Type); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// lockActive locks the caller's account and rejects blocked accounts.
func lockActive(ctx context.Context, tx repository.Tx, accountID string) (*model.Account, error) {
	a, err := tx.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.IsBlocked {
		return nil, ErrAccountBlocked
	}
	return a, nil
}

// requireAdmin checks the caller's stored admin flag. The token's claim is
// never trusted on its own.
func requireAdmin(ctx context.Context, r accountGetter, sess model.Session) (*model.Account, error) {
	if sess.AccountID == "" {
		return nil, ErrPermission
	}
	a, err := r.GetAccount(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPermission
		}
		return nil, err
	}
	if !a.IsAdmin || a.IsBlocked {
		return nil, ErrPermission
	}
	return a, nil
}

type accountGetter interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// clock is embedded by services so tests can pin time.
type clock struct {
	now func() time.Time
}

func (c clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now()
}
