package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/config"
	"coins-catcher/internal/model"
	"coins-catcher/internal/repository"
)

const referralCodeAttempts = 5

// AccountService handles signup, referral and profile operations.
type AccountService struct {
	clock
	store         repository.Store
	startingBonus int64
	referralBonus int64
	admin         config.AdminConfig
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(store repository.Store, rewards config.RewardsConfig, admin config.AdminConfig) *AccountService {
	return &AccountService{
		store:         store,
		startingBonus: rewards.StartingBonus,
		referralBonus: rewards.ReferralBonus,
		admin:         admin,
	}
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	AccountID    string
	DisplayName  string
	Email        string
	ReferralCode string
}

// Register creates an account with a fresh referral code and the starting
// bonus. A referral code credits the referrer with the referral bonus.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	if strings.TrimSpace(in.AccountID) == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	in.ReferralCode = strings.ToUpper(strings.TrimSpace(in.ReferralCode))

	var (
		created *model.Account
		err     error
	)
	// A referral code collision aborts the transaction, so each attempt gets
	// its own.
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		created, err = s.register(ctx, in)
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		log.Debug().Str("account_id", in.AccountID).Int("attempt", attempt+1).Msg("Referral code collision, retrying")
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("account_id", created.ID).
		Str("referral_code", created.ReferralCode).
		Bool("referred", created.ReferredBy != nil).
		Msg("Account registered")
	return created, nil
}

func (s *AccountService) register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	var created *model.Account
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetAccount(ctx, in.AccountID); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		var referrer *model.Account
		if in.ReferralCode != "" {
			found, err := tx.GetAccountByReferralCode(ctx, in.ReferralCode)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("unknown referral code %q: %w", in.ReferralCode, ErrNotFound)
				}
				return err
			}
			if referrer, err = tx.GetAccountForUpdate(ctx, found.ID); err != nil {
				return err
			}
		}

		code, err := newReferralCode()
		if err != nil {
			return err
		}
		now := s.Now()
		a := &model.Account{
			ID:           in.AccountID,
			DisplayName:  in.DisplayName,
			Email:        in.Email,
			PKRBalance:   decimal.Zero,
			IsAdmin:      s.admin.IsBootstrapAdmin(in.AccountID),
			ReferralCode: code,
		}
		if referrer != nil {
			a.ReferredBy = &referrer.ID
		}
		if err := tx.CreateAccount(ctx, a); err != nil {
			return err
		}

		if s.startingBonus > 0 {
			if err := post(ctx, tx, a, posting{
				Coins:       s.startingBonus,
				PKR:         decimal.Zero,
				Type:        model.TxTypeInitial,
				Description: "Starting bonus",
				At:          now,
			}); err != nil {
				return err
			}
		}

		// Blocked referrers keep their account but earn nothing new.
		if referrer != nil && !referrer.IsBlocked && s.referralBonus > 0 {
			if err := post(ctx, tx, referrer, posting{
				Coins:       s.referralBonus,
				PKR:         decimal.Zero,
				Type:        model.TxTypeReferral,
				Description: "Referral: " + a.ID,
				At:          now,
			}); err != nil {
				return err
			}
		}

		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EnsureAccount returns the account, registering it first if needed.
// The boolean reports whether it was created by this call.
func (s *AccountService) EnsureAccount(ctx context.Context, in RegisterInput) (*model.Account, bool, error) {
	a, err := s.store.GetAccount(ctx, in.AccountID)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to ensure account: %w", err)
	}

	a, err = s.Register(ctx, in)
	if errors.Is(err, ErrAlreadyRegistered) {
		a, err = s.store.GetAccount(ctx, in.AccountID)
		return a, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// Get retrieves an account by id.
func (s *AccountService) Get(ctx context.Context, accountID string) (*model.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// ProfileUpdate changes the non-nil fields of a profile.
type ProfileUpdate struct {
	DisplayName    *string `json:"display_name"`
	PaymentMethod  *string `json:"payment_method"`
	PaymentAccount *string `json:"payment_account"`
	PubgID         *string `json:"pubg_id"`
	PubgName       *string `json:"pubg_name"`
	FreeFireID     *string `json:"free_fire_id"`
	FreeFireName   *string `json:"free_fire_name"`
}

// UpdateProfile sets the caller's display name and withdrawal destinations.
func (s *AccountService) UpdateProfile(ctx context.Context, sess model.Session, u ProfileUpdate) (*model.Account, error) {
	var updated *model.Account
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAccountForUpdate(ctx, sess.AccountID)
		if err != nil {
			return err
		}
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = strings.TrimSpace(*v)
			}
		}
		set(&a.DisplayName, u.DisplayName)
		set(&a.PaymentMethod, u.PaymentMethod)
		set(&a.PaymentAccount, u.PaymentAccount)
		set(&a.PubgID, u.PubgID)
		set(&a.PubgName, u.PubgName)
		set(&a.FreeFireID, u.FreeFireID)
		set(&a.FreeFireName, u.FreeFireName)

		if err := tx.UpdateAccount(ctx, a, "profile"); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Transactions lists an account's ledger, newest first.
func (s *AccountService) Transactions(ctx context.Context, accountID string, limit int) ([]*model.Transaction, error) {
	return s.store.ListTransactions(ctx, accountID, limit)
}

// Reconciliation compares stored balances with the sums of the ledger.
type Reconciliation struct {
	AccountID   string          `json:"account_id"`
	Coins       int64           `json:"coins"`
	PKRBalance  decimal.Decimal `json:"pkr_balance"`
	LedgerCoins int64           `json:"ledger_coins"`
	LedgerPKR   decimal.Decimal `json:"ledger_pkr"`
	Entries     int             `json:"entries"`
	Balanced    bool            `json:"balanced"`
}

// Reconcile recomputes an account's balances from its transactions.
func (s *AccountService) Reconcile(ctx context.Context, accountID string) (*Reconciliation, error) {
	return reconcile(ctx, s.store, accountID)
}

func reconcile(ctx context.Context, r repository.Reader, accountID string) (*Reconciliation, error) {
	a, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	totals, err := r.SumTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return &Reconciliation{
		AccountID:   a.ID,
		Coins:       a.Coins,
		PKRBalance:  a.PKRBalance,
		LedgerCoins: totals.Coins,
		LedgerPKR:   totals.PKR,
		Entries:     totals.Count,
		Balanced:    a.Coins == totals.Coins && a.PKRBalance.Equal(totals.PKR),
	}, nil
}

// newReferralCode returns 8 uppercase base32 characters.
func newReferralCode() (string, error) {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	return base32.StdEncoding.EncodeToString(b[:]), nil
}
