package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/metrics"
	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/pricing"
	"coins-catcher/internal/repository"
)

// WithdrawalService runs cash withdrawals and game currency purchases
// through admin review. The PKR price is held when the request is created
// and returned only if an admin rejects it.
type WithdrawalService struct {
	clock
	store      repository.Store
	minCashPKR decimal.Decimal
}

// NewWithdrawalService creates a new WithdrawalService instance.
func NewWithdrawalService(store repository.Store, minCashPKR float64) *WithdrawalService {
	return &WithdrawalService{
		store:      store,
		minCashPKR: decimal.NewFromFloat(minCashPKR),
	}
}

// CreateWithdrawalInput describes a request. AmountPKR is used for cash,
// PackageAmount selects a uc or diamond tier.
type CreateWithdrawalInput struct {
	Kind          model.RequestKind `json:"kind"`
	AmountPKR     decimal.Decimal   `json:"amount_pkr"`
	PackageAmount int64             `json:"package_amount"`
}

// Create validates and prices a request, holds its PKR price and records
// it as pending.
func (s *WithdrawalService) Create(ctx context.Context, sess model.Session, in CreateWithdrawalInput) (*model.WithdrawalRequest, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: request kind %q", ErrInvalidInput, in.Kind)
	}

	var created *model.WithdrawalRequest
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		a, err := lockActive(ctx, tx, sess.AccountID)
		if err != nil {
			return err
		}
		cfg, err := tx.GetWalletConfig(ctx)
		if err != nil {
			return err
		}

		p := model.WithdrawalPayload{
			AccountID:   a.ID,
			DisplayName: a.DisplayName,
			Email:       a.Email,
			Kind:        in.Kind,
		}
		switch in.Kind {
		case model.RequestCash:
			if a.PaymentAccount == "" {
				return fmt.Errorf("%w: payment account number", ErrMissingProfile)
			}
			if !in.AmountPKR.IsPositive() || in.AmountPKR.LessThan(s.minCashPKR) {
				return fmt.Errorf("%w: minimum withdrawal is %s PKR", ErrInvalidAmount, s.minCashPKR)
			}
			p.AmountPKR = in.AmountPKR
			p.PaymentMethod = a.PaymentMethod
			p.PaymentAccount = a.PaymentAccount
		case model.RequestUC:
			if a.PubgID == "" {
				return fmt.Errorf("%w: PUBG id", ErrMissingProfile)
			}
			pkg, err := pricing.FindPackage(cfg, in.Kind, in.PackageAmount)
			if err != nil {
				return err
			}
			p.AmountPKR, p.PackageAmount = pkg.Price, pkg.Amount
			p.GameID, p.GameName = a.PubgID, a.PubgName
		case model.RequestDiamond:
			if a.FreeFireID == "" {
				return fmt.Errorf("%w: Free Fire id", ErrMissingProfile)
			}
			pkg, err := pricing.FindPackage(cfg, in.Kind, in.PackageAmount)
			if err != nil {
				return err
			}
			p.AmountPKR, p.PackageAmount = pkg.Price, pkg.Amount
			p.GameID, p.GameName = a.FreeFireID, a.FreeFireName
		}

		if p.AmountPKR.GreaterThan(a.PKRBalance) {
			return ErrInsufficientBalance
		}
		if cfg != nil {
			p.CoinEquivalent = pricing.LocalToCoins(p.AmountPKR, cfg.CoinToPKRRate)
		}

		now := s.Now()
		w := model.NewWithdrawalRequest(p)
		w.CreatedAt, w.UpdatedAt = now, now
		if err := tx.CreateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if err := post(ctx, tx, a, posting{
			PKR:         p.AmountPKR.Neg(),
			Type:        model.TxTypeWithdrawal,
			Description: withdrawalDescription(p),
			RequestID:   &w.ID,
			At:          now,
		}); err != nil {
			return err
		}
		created = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal(string(created.Payload.Kind), string(created.Status))
	log.Info().
		Str("account_id", sess.AccountID).
		Str("request_id", created.ID.String()).
		Str("kind", string(created.Payload.Kind)).
		Str("amount_pkr", created.Payload.AmountPKR.String()).
		Msg("Withdrawal requested")
	return created, nil
}

// Approve marks a pending request fulfilled. Balances are not touched; the
// price was held at creation.
func (s *WithdrawalService) Approve(ctx context.Context, sess model.Session, id uuid.UUID) (*model.WithdrawalRequest, error) {
	return s.resolve(ctx, sess, id, lifecycle.StatusApproved, "")
}

// Reject marks a pending request rejected and refunds exactly the held
// amount. A reason is required.
func (s *WithdrawalService) Reject(ctx context.Context, sess model.Session, id uuid.UUID, reason string) (*model.WithdrawalRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	return s.resolve(ctx, sess, id, lifecycle.StatusRejected, reason)
}

func (s *WithdrawalService) resolve(ctx context.Context, sess model.Session, id uuid.UUID, outcome lifecycle.Status, reason string) (*model.WithdrawalRequest, error) {
	var resolved *model.WithdrawalRequest
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		admin, err := requireAdmin(ctx, tx, sess)
		if err != nil {
			return err
		}
		w, err := tx.GetWithdrawalForUpdate(ctx, id)
		if err != nil {
			return err
		}

		now := s.Now()
		if err := w.Resolve(lifecycle.WithdrawalPolicy, outcome, reason, admin.ID, now); err != nil {
			return err
		}
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return err
		}

		if outcome == lifecycle.StatusRejected {
			// Refunds go through even if the owner was blocked meanwhile.
			owner, err := tx.GetAccountForUpdate(ctx, w.Payload.AccountID)
			if err != nil {
				return err
			}
			if err := post(ctx, tx, owner, posting{
				PKR:         w.Payload.AmountPKR,
				Type:        model.TxTypeWithdrawRefund,
				Description: "Refund: " + w.Resolution.Reason,
				RequestID:   &w.ID,
				At:          now,
			}); err != nil {
				return err
			}
		}

		resolved = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("admin_id", sess.AccountID).
		Str("target_id", resolved.Payload.AccountID).
		Str("operation", "withdrawal_"+string(outcome)).
		Str("request_id", resolved.ID.String()).
		Str("amount_pkr", resolved.Payload.AmountPKR.String()).
		Str("reason", reason).
		Msg("Admin operation")
	metrics.RecordWithdrawal(string(resolved.Payload.Kind), string(resolved.Status))
	metrics.RecordAdminOp("withdrawal_" + string(outcome))
	return resolved, nil
}

// ListMine lists the caller's requests, optionally by status.
func (s *WithdrawalService) ListMine(ctx context.Context, sess model.Session, status lifecycle.Status) ([]*model.WithdrawalRequest, error) {
	if sess.AccountID == "" {
		return nil, ErrPermission
	}
	return s.store.ListWithdrawals(ctx, repository.WithdrawalFilter{AccountID: sess.AccountID, Status: status})
}

// ListAll lists every account's requests. Admin only.
func (s *WithdrawalService) ListAll(ctx context.Context, sess model.Session, status lifecycle.Status) ([]*model.WithdrawalRequest, error) {
	if _, err := requireAdmin(ctx, s.store, sess); err != nil {
		return nil, err
	}
	return s.store.ListWithdrawals(ctx, repository.WithdrawalFilter{Status: status})
}

func withdrawalDescription(p model.WithdrawalPayload) string {
	switch p.Kind {
	case model.RequestUC:
		return fmt.Sprintf("%d UC purchase", p.PackageAmount)
	case model.RequestDiamond:
		return fmt.Sprintf("%d diamond purchase", p.PackageAmount)
	}
	return fmt.Sprintf("Cash withdrawal to %s", p.PaymentMethod)
}
