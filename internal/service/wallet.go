package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/metrics"
	"coins-catcher/internal/model"
	"coins-catcher/internal/pricing"
	"coins-catcher/internal/repository"
)

// Estimator prices withdrawal options. Its answers are advisory.
type Estimator interface {
	Estimate(ctx context.Context, req pricing.EstimateRequest) (*pricing.Estimate, error)
}

// WalletService converts coins to PKR and serves pricing.
type WalletService struct {
	clock
	store      repository.Store
	estimator  Estimator
	minConvert int64
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(store repository.Store, estimator Estimator, minConvertCoins int64) *WalletService {
	return &WalletService{
		store:      store,
		estimator:  estimator,
		minConvert: minConvertCoins,
	}
}

// ConvertResult is the outcome of a conversion.
type ConvertResult struct {
	CoinsDebited int64           `json:"coins_debited"`
	PKRCredited  decimal.Decimal `json:"pkr_credited"`
	Coins        int64           `json:"coins"`
	PKRBalance   decimal.Decimal `json:"pkr_balance"`
}

// Convert debits coins and credits their exact PKR value in one ledger
// record carrying both deltas.
func (s *WalletService) Convert(ctx context.Context, sess model.Session, coins int64) (*ConvertResult, error) {
	if coins <= 0 || coins < s.minConvert {
		metrics.RecordConversion("invalid")
		return nil, fmt.Errorf("%w: minimum conversion is %d coins", ErrInvalidAmount, s.minConvert)
	}

	var res *ConvertResult
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		a, err := lockActive(ctx, tx, sess.AccountID)
		if err != nil {
			return err
		}

		cfg, err := tx.GetWalletConfig(ctx)
		if err != nil {
			return err
		}
		if cfg == nil || !cfg.CoinToPKRRate.IsPositive() {
			return ErrConversionUnavailable
		}
		pkr := pricing.CoinsToLocal(coins, cfg.CoinToPKRRate)
		if err := post(ctx, tx, a, posting{
			Coins:       -coins,
			PKR:         pkr,
			Type:        model.TxTypeConvert,
			Description: fmt.Sprintf("Converted %d coins", coins),
			At:          s.Now(),
		}); err != nil {
			return err
		}

		res = &ConvertResult{
			CoinsDebited: coins,
			PKRCredited:  pkr,
			Coins:        a.Coins,
			PKRBalance:   a.PKRBalance,
		}
		return nil
	})
	if err != nil {
		metrics.RecordConversion(claimOutcome(err))
		return nil, err
	}

	metrics.RecordConversion("ok")
	log.Info().
		Str("account_id", sess.AccountID).
		Int64("coins", coins).
		Str("pkr", res.PKRCredited.String()).
		Msg("Coins converted")
	return res, nil
}

// Quote returns the display value of coins in PKR.
func (s *WalletService) Quote(ctx context.Context, coins int64) (decimal.Decimal, error) {
	if coins < 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	cfg, err := s.store.GetWalletConfig(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if cfg == nil || !cfg.CoinToPKRRate.IsPositive() {
		return decimal.Zero, ErrConversionUnavailable
	}
	return pricing.RoundForDisplay(pricing.CoinsToLocal(coins, cfg.CoinToPKRRate)), nil
}

// PriceCatalog returns the package tiers of a game currency. An empty list
// means purchases of that kind are temporarily unavailable.
func (s *WalletService) PriceCatalog(ctx context.Context, kind model.RequestKind) ([]model.Package, error) {
	if kind != model.RequestUC && kind != model.RequestDiamond {
		return nil, fmt.Errorf("%w: no catalog for %q", ErrInvalidInput, kind)
	}
	cfg, err := s.store.GetWalletConfig(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.Catalog(cfg, kind), nil
}

// GetConfig returns the wallet configuration, or nil when none is set.
func (s *WalletService) GetConfig(ctx context.Context) (*model.WalletConfig, error) {
	return s.store.GetWalletConfig(ctx)
}

// SetConfig replaces the wallet configuration. Admin only.
func (s *WalletService) SetConfig(ctx context.Context, sess model.Session, cfg *model.WalletConfig) (*model.WalletConfig, error) {
	if err := pricing.ValidateWalletConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := requireAdmin(ctx, tx, sess); err != nil {
			return err
		}
		cfg.UpdatedAt = s.Now()
		return tx.SetWalletConfig(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("admin_id", sess.AccountID).
		Str("operation", "set_wallet_config").
		Str("rate", cfg.CoinToPKRRate.String()).
		Int("uc_packages", len(cfg.UCPackages)).
		Int("diamond_packages", len(cfg.DiamondPackages)).
		Msg("Admin operation")
	metrics.RecordAdminOp("set_wallet_config")
	return cfg, nil
}

// Estimate asks the pricing estimator what the caller's coins could buy.
// Cash coin costs are recomputed from the configured rate.
func (s *WalletService) Estimate(ctx context.Context, sess model.Session, wt pricing.WithdrawalType) (*pricing.Estimate, error) {
	if !wt.Valid() {
		return nil, fmt.Errorf("%w: withdrawal type %q", ErrInvalidInput, wt)
	}
	a, err := s.store.GetAccount(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if s.estimator == nil {
		return nil, fmt.Errorf("%w: estimator not configured", ErrExternalService)
	}

	est, err := s.estimator.Estimate(ctx, pricing.EstimateRequest{WithdrawalType: wt, UserCoins: a.Coins})
	if err != nil {
		log.Warn().Err(err).Str("account_id", a.ID).Str("type", string(wt)).Msg("Estimate failed")
		return nil, err
	}

	cfg, err := s.store.GetWalletConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		est.Reprice(cfg.CoinToPKRRate, cfg.USDToPKRRate, a.Coins)
	}
	return est, nil
}
