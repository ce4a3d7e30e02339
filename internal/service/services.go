package service

import (
	"time"

	"coins-catcher/internal/config"
	"coins-catcher/internal/repository"
)

// Services bundles the ledger services the transports depend on.
type Services struct {
	Accounts    *AccountService
	Rewards     *RewardService
	Wallet      *WalletService
	Withdrawals *WithdrawalService
	Admin       *AdminService
	Friends     *FriendService
	Ranking     *RankingService
}

// New wires every service over one store.
func New(store repository.Store, cfg *config.Config, estimator Estimator) (*Services, error) {
	loc := cfg.Location()
	rewards, err := NewRewardService(store, cfg.Rewards, loc)
	if err != nil {
		return nil, err
	}
	return &Services{
		Accounts:    NewAccountService(store, cfg.Rewards, cfg.Admin),
		Rewards:     rewards,
		Wallet:      NewWalletService(store, estimator, cfg.Wallet.MinConvertCoins),
		Withdrawals: NewWithdrawalService(store, cfg.Withdrawal.MinCashPKR),
		Admin:       NewAdminService(store),
		Friends:     NewFriendService(store),
		Ranking:     NewRankingService(store, loc),
	}, nil
}

// SetClock pins the time source of every service. Used by tests.
func (s *Services) SetClock(now func() time.Time) {
	c := clock{now: now}
	s.Accounts.clock = c
	s.Rewards.clock = c
	s.Wallet.clock = c
	s.Withdrawals.clock = c
	s.Admin.clock = c
	s.Friends.clock = c
	s.Ranking.clock = c
}
