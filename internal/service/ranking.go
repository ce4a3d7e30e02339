package service

import (
	"context"
	"time"

	"coins-catcher/internal/model"
	"coins-catcher/internal/repository"
	"coins-catcher/internal/reward"
)

// DefaultLeaderboardSize is used when a caller asks for no limit.
const DefaultLeaderboardSize = 10

// RankingService handles leaderboards.
type RankingService struct {
	clock
	store    repository.Reader
	timezone *time.Location
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(store repository.Reader, timezone *time.Location) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &RankingService{
		store:    store,
		timezone: timezone,
	}
}

// TopByCoins retrieves the accounts with the largest coin balances.
func (s *RankingService) TopByCoins(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	return s.store.TopAccountsByCoins(ctx, limit)
}

// TopEarnersToday ranks accounts by coins earned from rewards since local
// midnight.
func (s *RankingService) TopEarnersToday(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	since := reward.StartOfDay(s.Now(), s.timezone)
	return s.store.TopEarners(ctx, since, model.RewardTransactionTypes(), limit)
}
