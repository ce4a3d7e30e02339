package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/config"
	"coins-catcher/internal/metrics"
	"coins-catcher/internal/model"
	"coins-catcher/internal/repository"
	"coins-catcher/internal/reward"
)

// RewardService processes reward claims. Eligibility is always
// re-evaluated against the locked account row, so client timers are only
// advisory.
type RewardService struct {
	clock
	store     repository.Store
	policies  *reward.Registry
	amounts   map[model.RewardType]int64
	schedule  reward.Schedule
	loc       *time.Location
	pointsPer int64
	maxPoints int64
}

// NewRewardService creates a RewardService from the rewards config.
func NewRewardService(store repository.Store, cfg config.RewardsConfig, loc *time.Location) (*RewardService, error) {
	if loc == nil {
		loc = time.UTC
	}
	schedule, err := reward.NewSchedule(cfg.DailySchedule)
	if err != nil {
		return nil, err
	}
	policies, err := reward.NewRegistry(
		reward.FixedCooldown{Reward: model.RewardHourly, Cooldown: cfg.Hourly.Cooldown},
		reward.FixedCooldown{Reward: model.RewardFaucet, Cooldown: cfg.Faucet.Cooldown},
		reward.CalendarDay{Reward: model.RewardDaily, Location: loc},
	)
	if err != nil {
		return nil, err
	}
	return &RewardService{
		store:    store,
		policies: policies,
		amounts: map[model.RewardType]int64{
			model.RewardHourly: cfg.Hourly.Amount,
			model.RewardFaucet: cfg.Faucet.Amount,
		},
		schedule:  schedule,
		loc:       loc,
		pointsPer: cfg.Game.PointsPerCoin,
		maxPoints: cfg.Game.MaxPointsPerSession,
	}, nil
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Reward    model.RewardType   `json:"reward"`
	Awarded   int64              `json:"awarded"`
	Coins     int64              `json:"coins"`
	Streak    int                `json:"streak,omitempty"`
	Carry     int64              `json:"points_carry,omitempty"`
	Next      reward.Eligibility `json:"-"`
	ClaimedAt time.Time          `json:"claimed_at"`
}

// Claim awards an hourly, faucet or daily reward to the caller.
func (s *RewardService) Claim(ctx context.Context, sess model.Session, t model.RewardType) (*ClaimResult, error) {
	policy, ok := s.policies.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReward, t)
	}

	var res *ClaimResult
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		a, err := lockActive(ctx, tx, sess.AccountID)
		if err != nil {
			return err
		}

		now := s.Now()
		if el := policy.Evaluate(a.LastClaim(t), now); !el.CanClaim {
			return &IneligibleError{Reward: t, Remaining: el.Remaining}
		}

		amount := s.amounts[t]
		if t == model.RewardDaily {
			a.DailyStreak = reward.NextStreak(a.LastDailyClaim, a.DailyStreak, now, s.loc)
			amount = s.schedule.Amount(a.DailyStreak)
		}
		a.SetLastClaim(t, now)

		if err := post(ctx, tx, a, posting{
			Coins:       amount,
			PKR:         decimal.Zero,
			Type:        model.TxTypeForReward(t),
			Description: claimDescription(t, a.DailyStreak),
			At:          now,
		}); err != nil {
			return err
		}

		res = &ClaimResult{
			Reward:    t,
			Awarded:   amount,
			Coins:     a.Coins,
			Next:      policy.Evaluate(a.LastClaim(t), now),
			ClaimedAt: now,
		}
		if t == model.RewardDaily {
			res.Streak = a.DailyStreak
		}
		return nil
	})
	if err != nil {
		metrics.RecordClaim(string(t), claimOutcome(err), 0)
		return nil, err
	}

	metrics.RecordClaim(string(t), "ok", res.Awarded)
	log.Info().
		Str("account_id", sess.AccountID).
		Str("reward", string(t)).
		Int64("awarded", res.Awarded).
		Int("streak", res.Streak).
		Msg("Reward claimed")
	return res, nil
}

// ClaimGame converts a mini-game session's points into coins. Points that
// do not make a whole coin are carried to the next session.
func (s *RewardService) ClaimGame(ctx context.Context, sess model.Session, points int64) (*ClaimResult, error) {
	if points <= 0 {
		metrics.RecordClaim(string(model.RewardGame), "invalid", 0)
		return nil, fmt.Errorf("%w: points must be positive", ErrInvalidAmount)
	}
	if s.maxPoints > 0 && points > s.maxPoints {
		metrics.RecordClaim(string(model.RewardGame), "invalid", 0)
		return nil, fmt.Errorf("%w: points must be between 1 and %d", ErrInvalidAmount, s.maxPoints)
	}

	var res *ClaimResult
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		a, err := lockActive(ctx, tx, sess.AccountID)
		if err != nil {
			return err
		}

		now := s.Now()
		coins, carry, ok := reward.ConvertPoints(a.GamePointsCarry, points, s.pointsPer)
		if !ok {
			return fmt.Errorf("%w: %d points cannot be converted", ErrInvalidAmount, points)
		}
		a.GamePointsCarry = carry
		if coins > 0 {
			err = post(ctx, tx, a, posting{
				Coins:       coins,
				PKR:         decimal.Zero,
				Type:        model.TxTypeGame,
				Description: fmt.Sprintf("Mini-game: %d points", points),
				At:          now,
			})
		} else {
			err = tx.UpdateAccount(ctx, a, model.TxTypeGame)
		}
		if err != nil {
			return err
		}

		res = &ClaimResult{
			Reward:    model.RewardGame,
			Awarded:   coins,
			Coins:     a.Coins,
			Carry:     carry,
			Next:      reward.Eligibility{CanClaim: true},
			ClaimedAt: now,
		}
		return nil
	})
	if err != nil {
		metrics.RecordClaim(string(model.RewardGame), claimOutcome(err), 0)
		return nil, err
	}

	metrics.RecordClaim(string(model.RewardGame), "ok", res.Awarded)
	log.Info().
		Str("account_id", sess.AccountID).
		Int64("points", points).
		Int64("awarded", res.Awarded).
		Int64("carry", res.Carry).
		Msg("Game points converted")
	return res, nil
}

// RewardStatus is the advisory state of one reward for display.
type RewardStatus struct {
	Reward      model.RewardType `json:"reward"`
	CanClaim    bool             `json:"can_claim"`
	MsRemaining int64            `json:"ms_remaining"`
	Amount      int64            `json:"amount"`
	Streak      int              `json:"streak,omitempty"`
}

// Status reports the eligibility of every timed reward. The result is
// advisory; Claim decides.
func (s *RewardService) Status(ctx context.Context, accountID string) ([]RewardStatus, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	types := s.policies.Types()
	out := make([]RewardStatus, 0, len(types))
	for _, t := range types {
		p, _ := s.policies.Get(t)
		el := p.Evaluate(a.LastClaim(t), now)
		st := RewardStatus{
			Reward:      t,
			CanClaim:    el.CanClaim,
			MsRemaining: el.MsRemaining(),
			Amount:      s.amounts[t],
		}
		if t == model.RewardDaily {
			st.Streak = a.DailyStreak
			next := a.DailyStreak
			if el.CanClaim {
				next = reward.NextStreak(a.LastDailyClaim, a.DailyStreak, now, s.loc)
			}
			st.Amount = s.schedule.Amount(next)
		}
		out = append(out, st)
	}
	return out, nil
}

func claimDescription(t model.RewardType, streak int) string {
	switch t {
	case model.RewardHourly:
		return "Hourly reward"
	case model.RewardFaucet:
		return "Faucet reward"
	case model.RewardDaily:
		return fmt.Sprintf("Daily reward, day %d", streak)
	}
	return string(t)
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, ErrIneligible):
		return "ineligible"
	case errors.Is(err, ErrAccountBlocked):
		return "blocked"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid"
	}
	return "error"
}
