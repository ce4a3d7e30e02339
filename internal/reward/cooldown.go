// Package reward holds the pure claim rules: cooldown evaluation, daily
// streaks and mini-game point conversion. Nothing here does I/O.
package reward

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"coins-catcher/internal/model"
)

// Eligibility is the result of evaluating a claim.
type Eligibility struct {
	CanClaim  bool          `json:"can_claim"`
	Remaining time.Duration `json:"-"`
}

// MsRemaining returns Remaining in whole milliseconds.
func (e Eligibility) MsRemaining() int64 {
	return e.Remaining.Milliseconds()
}

// Evaluate applies a fixed cooldown. A nil lastClaim is always claimable.
// A lastClaim in the future (clock skew) counts as zero elapsed time.
func Evaluate(lastClaim *time.Time, cooldown time.Duration, now time.Time) Eligibility {
	if lastClaim == nil {
		return Eligibility{CanClaim: true}
	}
	elapsed := now.Sub(*lastClaim)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= cooldown {
		return Eligibility{CanClaim: true}
	}
	return Eligibility{Remaining: cooldown - elapsed}
}

// EvaluateDaily applies the calendar-day policy in loc: the reward is
// claimable once per local day and the remaining time runs to the next
// local midnight.
func EvaluateDaily(lastClaim *time.Time, now time.Time, loc *time.Location) Eligibility {
	if lastClaim == nil {
		return Eligibility{CanClaim: true}
	}
	today := StartOfDay(now, loc)
	if lastClaim.Before(today) {
		return Eligibility{CanClaim: true}
	}
	return Eligibility{Remaining: today.AddDate(0, 0, 1).Sub(now)}
}

// StartOfDay returns local midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// Policy decides whether a reward type can be claimed.
type Policy interface {
	Type() model.RewardType
	Evaluate(lastClaim *time.Time, now time.Time) Eligibility
}

// FixedCooldown gates a reward behind a constant duration.
type FixedCooldown struct {
	Reward   model.RewardType
	Cooldown time.Duration
}

func (p FixedCooldown) Type() model.RewardType { return p.Reward }

func (p FixedCooldown) Evaluate(lastClaim *time.Time, now time.Time) Eligibility {
	return Evaluate(lastClaim, p.Cooldown, now)
}

// CalendarDay gates a reward to once per local calendar day.
type CalendarDay struct {
	Reward   model.RewardType
	Location *time.Location
}

func (p CalendarDay) Type() model.RewardType { return p.Reward }

func (p CalendarDay) Evaluate(lastClaim *time.Time, now time.Time) Eligibility {
	return EvaluateDaily(lastClaim, now, p.Location)
}

// Registry maps reward types to their policies.
// It is safe for concurrent use.
type Registry struct {
	policies map[model.RewardType]Policy
	mu       sync.RWMutex
}

// NewRegistry creates a registry holding the given policies.
func NewRegistry(policies ...Policy) (*Registry, error) {
	r := &Registry{policies: make(map[model.RewardType]Policy)}
	for _, p := range policies {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a policy, replacing any previous policy for the same type.
func (r *Registry) Register(p Policy) error {
	if p == nil {
		return fmt.Errorf("cannot register nil policy")
	}
	if p.Type() == "" {
		return fmt.Errorf("policy reward type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Type()] = p
	return nil
}

// Get returns the policy for a reward type.
func (r *Registry) Get(t model.RewardType) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[t]
	return p, ok
}

// Types returns the registered reward types in a stable order.
func (r *Registry) Types() []model.RewardType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]model.RewardType, 0, len(r.policies))
	for t := range r.policies {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
