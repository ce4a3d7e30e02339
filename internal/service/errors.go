package service

import (
	"errors"
	"fmt"
	"time"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/pricing"
	"coins-catcher/internal/repository"
)

// Errors returned by the ledger core. Callers match them with errors.Is.
var (
	ErrIneligible            = errors.New("reward is not available yet")
	ErrAccountBlocked        = errors.New("account is blocked")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrMissingProfile        = errors.New("payment or game details missing from profile")
	ErrPermission            = errors.New("permission denied")
	ErrNotFound              = repository.ErrNotFound
	ErrExternalService       = pricing.ErrExternalService
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConversionUnavailable = errors.New("conversion is not configured")
	ErrPackageNotFound       = pricing.ErrPackageNotFound
	ErrRequestNotPending     = lifecycle.ErrNotPending
	ErrReasonRequired        = lifecycle.ErrReasonRequired
	ErrDuplicateRequest      = errors.New("a pending request already exists")
	ErrSelfRequest           = errors.New("cannot send a request to yourself")
	ErrAlreadyRegistered     = errors.New("account already registered")
	ErrUnknownReward         = errors.New("unknown reward type")
)

// IneligibleError reports how long until a reward can be claimed again.
type IneligibleError struct {
	Reward    model.RewardType
	Remaining time.Duration
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("%s reward available in %s", e.Reward, e.Remaining.Round(time.Second))
}

func (e *IneligibleError) Unwrap() error { return ErrIneligible }
