// Package lifecycle implements the pending -> terminal state machine shared by
// withdrawal/purchase requests and friend requests.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s != StatusPending && s != ""
}

// Lifecycle errors.
var (
	ErrNotPending     = errors.New("request is not pending")
	ErrInvalidOutcome = errors.New("outcome not allowed for this request")
	ErrReasonRequired = errors.New("a reason is required for this outcome")
)

// Policy describes which terminal outcomes a kind of request may reach and
// which of them must carry a reason.
type Policy struct {
	Outcomes      []Status
	ReasonOutcome map[Status]bool
}

// Allows reports whether the outcome is permitted.
func (p Policy) Allows(outcome Status) bool {
	for _, o := range p.Outcomes {
		if o == outcome {
			return true
		}
	}
	return false
}

var (
	// WithdrawalPolicy governs withdrawal/purchase requests. Rejections need a reason.
	WithdrawalPolicy = Policy{
		Outcomes:      []Status{StatusApproved, StatusRejected},
		ReasonOutcome: map[Status]bool{StatusRejected: true},
	}

	// FriendPolicy governs friend requests.
	FriendPolicy = Policy{
		Outcomes: []Status{StatusAccepted, StatusDeclined},
	}
)

// Resolution is the metadata recorded when a request leaves pending.
type Resolution struct {
	Outcome Status    `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	By      string    `json:"by"`
	At      time.Time `json:"at"`
}

// Request is a tagged-state entity over an arbitrary payload.
type Request[P any] struct {
	ID         uuid.UUID   `json:"id"`
	Status     Status      `json:"status"`
	Payload    P           `json:"payload"`
	Resolution *Resolution `json:"resolution,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// New creates a pending request.
func New[P any](id uuid.UUID, payload P) *Request[P] {
	now := time.Now().UTC()
	return &Request[P]{
		ID:        id,
		Status:    StatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Pending reports whether the request can still transition.
func (r *Request[P]) Pending() bool {
	return r.Status == StatusPending
}

// Resolve moves the request to a terminal outcome. The request is left
// untouched when an error is returned.
func (r *Request[P]) Resolve(p Policy, outcome Status, reason, by string, at time.Time) error {
	if !r.Pending() {
		return fmt.Errorf("%w: status is %s", ErrNotPending, r.Status)
	}
	if !outcome.Terminal() || !p.Allows(outcome) {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome)
	}
	reason = strings.TrimSpace(reason)
	if p.ReasonOutcome[outcome] && reason == "" {
		return ErrReasonRequired
	}

	r.Status = outcome
	r.Resolution = &Resolution{Outcome: outcome, Reason: reason, By: by, At: at}
	r.UpdatedAt = at
	return nil
}
