package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type payload struct {
	Amount int64
}

func TestResolve_WithdrawalOutcomes(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		outcome Status
		reason  string
		wantErr error
	}{
		{"approve without reason", StatusApproved, "", nil},
		{"reject with reason", StatusRejected, "wrong account number", nil},
		{"reject with blank reason", StatusRejected, "   ", ErrReasonRequired},
		{"reject without reason", StatusRejected, "", ErrReasonRequired},
		{"friend outcome not allowed", StatusAccepted, "", ErrInvalidOutcome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(uuid.New(), payload{Amount: 10})
			err := r.Resolve(WithdrawalPolicy, tt.outcome, tt.reason, "admin", now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, StatusPending, r.Status)
				assert.Nil(t, r.Resolution)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, r.Status)
			require.NotNil(t, r.Resolution)
			assert.Equal(t, "admin", r.Resolution.By)
			assert.Equal(t, now, r.Resolution.At)
		})
	}
}

func TestResolve_FriendOutcomes(t *testing.T) {
	r := New(uuid.New(), payload{})
	require.NoError(t, r.Resolve(FriendPolicy, StatusDeclined, "", "bob", time.Now()))
	assert.Equal(t, StatusDeclined, r.Status)

	r = New(uuid.New(), payload{})
	assert.ErrorIs(t, r.Resolve(FriendPolicy, StatusRejected, "x", "bob", time.Now()), ErrInvalidOutcome)
}

// TestTerminalStatesAreImmutableProperty checks that once a request reaches
// any terminal state, no further Resolve call changes it.
func TestTerminalStatesAreImmutableProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		first := rapid.SampledFrom(WithdrawalPolicy.Outcomes).Draw(t, "first")
		second := rapid.SampledFrom([]Status{StatusApproved, StatusRejected, StatusAccepted, StatusDeclined}).Draw(t, "second")

		r := New(uuid.New(), payload{Amount: 1})
		if err := r.Resolve(WithdrawalPolicy, first, "reason", "admin", time.Now()); err != nil {
			t.Fatalf("first resolve failed: %v", err)
		}
		before := *r.Resolution

		err := r.Resolve(WithdrawalPolicy, second, "other", "someone", time.Now())
		if err == nil {
			t.Fatalf("second resolve from %s to %s should fail", first, second)
		}
		if r.Status != first || *r.Resolution != before {
			t.Fatalf("terminal request mutated: %+v", r)
		}
	})
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusAccepted.Terminal())
	assert.True(t, StatusDeclined.Terminal())
}

func TestResolve_RejectsNonTerminalOutcome(t *testing.T) {
	loose := Policy{Outcomes: []Status{StatusPending, StatusApproved}}
	r := New(uuid.New(), "payload")

	for _, outcome := range []Status{StatusPending, ""} {
		err := r.Resolve(loose, outcome, "", "admin", time.Now())
		assert.ErrorIs(t, err, ErrInvalidOutcome)
		assert.True(t, r.Pending())
		assert.Nil(t, r.Resolution)
	}
	assert.NoError(t, r.Resolve(loose, StatusApproved, "", "admin", time.Now()))
}
