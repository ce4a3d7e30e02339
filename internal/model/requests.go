package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coins-catcher/internal/pkg/lifecycle"
)

// RequestKind is the type of a withdrawal/purchase request.
type RequestKind string

const (
	RequestCash    RequestKind = "cash"
	RequestUC      RequestKind = "uc"
	RequestDiamond RequestKind = "diamond"
)

// Valid reports whether k is a known request kind.
func (k RequestKind) Valid() bool {
	switch k {
	case RequestCash, RequestUC, RequestDiamond:
		return true
	}
	return false
}

// WithdrawalPayload carries the priced details of a withdrawal or purchase.
type WithdrawalPayload struct {
	AccountID      string          `json:"account_id"`
	DisplayName    string          `json:"display_name"`
	Email          string          `json:"email"`
	Kind           RequestKind     `json:"kind"`
	AmountPKR      decimal.Decimal `json:"amount_pkr"`
	CoinEquivalent int64           `json:"coin_equivalent"`
	PackageAmount  int64           `json:"package_amount,omitempty"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	PaymentAccount string          `json:"payment_account,omitempty"`
	GameID         string          `json:"game_id,omitempty"`
	GameName       string          `json:"game_name,omitempty"`
}

// WithdrawalRequest is a withdrawal or purchase going through admin review.
type WithdrawalRequest = lifecycle.Request[WithdrawalPayload]

// FriendPayload is the edge between two accounts.
type FriendPayload struct {
	FromID  string `json:"from_id"`
	ToID    string `json:"to_id"`
	PairKey string `json:"pair_key"`
}

// FriendRequest is a pending or resolved friendship request.
type FriendRequest = lifecycle.Request[FriendPayload]

// PairKey returns the order-independent key for two account ids.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// NewWithdrawalRequest creates a pending withdrawal request.
func NewWithdrawalRequest(p WithdrawalPayload) *WithdrawalRequest {
	return lifecycle.New(uuid.New(), p)
}

// NewFriendRequest creates a pending friend request.
func NewFriendRequest(from, to string) *FriendRequest {
	return lifecycle.New(uuid.New(), FriendPayload{FromID: from, ToID: to, PairKey: PairKey(from, to)})
}
