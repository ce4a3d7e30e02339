// Package model defines the data models for the coins-catcher ledger.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is one user of the app. Coins and PKRBalance are always the sum
// of the account's transaction deltas.
type Account struct {
	ID              string          `json:"id" db:"id"`
	DisplayName     string          `json:"display_name" db:"display_name"`
	Email           string          `json:"email" db:"email"`
	Coins           int64           `json:"coins" db:"coins"`
	PKRBalance      decimal.Decimal `json:"pkr_balance" db:"pkr_balance"`
	IsAdmin         bool            `json:"is_admin" db:"is_admin"`
	IsBlocked       bool            `json:"is_blocked" db:"is_blocked"`
	LogoutDisabled  bool            `json:"logout_disabled" db:"logout_disabled"`
	LastHourlyClaim *time.Time      `json:"last_hourly_claim,omitempty" db:"last_hourly_claim"`
	LastFaucetClaim *time.Time      `json:"last_faucet_claim,omitempty" db:"last_faucet_claim"`
	LastDailyClaim  *time.Time      `json:"last_daily_claim,omitempty" db:"last_daily_claim"`
	DailyStreak     int             `json:"daily_streak" db:"daily_streak"`
	GamePointsCarry int64           `json:"game_points_carry" db:"game_points_carry"`
	ReferralCode    string          `json:"referral_code" db:"referral_code"`
	ReferredBy      *string         `json:"referred_by,omitempty" db:"referred_by"`
	Profile
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Profile holds the withdrawal destinations a user configures.
type Profile struct {
	PaymentMethod  string `json:"payment_method" db:"payment_method"`
	PaymentAccount string `json:"payment_account" db:"payment_account"`
	PubgID         string `json:"pubg_id" db:"pubg_id"`
	PubgName       string `json:"pubg_name" db:"pubg_name"`
	FreeFireID     string `json:"free_fire_id" db:"free_fire_id"`
	FreeFireName   string `json:"free_fire_name" db:"free_fire_name"`
}

// LastClaim returns the last-claim timestamp for a timed reward type.
func (a *Account) LastClaim(t RewardType) *time.Time {
	switch t {
	case RewardHourly:
		return a.LastHourlyClaim
	case RewardFaucet:
		return a.LastFaucetClaim
	case RewardDaily:
		return a.LastDailyClaim
	}
	return nil
}

// SetLastClaim stamps the last-claim timestamp for a timed reward type.
func (a *Account) SetLastClaim(t RewardType, at time.Time) {
	switch t {
	case RewardHourly:
		a.LastHourlyClaim = &at
	case RewardFaucet:
		a.LastFaucetClaim = &at
	case RewardDaily:
		a.LastDailyClaim = &at
	}
}

// Transaction is an immutable ledger record. A single record may move both
// currencies, e.g. a coin to PKR conversion.
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	AccountID   string          `json:"account_id" db:"account_id"`
	CoinDelta   int64           `json:"coin_delta" db:"coin_delta"`
	PKRDelta    decimal.Decimal `json:"pkr_delta" db:"pkr_delta"`
	Type        string          `json:"type" db:"type"`
	Description string          `json:"description" db:"description"`
	RequestID   *uuid.UUID      `json:"request_id,omitempty" db:"request_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// RewardType identifies a claimable reward.
type RewardType string

const (
	RewardHourly RewardType = "hourly"
	RewardFaucet RewardType = "faucet"
	RewardDaily  RewardType = "daily"
	RewardGame   RewardType = "game"
)

// TimedRewardTypes returns the reward types gated by a cooldown policy.
func TimedRewardTypes() []RewardType {
	return []RewardType{RewardHourly, RewardFaucet, RewardDaily}
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial        = "initial"           // Starting bonus on signup
	TxTypeHourly         = "hourly"            // Hourly claim
	TxTypeFaucet         = "faucet"            // Faucet claim
	TxTypeDaily          = "daily"             // Daily streak claim
	TxTypeGame           = "game"              // Mini-game points converted to coins
	TxTypeReferral       = "referral"          // Bonus for referring a new user
	TxTypeConvert        = "convert"           // Coins converted to PKR
	TxTypeWithdrawal     = "withdrawal"        // PKR held for a withdrawal/purchase request
	TxTypeWithdrawRefund = "withdrawal_refund" // Held PKR returned on rejection
	TxTypeAdminBonus     = "admin_bonus"       // Admin granted coins
)

// RewardTransactionTypes returns the transaction types that count towards the
// daily earners leaderboard.
func RewardTransactionTypes() []string {
	return []string{TxTypeHourly, TxTypeFaucet, TxTypeDaily, TxTypeGame, TxTypeReferral}
}

// TxTypeForReward maps a reward to the transaction type it records.
func TxTypeForReward(t RewardType) string {
	switch t {
	case RewardHourly:
		return TxTypeHourly
	case RewardFaucet:
		return TxTypeFaucet
	case RewardDaily:
		return TxTypeDaily
	case RewardGame:
		return TxTypeGame
	}
	return string(t)
}

// Package is a fixed game-currency tier priced in PKR.
type Package struct {
	Amount int64           `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// WalletConfig is the process-wide pricing configuration set by admins.
// CoinToPKRRate is PKR per 100,000 coins. USDToPKRRate prices USD-only
// estimate options; zero leaves them as the estimator quoted.
type WalletConfig struct {
	CoinToPKRRate   decimal.Decimal `json:"coinToPkrRate"`
	USDToPKRRate    decimal.Decimal `json:"usdToPkrRate"`
	UCPackages      []Package       `json:"ucPackages"`
	DiamondPackages []Package       `json:"diamondPackages"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// LeaderboardEntry is one row of a ranking.
type LeaderboardEntry struct {
	AccountID   string `json:"account_id" db:"account_id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Coins       int64  `json:"coins" db:"coins"`
}

// AccountEvent is emitted by the store's change feed after a committed write
// touching an account.
type AccountEvent struct {
	AccountID  string          `json:"account_id"`
	Coins      int64           `json:"coins"`
	PKRBalance decimal.Decimal `json:"pkr_balance"`
	Reason     string          `json:"reason"`
	At         time.Time       `json:"at"`
}

// Session is the authenticated caller of a core operation.
type Session struct {
	AccountID string
	IsAdmin   bool
}
