// Package pricing converts between coins and PKR and serves the package
// catalog configured by admins.
package pricing

import (
	"github.com/shopspring/decimal"

	"coins-catcher/internal/model"
)

// CoinsPerRateUnit is the number of coins the configured rate is quoted for.
const CoinsPerRateUnit = 100000

var coinsPerRateUnit = decimal.NewFromInt(CoinsPerRateUnit)

// CoinsToLocal returns the PKR value of coins at rate (PKR per 100,000
// coins). The result is exact; it is never rounded for storage.
func CoinsToLocal(coins int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(coins).Mul(rate).Shift(-5)
}

// RoundForDisplay rounds a PKR amount to paisa for display.
func RoundForDisplay(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// LocalToCoins returns the coin equivalent of a PKR amount at rate, rounded
// half-up to a whole coin. A non-positive rate yields 0.
func LocalToCoins(amount, rate decimal.Decimal) int64 {
	if !rate.IsPositive() {
		return 0
	}
	return amount.Mul(coinsPerRateUnit).Div(rate).Round(0).IntPart()
}

// CoinCostForUSD prices a USD amount in coins using a USD to PKR rate and
// the coin rate. Rounds half-up to a whole coin.
func CoinCostForUSD(usd, usdToPKR, rate decimal.Decimal) int64 {
	return LocalToCoins(usd.Mul(usdToPKR), rate)
}

// ValidateWalletConfig checks an admin-supplied WalletConfig.
func ValidateWalletConfig(cfg *model.WalletConfig) error {
	if cfg == nil || !cfg.CoinToPKRRate.IsPositive() || cfg.USDToPKRRate.IsNegative() {
		return ErrInvalidRate
	}
	for _, tiers := range [][]model.Package{cfg.UCPackages, cfg.DiamondPackages} {
		for _, p := range tiers {
			if p.Amount <= 0 || !p.Price.IsPositive() {
				return ErrInvalidPackage
			}
		}
	}
	return nil
}
