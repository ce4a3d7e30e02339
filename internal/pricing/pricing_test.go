package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"coins-catcher/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCoinsToLocal(t *testing.T) {
	tests := []struct {
		coins int64
		rate  string
		want  string
	}{
		{100000, "300", "300"},
		{0, "300", "0"},
		{1, "300", "0.003"},
		{12345, "275.5", "34.010475"},
	}
	for _, tt := range tests {
		got := CoinsToLocal(tt.coins, dec(tt.rate))
		assert.True(t, got.Equal(dec(tt.want)), "CoinsToLocal(%d, %s) = %s", tt.coins, tt.rate, got)
	}
}

func TestRoundForDisplay(t *testing.T) {
	assert.Equal(t, "34.01", RoundForDisplay(dec("34.010475")).StringFixed(2))
	assert.Equal(t, "0.01", RoundForDisplay(dec("0.005")).StringFixed(2))
}

func TestLocalToCoins(t *testing.T) {
	assert.Equal(t, int64(100000), LocalToCoins(dec("300"), dec("300")))
	assert.Equal(t, int64(1), LocalToCoins(dec("0.0015"), dec("300")))
	assert.Equal(t, int64(0), LocalToCoins(dec("0.0014"), dec("300")))
	assert.Equal(t, int64(0), LocalToCoins(dec("10"), decimal.Zero))
}

func TestCoinCostForUSD(t *testing.T) {
	// 1 USD at 280 PKR, 300 PKR per 100k coins.
	assert.Equal(t, int64(93333), CoinCostForUSD(dec("1"), dec("280"), dec("300")))
}

// TestLocalToCoinsRoundTripProperty checks converting coins to PKR and back
// returns the same coin count for positive rates.
func TestLocalToCoinsRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		coins := rapid.Int64Range(0, 1_000_000_000).Draw(t, "coins")
		rate := decimal.NewFromInt(rapid.Int64Range(1, 100000).Draw(t, "rate")).Shift(-2)

		back := LocalToCoins(CoinsToLocal(coins, rate), rate)
		if back != coins {
			t.Fatalf("round trip %d -> %d at rate %s", coins, back, rate)
		}
	})
}

func TestValidateWalletConfig(t *testing.T) {
	ok := &model.WalletConfig{
		CoinToPKRRate: dec("300"),
		UCPackages:    []model.Package{{Amount: 60, Price: dec("250")}},
	}
	assert.NoError(t, ValidateWalletConfig(ok))
	assert.ErrorIs(t, ValidateWalletConfig(nil), ErrInvalidRate)
	assert.ErrorIs(t, ValidateWalletConfig(&model.WalletConfig{CoinToPKRRate: decimal.Zero}), ErrInvalidRate)
	assert.ErrorIs(t, ValidateWalletConfig(&model.WalletConfig{CoinToPKRRate: dec("300"), USDToPKRRate: dec("-1")}), ErrInvalidRate)
	assert.ErrorIs(t, ValidateWalletConfig(&model.WalletConfig{
		CoinToPKRRate:   dec("300"),
		DiamondPackages: []model.Package{{Amount: 0, Price: dec("1")}},
	}), ErrInvalidPackage)
}

func TestCatalog(t *testing.T) {
	cfg := &model.WalletConfig{
		CoinToPKRRate: dec("300"),
		UCPackages: []model.Package{
			{Amount: 325, Price: dec("1200")},
			{Amount: 60, Price: dec("250")},
		},
	}

	uc := Catalog(cfg, model.RequestUC)
	require.Len(t, uc, 2)
	assert.Equal(t, int64(60), uc[0].Amount)
	assert.Equal(t, int64(325), cfg.UCPackages[0].Amount, "catalog must not reorder config")

	assert.Empty(t, Catalog(cfg, model.RequestDiamond))
	assert.NotNil(t, Catalog(nil, model.RequestUC))
	assert.Empty(t, Catalog(nil, model.RequestUC))

	p, err := FindPackage(cfg, model.RequestUC, 325)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(dec("1200")))

	_, err = FindPackage(cfg, model.RequestUC, 999)
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	require.NoError(t, err)
	return b
}

func TestEstimator_ParsesChatReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatReply(t, `{"options":[{"localAmount":300,"usdAmount":1.07,"coinCost":100000},{"localAmount":150.5,"coinCost":50167}],"insufficientFunds":false,"message":"ok"}`))
	}))
	defer srv.Close()

	e := NewEstimator(srv.URL, "key", "test-model", time.Second)
	est, err := e.Estimate(context.Background(), EstimateRequest{WithdrawalType: WithdrawalPKR, UserCoins: 120000})
	require.NoError(t, err)

	assert.Equal(t, "test-model", got["model"])
	require.Len(t, est.Options, 2)
	assert.True(t, est.Options[0].LocalAmount.Equal(dec("300")))
	assert.True(t, est.Options[0].USDAmount.Equal(dec("1.07")))
	assert.Equal(t, int64(100000), est.Options[0].CoinCost)
	assert.Nil(t, est.Options[1].USDAmount)
	assert.Equal(t, "ok", est.Message)
}

func TestEstimator_GameCurrencyBareObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"options":[{"unitsOfGameCurrency":60,"coinCost":85000}],"insufficientFunds":true,"message":"need more"}`))
	}))
	defer srv.Close()

	est, err := NewEstimator(srv.URL, "", "m", time.Second).
		Estimate(context.Background(), EstimateRequest{WithdrawalType: WithdrawalUC, UserCoins: 10})
	require.NoError(t, err)
	require.Len(t, est.Options, 1)
	assert.Equal(t, int64(60), est.Options[0].UnitsOfGameCurrency)
	assert.True(t, est.InsufficientFunds)
}

func TestEstimator_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{}`},
		{"not json", http.StatusOK, `hello`},
		{"reply not json", http.StatusOK, string(chatReply(t, "I think about 300 rupees"))},
		{"no options", http.StatusOK, `{"message":"x"}`},
		{"option without cost", http.StatusOK, `{"options":[{"localAmount":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewEstimator(srv.URL, "", "m", time.Second).
				Estimate(context.Background(), EstimateRequest{WithdrawalType: WithdrawalPKR})
			assert.True(t, errors.Is(err, ErrExternalService), "got %v", err)
		})
	}
}

func TestEstimator_Unconfigured(t *testing.T) {
	_, err := NewEstimator("", "", "", 0).Estimate(context.Background(), EstimateRequest{WithdrawalType: WithdrawalPKR})
	assert.ErrorIs(t, err, ErrExternalService)
}

func TestEstimate_Reprice(t *testing.T) {
	local := dec("300")
	est := &Estimate{Options: []EstimateOption{{LocalAmount: &local, CoinCost: 1}}}

	est.Reprice(dec("300"), decimal.Zero, 50000)
	assert.Equal(t, int64(100000), est.Options[0].CoinCost)
	assert.True(t, est.InsufficientFunds)

	est.Reprice(dec("300"), decimal.Zero, 100000)
	assert.False(t, est.InsufficientFunds)
}

func TestEstimate_RepriceUSDOnlyOptions(t *testing.T) {
	usd := dec("1")
	quoted := &Estimate{Options: []EstimateOption{{USDAmount: &usd, CoinCost: 12345}}}

	// Without a USD rate the estimator's own cost stands.
	quoted.Reprice(dec("300"), decimal.Zero, 0)
	assert.Equal(t, int64(12345), quoted.Options[0].CoinCost)

	// 1 USD * 280 PKR at 300 PKR per 100k coins = 93333.33 coins.
	quoted.Reprice(dec("300"), dec("280"), 100000)
	assert.Equal(t, int64(93333), quoted.Options[0].CoinCost)
	assert.False(t, quoted.InsufficientFunds)
}
