package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrExternalService is returned when the estimator cannot be reached or
// answers with something that is not a valid estimate.
var ErrExternalService = errors.New("pricing estimator unavailable")

// WithdrawalType is the estimator's name for a request kind.
type WithdrawalType string

const (
	WithdrawalPKR       WithdrawalType = "pkr"
	WithdrawalUC        WithdrawalType = "uc"
	WithdrawalFFDiamond WithdrawalType = "ff_diamond"
)

// Valid reports whether t is known to the estimator.
func (t WithdrawalType) Valid() bool {
	switch t {
	case WithdrawalPKR, WithdrawalUC, WithdrawalFFDiamond:
		return true
	}
	return false
}

// EstimateRequest is the input sent to the estimator.
type EstimateRequest struct {
	WithdrawalType WithdrawalType `json:"withdrawalType"`
	UserCoins      int64          `json:"userCoins"`
}

// EstimateOption is one priced option. Cash options carry LocalAmount and
// optionally USDAmount; game currency options carry UnitsOfGameCurrency.
type EstimateOption struct {
	LocalAmount         *decimal.Decimal `json:"localAmount,omitempty"`
	USDAmount           *decimal.Decimal `json:"usdAmount,omitempty"`
	UnitsOfGameCurrency int64            `json:"unitsOfGameCurrency,omitempty"`
	CoinCost            int64            `json:"coinCost"`
}

// Estimate is advisory pricing for display only.
type Estimate struct {
	Options           []EstimateOption `json:"options"`
	InsufficientFunds bool             `json:"insufficientFunds"`
	Message           string           `json:"message"`
}

// Reprice recomputes coin costs of cash options from the configured rates so
// the number shown matches what a conversion would charge. Options quoted
// only in USD are priced through usdToPKR when it is positive. A
// non-positive coin rate leaves the estimate untouched.
func (e *Estimate) Reprice(rate, usdToPKR decimal.Decimal, userCoins int64) {
	if !rate.IsPositive() {
		return
	}
	affordable := false
	for i := range e.Options {
		opt := &e.Options[i]
		switch {
		case opt.LocalAmount != nil:
			opt.CoinCost = LocalToCoins(*opt.LocalAmount, rate)
		case opt.USDAmount != nil && usdToPKR.IsPositive():
			opt.CoinCost = CoinCostForUSD(*opt.USDAmount, usdToPKR, rate)
		}
		if opt.CoinCost <= userCoins {
			affordable = true
		}
	}
	e.InsufficientFunds = !affordable
}

const estimatorPrompt = `You estimate withdrawal pricing for a rewards app in Pakistan.
Given {"withdrawalType": "pkr"|"uc"|"ff_diamond", "userCoins": number}, reply with a JSON object:
{"options": [...], "insufficientFunds": boolean, "message": string}.
For "pkr" each option is {"localAmount": number, "usdAmount": number, "coinCost": number}.
For "uc" and "ff_diamond" each option is {"unitsOfGameCurrency": number, "coinCost": number}.
Coin costs are whole numbers. Reply with JSON only.`

// Estimator calls an OpenAI-compatible chat completion endpoint.
type Estimator struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewEstimator creates an estimator client. An empty endpoint yields a
// client whose every call fails with ErrExternalService.
func NewEstimator(endpoint, apiKey, model string, timeout time.Duration) *Estimator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Estimator{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

// Estimate asks the estimator for pricing options.
func (e *Estimator) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	if e == nil || e.endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrExternalService)
	}
	if !req.WithdrawalType.Valid() {
		return nil, fmt.Errorf("unknown withdrawal type %q", req.WithdrawalType)
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode estimate request: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": estimatorPrompt},
			{"role": "user", "content": string(input)},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode estimator body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build estimator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrExternalService, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrExternalService, resp.StatusCode)
	}

	return parseEstimate(raw)
}

// parseEstimate accepts either a chat completion envelope or a bare
// estimate object.
func parseEstimate(raw []byte) (*Estimate, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrExternalService)
	}
	doc := gjson.ParseBytes(raw)
	if content := doc.Get("choices.0.message.content"); content.Exists() {
		text := strings.TrimSpace(content.String())
		text = strings.TrimPrefix(text, "```json")
		text = strings.Trim(text, "`\n ")
		if !gjson.Valid(text) {
			return nil, fmt.Errorf("%w: reply is not JSON", ErrExternalService)
		}
		doc = gjson.Parse(text)
	}

	options := doc.Get("options")
	if !options.IsArray() {
		return nil, fmt.Errorf("%w: missing options", ErrExternalService)
	}

	est := &Estimate{
		Options:           []EstimateOption{},
		InsufficientFunds: doc.Get("insufficientFunds").Bool(),
		Message:           doc.Get("message").String(),
	}
	for _, o := range options.Array() {
		if !o.IsObject() || !o.Get("coinCost").Exists() {
			return nil, fmt.Errorf("%w: malformed option", ErrExternalService)
		}
		opt := EstimateOption{
			UnitsOfGameCurrency: o.Get("unitsOfGameCurrency").Int(),
			CoinCost:            decimalOf(o.Get("coinCost")).Round(0).IntPart(),
		}
		if v := o.Get("localAmount"); v.Exists() {
			d := decimalOf(v)
			opt.LocalAmount = &d
		}
		if v := o.Get("usdAmount"); v.Exists() {
			d := decimalOf(v)
			opt.USDAmount = &d
		}
		if opt.LocalAmount == nil && opt.UnitsOfGameCurrency == 0 {
			return nil, fmt.Errorf("%w: option has no amount", ErrExternalService)
		}
		est.Options = append(est.Options, opt)
	}
	return est, nil
}

// decimalOf reads a JSON number from its raw text so no float rounding
// sneaks in.
func decimalOf(r gjson.Result) decimal.Decimal {
	d, err := decimal.NewFromString(strings.Trim(r.Raw, `"`))
	if err != nil {
		return decimal.NewFromFloat(r.Float())
	}
	return d
}
