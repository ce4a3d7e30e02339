package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/service"
)

// WalletHandler handles conversions and the caller's withdrawal requests.
type WalletHandler struct {
	wallet      *service.WalletService
	withdrawals *service.WithdrawalService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallet *service.WalletService, withdrawals *service.WithdrawalService) *WalletHandler {
	return &WalletHandler{wallet: wallet, withdrawals: withdrawals}
}

// HandleConvert handles /convert <coins>.
func (h *WalletHandler) HandleConvert(c tele.Context) error {
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /convert <coins>\nExample: /convert 100000")
	}
	coins, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || coins <= 0 {
		return c.Reply("❌ Coins must be a positive whole number")
	}

	res, err := h.wallet.Convert(context.Background(), sess, coins)
	if err != nil {
		return replyError(c, "convert", err)
	}
	return c.Reply(fmt.Sprintf(
		"✅ Converted %d coins to PKR %s\n\n"+
			"💰 Coins: %d\n"+
			"💵 PKR: %s",
		res.CoinsDebited, res.PKRCredited.StringFixed(2), res.Coins, res.PKRBalance.StringFixed(2),
	))
}

// HandleRequests handles /requests, listing the caller's withdrawals.
func (h *WalletHandler) HandleRequests(c tele.Context) error {
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}
	reqs, err := h.withdrawals.ListMine(context.Background(), sess, "")
	if err != nil {
		return replyError(c, "requests", err)
	}
	if len(reqs) == 0 {
		return c.Reply("📭 No withdrawal requests yet")
	}
	return c.Reply("🧾 Your requests\n━━━━━━━━━━━━━━━\n" + formatRequests(reqs, false))
}

func formatRequests(reqs []*model.WithdrawalRequest, withOwner bool) string {
	var b strings.Builder
	for _, r := range reqs {
		p := r.Payload
		fmt.Fprintf(&b, "%s %s PKR %s", statusIcon(r), p.Kind, p.AmountPKR.StringFixed(2))
		if p.PackageAmount > 0 {
			fmt.Fprintf(&b, " (%d)", p.PackageAmount)
		}
		if withOwner {
			fmt.Fprintf(&b, " by %s", p.AccountID)
		}
		fmt.Fprintf(&b, "\n   id: %s", r.ID)
		if r.Resolution != nil && r.Resolution.Reason != "" {
			fmt.Fprintf(&b, "\n   reason: %s", r.Resolution.Reason)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusIcon(r *model.WithdrawalRequest) string {
	switch r.Status {
	case lifecycle.StatusApproved:
		return "✅"
	case lifecycle.StatusRejected:
		return "❌"
	}
	return "⏳"
}
