package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"

	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/service"
)

// AdminHandler handles admin commands. Every service call re-checks the
// caller's stored admin flag.
type AdminHandler struct {
	admin       *service.AdminService
	withdrawals *service.WithdrawalService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin *service.AdminService, withdrawals *service.WithdrawalService) *AdminHandler {
	return &AdminHandler{admin: admin, withdrawals: withdrawals}
}

// HandleBonus handles /bonus <account> <amount> [reason].
func (h *AdminHandler) HandleBonus(c tele.Context) error {
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}
	target, amount, reason, err := parseBonusArgs(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}

	a, err := h.admin.GiveBonus(context.Background(), sess, target, amount, reason)
	if err != nil {
		return replyError(c, "give_bonus", err)
	}
	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n"+
			"👤 Account: %s\n"+
			"➕ Bonus: %d coins\n"+
			"💰 Balance: %d coins",
		a.ID, amount, a.Coins,
	))
}

// HandleBlock handles /block <account>.
func (h *AdminHandler) HandleBlock(c tele.Context) error {
	return h.setBlocked(c, true)
}

// HandleUnblock handles /unblock <account>.
func (h *AdminHandler) HandleUnblock(c tele.Context) error {
	return h.setBlocked(c, false)
}

func (h *AdminHandler) setBlocked(c tele.Context, blocked bool) error {
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /block <account id>")
	}
	a, err := h.admin.SetBlocked(context.Background(), sess, resolveTarget(args[0]), blocked)
	if err != nil {
		return replyError(c, "set_blocked", err)
	}
	if blocked {
		return c.Reply("🚫 Blocked " + a.ID)
	}
	return c.Reply("✅ Unblocked " + a.ID)
}

// HandlePending handles /pending, listing requests awaiting review.
func (h *AdminHandler) HandlePending(c tele.Context) error {
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}
	reqs, err := h.withdrawals.ListAll(context.Background(), sess, lifecycle.StatusPending)
	if err != nil {
		return replyError(c, "list_pending", err)
	}
	if len(reqs) == 0 {
		return c.Reply("📭 No pending requests")
	}
	return c.Reply(fmt.Sprintf("⏳ Pending requests: %d\n━━━━━━━━━━━━━━━\n%s", len(reqs), formatRequests(reqs, true)))
}

// HandleApprove handles /approve <request id>.
func (h *AdminHandler) HandleApprove(c tele.Context) error {
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /approve <request id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return c.Reply("❌ Invalid request id")
	}
	r, err := h.withdrawals.Approve(context.Background(), sess, id)
	if err != nil {
		return replyError(c, "approve_withdrawal", err)
	}
	return c.Reply(fmt.Sprintf("✅ Approved %s for %s (PKR %s)", r.ID, r.Payload.AccountID, r.Payload.AmountPKR.StringFixed(2)))
}

// HandleReject handles /reject <request id> <reason>. The held amount is
// refunded to the owner.
func (h *AdminHandler) HandleReject(c tele.Context) error {
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /reject <request id> <reason>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return c.Reply("❌ Invalid request id")
	}
	reason := strings.Join(args[1:], " ")
	r, err := h.withdrawals.Reject(context.Background(), sess, id, reason)
	if err != nil {
		return replyError(c, "reject_withdrawal", err)
	}
	return c.Reply(fmt.Sprintf("❌ Rejected %s, refunded PKR %s to %s", r.ID, r.Payload.AmountPKR.StringFixed(2), r.Payload.AccountID))
}

// parseBonusArgs parses <account> <amount> [reason...].
func parseBonusArgs(args []string) (string, int64, string, error) {
	if len(args) < 2 {
		return "", 0, "", fmt.Errorf("❌ Usage: /bonus <account id> <amount> [reason]\nExample: /bonus 123456789 500 contest winner")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return "", 0, "", fmt.Errorf("❌ Amount must be a positive whole number")
	}
	return resolveTarget(args[0]), amount, strings.Join(args[2:], " "), nil
}
