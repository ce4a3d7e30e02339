package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"coins-catcher/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accounts *service.AccountService
	rewards  *service.RewardService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, rewards *service.RewardService) *AccountHandler {
	return &AccountHandler{accounts: accounts, rewards: rewards}
}

// HandleStart handles /start [referral code]. It opens the account on
// first use and applies the referral code if one is given.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var code string
	if msg := c.Message(); msg != nil {
		code = strings.TrimSpace(msg.Payload)
	}

	name := displayName(sender)
	a, created, err := h.accounts.EnsureAccount(ctx, service.RegisterInput{
		AccountID:    AccountIDFor(sender.ID),
		DisplayName:  name,
		ReferralCode: code,
	})
	if errors.Is(err, service.ErrNotFound) && code != "" {
		return c.Reply("❌ Unknown referral code " + code)
	}
	if err != nil {
		return replyError(c, "start", err)
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome %s!\n\n"+
				"Your account is ready with %d coins.\n"+
				"Your referral code: %s\n\n"+
				"Commands:\n"+
				"/balance - show balances\n"+
				"/hourly - hourly reward\n"+
				"/faucet - faucet reward\n"+
				"/daily - daily streak reward\n"+
				"/convert <coins> - convert coins to PKR\n"+
				"/requests - your withdrawals\n"+
				"/top - leaderboard",
			name, a.Coins, a.ReferralCode,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back %s!\n\n💰 Balance: %d coins", name, a.Coins))
}

// HandleBalance handles /balance with both balances and reward readiness.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sess, ok := sessionOf(c)
	if !ok {
		return nil
	}

	a, err := h.accounts.Get(ctx, sess.AccountID)
	if err != nil {
		return replyError(c, "balance", err)
	}
	statuses, err := h.rewards.Status(ctx, sess.AccountID)
	if err != nil {
		return replyError(c, "balance", err)
	}

	var b strings.Builder
	b.WriteString("📊 Account\n━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💰 Coins: %d\n", a.Coins)
	fmt.Fprintf(&b, "💵 PKR: %s\n", a.PKRBalance.StringFixed(2))
	fmt.Fprintf(&b, "🔥 Daily streak: %d\n", a.DailyStreak)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, st := range statuses {
		if st.CanClaim {
			fmt.Fprintf(&b, "✅ %s: %d coins ready\n", st.Reward, st.Amount)
			continue
		}
		fmt.Fprintf(&b, "⏰ %s: %s\n", st.Reward, formatRemaining(msDuration(st.MsRemaining)))
	}
	if a.IsBlocked {
		b.WriteString("🚫 This account is blocked\n")
	}
	return c.Reply(strings.TrimRight(b.String(), "\n"))
}
