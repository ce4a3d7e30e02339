package handler

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"coins-catcher/internal/model"
	"coins-catcher/internal/service"
)

// RewardHandler handles the timed reward commands.
type RewardHandler struct {
	rewards *service.RewardService
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(rewards *service.RewardService) *RewardHandler {
	return &RewardHandler{rewards: rewards}
}

// Claim returns the handler for one reward type.
func (h *RewardHandler) Claim(t model.RewardType) tele.HandlerFunc {
	return func(c tele.Context) error {
		sess, ok := sessionOf(c)
		if !ok {
			return nil
		}
		res, err := h.rewards.Claim(context.Background(), sess, t)
		if err != nil {
			return replyError(c, "claim_"+string(t), err)
		}

		msg := fmt.Sprintf("✅ +%d coins\n💰 Balance: %d coins", res.Awarded, res.Coins)
		if t == model.RewardDaily {
			msg += fmt.Sprintf("\n🔥 Streak day %d", res.Streak)
		}
		if !res.Next.CanClaim && res.Next.Remaining > 0 {
			msg += "\n⏰ Next in " + formatRemaining(res.Next.Remaining)
		}
		return c.Reply(msg)
	}
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
