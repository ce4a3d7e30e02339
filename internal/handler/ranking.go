package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"coins-catcher/internal/model"
	"coins-catcher/internal/service"
)

// RankingHandler handles leaderboard commands.
type RankingHandler struct {
	ranking *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(ranking *service.RankingService) *RankingHandler {
	return &RankingHandler{ranking: ranking}
}

// HandleTop handles /top with the richest accounts and today's earners.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ctx := context.Background()

	rich, err := h.ranking.TopByCoins(ctx, service.DefaultLeaderboardSize)
	if err != nil {
		return replyError(c, "top", err)
	}
	today, err := h.ranking.TopEarnersToday(ctx, service.DefaultLeaderboardSize)
	if err != nil {
		return replyError(c, "top", err)
	}

	var b strings.Builder
	b.WriteString("🏆 Top coins\n━━━━━━━━━━━━━━━\n")
	writeBoard(&b, rich, "")
	b.WriteString("\n📈 Top earners today\n━━━━━━━━━━━━━━━\n")
	writeBoard(&b, today, "+")
	return c.Reply(strings.TrimRight(b.String(), "\n"))
}

var medals = []string{"🥇", "🥈", "🥉"}

func writeBoard(b *strings.Builder, entries []*model.LeaderboardEntry, sign string) {
	if len(entries) == 0 {
		b.WriteString("No data yet\n")
		return
	}
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := e.DisplayName
		if name == "" {
			name = e.AccountID
		}
		fmt.Fprintf(b, "%s %s: %s%d\n", rank, name, sign, e.Coins)
	}
}
