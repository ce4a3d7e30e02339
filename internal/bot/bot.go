// Package bot provides the Telegram companion bot over the ledger services.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"coins-catcher/internal/config"
	"coins-catcher/internal/handler"
	"coins-catcher/internal/model"
	"coins-catcher/internal/service"
)

// Bot wraps the telebot instance with its command handlers.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config
	svc *service.Services

	accountHandler *handler.AccountHandler
	rewardHandler  *handler.RewardHandler
	walletHandler  *handler.WalletHandler
	adminHandler   *handler.AdminHandler
	rankingHandler *handler.RankingHandler
}

// New creates the bot and registers its commands.
func New(cfg *config.Config, svc *service.Services) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	timeout := cfg.Bot.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	teleBot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Str("text", textOf(c)).Msg("Bot handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            cfg,
		svc:            svc,
		accountHandler: handler.NewAccountHandler(svc.Accounts, svc.Rewards),
		rewardHandler:  handler.NewRewardHandler(svc.Rewards),
		walletHandler:  handler.NewWalletHandler(svc.Wallet, svc.Withdrawals),
		adminHandler:   handler.NewAdminHandler(svc.Admin, svc.Withdrawals),
		rankingHandler: handler.NewRankingHandler(svc.Ranking),
	}

	b.registerMiddleware()
	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/hourly", b.rewardHandler.Claim(model.RewardHourly))
	b.bot.Handle("/faucet", b.rewardHandler.Claim(model.RewardFaucet))
	b.bot.Handle("/daily", b.rewardHandler.Claim(model.RewardDaily))
	b.bot.Handle("/convert", b.walletHandler.HandleConvert)
	b.bot.Handle("/requests", b.walletHandler.HandleRequests)
	b.bot.Handle("/top", b.rankingHandler.HandleTop)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.svc.Accounts))
	adminGroup.Handle("/bonus", b.adminHandler.HandleBonus)
	adminGroup.Handle("/block", b.adminHandler.HandleBlock)
	adminGroup.Handle("/unblock", b.adminHandler.HandleUnblock)
	adminGroup.Handle("/pending", b.adminHandler.HandlePending)
	adminGroup.Handle("/approve", b.adminHandler.HandleApprove)
	adminGroup.Handle("/reject", b.adminHandler.HandleReject)
}

// Start polls for updates until Stop.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot")
	b.bot.Start()
}

// Stop stops polling.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot")
	b.bot.Stop()
}

func textOf(c tele.Context) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}
