// Package handler provides Telegram bot command handlers over the ledger
// services.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"coins-catcher/internal/model"
	"coins-catcher/internal/service"
)

const telegramPrefix = "tg:"

// AccountIDFor maps a Telegram user to its ledger account id.
func AccountIDFor(telegramID int64) string {
	return telegramPrefix + strconv.FormatInt(telegramID, 10)
}

// resolveTarget accepts either a full account id or a bare Telegram id.
func resolveTarget(arg string) string {
	arg = strings.TrimSpace(arg)
	if _, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return telegramPrefix + arg
	}
	return arg
}

func sessionOf(c tele.Context) (model.Session, bool) {
	sender := c.Sender()
	if sender == nil {
		return model.Session{}, false
	}
	return model.Session{AccountID: AccountIDFor(sender.ID)}, true
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fmt.Sprintf("User%d", u.ID)
	}
	return name
}

// userMessage is the reply shown for a failed service call.
func userMessage(err error) string {
	var inel *service.IneligibleError
	switch {
	case errors.As(err, &inel):
		return "⏰ Not yet. Try again in " + formatRemaining(inel.Remaining)
	case errors.Is(err, service.ErrAccountBlocked):
		return "🚫 Your account is blocked"
	case errors.Is(err, service.ErrPermission):
		return "❌ Permission denied"
	case errors.Is(err, service.ErrInsufficientBalance):
		return "❌ Insufficient balance"
	case errors.Is(err, service.ErrMissingProfile):
		return "❌ Add your payment or game details in the app first"
	case errors.Is(err, service.ErrNotFound):
		return "❌ Not found. Use /start to create your account"
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidInput):
		return "❌ Invalid amount or input"
	case errors.Is(err, service.ErrConversionUnavailable):
		return "⚠️ Conversion is temporarily unavailable"
	case errors.Is(err, service.ErrRequestNotPending):
		return "⚠️ That request was already resolved"
	case errors.Is(err, service.ErrReasonRequired):
		return "❌ A reason is required"
	}
	return "❌ Something went wrong, please try again later"
}

func replyError(c tele.Context, op string, err error) error {
	msg := userMessage(err)
	if strings.HasPrefix(msg, "❌ Something went wrong") {
		log.Error().Err(err).Str("operation", op).Msg("Bot command failed")
	}
	return c.Reply(msg)
}

// formatRemaining renders a cooldown like "1h 05m" or "42s".
func formatRemaining(d time.Duration) string {
	if d < time.Minute {
		s := int(d.Round(time.Second) / time.Second)
		if s < 1 {
			s = 1
		}
		return fmt.Sprintf("%ds", s)
	}
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}
