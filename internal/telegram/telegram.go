// Package telegram forwards messages to a Telegram chat through the Bot API.
// It is the alternate sink selected by notify.sink=telegram.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/edgard/kakeibo/internal/domain/model"
	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/logger"
)

// Params identifies the bot and the destination chat.
type Params struct {
	Token     string
	ChatID    string
	ServerURL string
	Timeout   time.Duration
}

// Notifier sends one Telegram message per relayed message.
type Notifier struct {
	bot     *bot.Bot
	token   string
	chatID  string
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewNotifier creates the bot client without calling getMe, so construction
// never touches the network. ratePerSec of zero disables pacing.
func NewNotifier(params Params, ratePerSec float64, log zerolog.Logger) (*Notifier, error) {
	if params.Token == "" {
		return nil, errs.NewConfigError("telegram bot token cannot be empty", nil)
	}
	if params.ChatID == "" {
		return nil, errs.NewConfigError("telegram chat id cannot be empty", nil)
	}

	opts := []bot.Option{bot.WithSkipGetMe()}
	if params.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(params.ServerURL))
	}
	if params.Timeout > 0 {
		opts = append(opts, bot.WithHTTPClient(params.Timeout, &http.Client{Timeout: params.Timeout}))
	}

	b, err := bot.New(params.Token, opts...)
	if err != nil {
		return nil, errs.NewConfigError("failed to create telegram bot", err)
	}

	n := &Notifier{
		bot:    b,
		token:  params.Token,
		chatID: params.ChatID,
		log:    log.With().Str("component", "telegram").Logger(),
	}
	if ratePerSec > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return n, nil
}

// FormatText renders a message as "<timestamp> <text>".
func FormatText(m model.Message) string {
	return fmt.Sprintf("%s %s", m.TimestampString(), m.Text)
}

// Notify sends every message in order, logging each outcome and carrying on
// after failures.
func (n *Notifier) Notify(ctx context.Context, msgs []model.Message) []model.Delivery {
	deliveries := make([]model.Delivery, 0, len(msgs))

	for _, m := range msgs {
		err := n.send(ctx, m)
		deliveries = append(deliveries, model.Delivery{Message: m, Err: err})

		if err != nil {
			n.log.Error().
				Err(err).
				Str("code", errs.Code(err)).
				Str("ts", m.TimestampString()).
				Msg("Error sending Telegram message")
			continue
		}

		n.log.Info().
			Str("ts", m.TimestampString()).
			Str("text", logger.Truncate(m.Text, 200)).
			Msg("Message posted")
	}

	return deliveries
}

func (n *Notifier) send(ctx context.Context, m model.Message) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return errs.NewNotifyError("rate limiter wait aborted", 0, err)
		}
	}

	if _, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   FormatText(m),
	}); err != nil {
		return errs.NewNotifyError("telegram sendMessage failed", 0, n.redact(err))
	}

	return nil
}

// redact keeps the bot token out of err. Request URLs have the form
// /bot<token>/<method>, so a transport error is reduced to its cause.
func (n *Notifier) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if msg := err.Error(); strings.Contains(msg, n.token) {
		return errors.New(strings.ReplaceAll(msg, n.token, "<redacted>"))
	}
	return err
}
