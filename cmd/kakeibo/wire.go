package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/config"
	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/ifttt"
	"github.com/edgard/kakeibo/internal/pipeline"
	"github.com/edgard/kakeibo/internal/slack"
	"github.com/edgard/kakeibo/internal/telegram"
)

func buildHistory(cfg *config.Config, log zerolog.Logger) *slack.Client {
	return slack.NewClient(slack.Params{
		BaseURL:   cfg.Slack.BaseURL,
		Method:    cfg.Slack.Method,
		ChannelID: cfg.Slack.ChannelID,
		Token:     cfg.Slack.Token,
	}, &http.Client{Timeout: cfg.Slack.Timeout}, log)
}

// buildNotifier returns the sink selected by notify.sink.
//
//nolint:ireturn // the sink is chosen at runtime
func buildNotifier(cfg *config.Config, log zerolog.Logger) (pipeline.Notifier, error) {
	switch cfg.Notify.Sink {
	case config.SinkIFTTT:
		return ifttt.NewClient(ifttt.Params{
			BaseURL:   cfg.IFTTT.BaseURL,
			EventName: cfg.IFTTT.EventName,
			Token:     cfg.IFTTT.Token,
		}, log,
			ifttt.WithHTTPClient(&http.Client{Timeout: cfg.Notify.Timeout}),
			ifttt.WithRateLimit(cfg.Notify.RatePerSec),
		), nil

	case config.SinkTelegram:
		n, err := telegram.NewNotifier(telegram.Params{
			Token:     cfg.Telegram.Token,
			ChatID:    cfg.Telegram.ChatID,
			ServerURL: cfg.Telegram.ServerURL,
			Timeout:   cfg.Notify.Timeout,
		}, cfg.Notify.RatePerSec, log)
		if err != nil {
			return nil, err
		}
		return n, nil

	default:
		return nil, errs.NewConfigError("unknown notify sink "+cfg.Notify.Sink, nil)
	}
}
