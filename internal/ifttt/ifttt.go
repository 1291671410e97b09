// Package ifttt forwards messages to an IFTTT Maker webhook trigger.
package ifttt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/edgard/kakeibo/internal/domain/model"
	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/logger"
)

// Params identifies the webhook trigger.
type Params struct {
	BaseURL   string
	EventName string
	Token     string
}

// URL returns {base}/{event}/with/key/{token} with event and token escaped
// as single path segments.
func (p Params) URL() string {
	return fmt.Sprintf("%s/%s/with/key/%s",
		strings.TrimRight(p.BaseURL, "/"), url.PathEscape(p.EventName), url.PathEscape(p.Token))
}

// Payload is the body accepted by the Maker webhook.
type Payload struct {
	Value1 string `json:"value1"`
	Value2 string `json:"value2"`
}

// BuildPayload serializes m as {"value1": <timestamp>, "value2": <text>}.
func BuildPayload(m model.Message) ([]byte, error) {
	return json.Marshal(Payload{Value1: m.TimestampString(), Value2: m.Text})
}

// Client posts one webhook request per message.
type Client struct {
	params     Params
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit spaces requests to at most perSec per second. Zero or
// negative values leave requests unpaced.
func WithRateLimit(perSec float64) Option {
	return func(c *Client) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// NewClient creates a webhook client.
func NewClient(params Params, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		params:     params,
		httpClient: http.DefaultClient,
		log:        log.With().Str("component", "ifttt").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify posts every message in order. A failed message is logged and
// recorded in its Delivery; the remaining messages are still posted.
func (c *Client) Notify(ctx context.Context, msgs []model.Message) []model.Delivery {
	target := c.params.URL()
	deliveries := make([]model.Delivery, 0, len(msgs))

	for _, m := range msgs {
		status, err := c.post(ctx, target, m)
		deliveries = append(deliveries, model.Delivery{Message: m, Status: status, Err: err})

		if err != nil {
			c.log.Error().
				Err(err).
				Str("code", errs.Code(err)).
				Int("status", status).
				Str("ts", m.TimestampString()).
				Msg("Error sending IFTTT webhook")
			continue
		}

		c.log.Info().
			Str("ts", m.TimestampString()).
			Str("text", logger.Truncate(m.Text, 200)).
			Msg("Message posted")
	}

	return deliveries
}

func (c *Client) post(ctx context.Context, target string, m model.Message) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, errs.NewNotifyError("rate limiter wait aborted", 0, err)
		}
	}

	payload, err := BuildPayload(m)
	if err != nil {
		return 0, errs.NewNotifyError("failed to encode webhook payload", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, errs.NewNotifyError("failed to build webhook request", 0, stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errs.NewNotifyError("webhook request failed", 0, stripURL(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, errs.NewNotifyError("webhook rejected message", resp.StatusCode, nil)
	}

	return resp.StatusCode, nil
}

// stripURL drops the URL from a *url.Error; the webhook URL embeds the key.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
