// Package slack fetches channel history from the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/domain/model"
	"github.com/edgard/kakeibo/internal/errs"
)

// maxBody bounds how much of a history response is read.
const maxBody = 8 << 20

// Params holds the history endpoint coordinates and credentials.
type Params struct {
	BaseURL   string
	Method    string
	ChannelID string
	Token     string
}

// URL returns {base}/{method}?channel={channel}.
func (p Params) URL() string {
	return fmt.Sprintf("%s/%s?channel=%s",
		strings.TrimRight(p.BaseURL, "/"), p.Method, url.QueryEscape(p.ChannelID))
}

// Client retrieves the latest page of a channel's history.
type Client struct {
	params     Params
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a history client. A nil httpClient means http.DefaultClient.
func NewClient(params Params, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		params:     params,
		httpClient: httpClient,
		log:        log.With().Str("component", "slack").Logger(),
	}
}

type historyResponse struct {
	OK       *bool           `json:"ok"`
	Error    string          `json:"error"`
	Messages json.RawMessage `json:"messages"`
}

type rawMessage struct {
	TS   string          `json:"ts"`
	Text json.RawMessage `json:"text"`
}

// text returns the message text; a missing or non-string value is empty.
func (r rawMessage) text() string {
	var s string
	if err := json.Unmarshal(r.Text, &s); err != nil {
		return ""
	}
	return s
}

// ConversationHistory issues one POST to the history endpoint and returns the
// messages in the order the API sent them (newest first for Slack).
func (c *Client) ConversationHistory(ctx context.Context) ([]model.Message, error) {
	endpoint := c.params.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return nil, errs.NewFetchError("failed to build history request", err, nil)
	}
	req.Header.Set("Authorization", "Bearer "+c.params.Token)

	c.log.Debug().Str("method", c.params.Method).Str("channel", c.params.ChannelID).Msg("Fetching conversation history")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewFetchError("failed to get conversations history", err, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errs.NewFetchError("failed to read history response", err, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.NewFetchError(
			fmt.Sprintf("history endpoint returned status %d", resp.StatusCode), nil, body)
	}

	msgs, err := ParseHistory(body)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Int("count", len(msgs)).Msg("Fetched conversation history")
	return msgs, nil
}

// ParseHistory decodes a history response body into messages, preserving order.
func ParseHistory(body []byte) ([]model.Message, error) {
	var res historyResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errs.NewFetchError("failed to decode history response", err, body)
	}

	if res.OK != nil && !*res.OK {
		return nil, errs.NewFetchError(fmt.Sprintf("history request rejected: %s", res.Error), nil, body)
	}

	raw := bytes.TrimSpace(res.Messages)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errs.NewFetchError("failed to get messages from history response", nil, body)
	}

	var items []rawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errs.NewFetchError("messages field is not a list of messages", err, body)
	}

	msgs := make([]model.Message, 0, len(items))
	for i, item := range items {
		ts, err := strconv.ParseFloat(item.TS, 64)
		if err != nil {
			return nil, errs.NewFetchError(fmt.Sprintf("invalid timestamp %q at index %d", item.TS, i), err, body)
		}
		msgs = append(msgs, model.Message{Timestamp: ts, Text: item.text()})
	}

	return msgs, nil
}
