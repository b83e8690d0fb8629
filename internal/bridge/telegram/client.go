// Package telegram delivers messages through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/utafrali/tgshop/internal/bridge"
	"github.com/utafrali/tgshop/pkg/httpclient"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Config configures the Bot API client.
type Config struct {
	APIURL string
	Token  string
	// MerchantChatID receives every submitted order. SendOrder fails with
	// bridge.ErrNoRecipient when it is empty.
	MerchantChatID string
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Client sends chat messages. It implements bridge.OrderSink,
// bridge.NotificationSink and bridge.AlertSink.
type Client struct {
	http     *httpclient.CircuitBreakerClient
	endpoint string
	merchant string
	logger   *slog.Logger
}

// New creates a Bot API client sending through hc.
func New(cfg Config, hc *httpclient.CircuitBreakerClient, logger *slog.Logger) *Client {
	base := cfg.APIURL
	if base == "" {
		base = DefaultAPIURL
	}
	return &Client{
		http:     hc,
		endpoint: strings.TrimRight(base, "/") + "/bot" + cfg.Token + "/sendMessage",
		merchant: cfg.MerchantChatID,
		logger:   logger,
	}
}

// SendMessage posts text to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	return c.send(ctx, sendMessageRequest{ChatID: chatID, Text: text})
}

func (c *Client) send(ctx context.Context, msg sendMessageRequest) error {
	if msg.ChatID == "" {
		return bridge.ErrNoRecipient
	}

	resp, err := c.http.PostJSON(ctx, c.endpoint, msg)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, "telegram")
	}
	defer func() { _ = resp.Body.Close() }()

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return fmt.Errorf("telegram sendMessage: decode response: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("telegram sendMessage: %s", body.Description)
	}

	c.logger.DebugContext(ctx, "telegram message sent", slog.String("chat_id", msg.ChatID))
	return nil
}

// SendNotification delivers the rendered lifecycle message to p.ChatID.
func (c *Client) SendNotification(ctx context.Context, p bridge.NotificationPayload) error {
	return c.SendMessage(ctx, p.ChatID, p.Message)
}

// Alert sends message directly to the user.
func (c *Client) Alert(ctx context.Context, userID, message string) error {
	return c.SendMessage(ctx, userID, message)
}

// SendOrder forwards the order payload as JSON to the merchant chat.
func (c *Client) SendOrder(ctx context.Context, p bridge.OrderPayload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode order payload: %w", err)
	}
	text := fmt.Sprintf("<b>New order %s</b>\n<pre>%s</pre>", p.OrderID, escapeHTML(string(data)))
	return c.send(ctx, sendMessageRequest{ChatID: c.merchant, Text: text, ParseMode: "HTML"})
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var _ interface {
	bridge.OrderSink
	bridge.NotificationSink
	bridge.AlertSink
} = (*Client)(nil)
