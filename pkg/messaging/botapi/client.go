// Package botapi implements messaging.Client against an HTTP Bot API
// (https://core.telegram.org/bots/api compatible).
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/messaging"
)

const (
	// DefaultAPIURL is the public Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"

	// DefaultRequestTimeout bounds a single API call.
	DefaultRequestTimeout = 30 * time.Second
)

// Config configures the Bot API client.
type Config struct {
	// APIURL is the Bot API base URL. Default: https://api.telegram.org
	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	// Token is the bot token issued by the platform.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// RequestTimeout bounds each API call. Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// WebhookURL, when set, is registered with setWebhook during Connect.
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Client talks to the Bot API over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
	connected  atomic.Bool
}

// New creates a client. No request is made until Connect.
func New(config Config) *Client {
	config.applyDefaults()
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

// response is the envelope every Bot API method returns.
type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return strings.TrimRight(c.config.APIURL, "/") + "/bot" + c.config.Token + "/" + method
}

// call invokes method with params JSON-encoded and decodes the result into
// out when non-nil.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body := bytebufferpool.Get()
	defer bytebufferpool.Put(body)

	if params != nil {
		if err := json.NewEncoder(body).Encode(params); err != nil {
			return fmt.Errorf("failed to encode %s request: %w", method, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body.B))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, stripURL(err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody := bytebufferpool.Get()
	defer bytebufferpool.Put(respBody)
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	logger.Debug("Bot API call", "method", method, "status", resp.StatusCode,
		logger.KeyDurationMs, logger.Since(start))

	var env response
	if err := json.Unmarshal(respBody.B, &env); err != nil {
		return &messaging.APIError{Method: method, StatusCode: resp.StatusCode, Description: "malformed response"}
	}

	if !env.OK {
		return classify(method, resp.StatusCode, &env)
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// stripURL drops the request URL from transport errors. Method URLs embed
// the bot token.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// classify maps a failed envelope to the messaging error taxonomy.
func classify(method string, status int, env *response) error {
	code := env.ErrorCode
	if code == 0 {
		code = status
	}

	if code == http.StatusTooManyRequests {
		wait := time.Second
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			wait = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return &messaging.RateLimitedError{Method: method, Wait: wait}
	}

	if strings.Contains(strings.ToLower(env.Description), "message is not modified") {
		return messaging.ErrMessageNotModified
	}

	return &messaging.APIError{Method: method, StatusCode: code, Description: env.Description}
}

// Connect verifies the token and optionally registers the webhook.
func (c *Client) Connect(ctx context.Context) error {
	if c.config.Token == "" {
		return fmt.Errorf("bot token is not configured")
	}

	var me messaging.User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return err
	}

	if c.config.WebhookURL != "" {
		params := map[string]any{"url": c.config.WebhookURL}
		if err := c.call(ctx, "setWebhook", params, nil); err != nil {
			return fmt.Errorf("failed to register webhook: %w", err)
		}
		logger.Info("Webhook registered", logger.KeyURL, webhookHost(c.config.WebhookURL))
	}

	c.connected.Store(true)
	return nil
}

func (c *Client) ensureConnected() error {
	if !c.connected.Load() {
		return messaging.ErrNotConnected
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*messaging.User, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}
	var me messaging.User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// SetCommands replaces the bot's command menu.
func (c *Client) SetCommands(ctx context.Context, commands []messaging.BotCommand) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

// EditMessageText replaces the text of an existing message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

// SendMessage posts text to chatID and returns the sent message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*messaging.Message, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}
	var sent messaging.Message
	if err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, &sent); err != nil {
		return nil, err
	}
	return &sent, nil
}

// Close marks the client disconnected and drops idle HTTP connections.
func (c *Client) Close(_ context.Context) error {
	if c.connected.Swap(false) {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

var _ messaging.Client = (*Client)(nil)

// webhookHost returns scheme and host of a webhook URL. The path carries the
// webhook secret.
func webhookHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(invalid)"
	}
	return u.Scheme + "://" + u.Host
}
