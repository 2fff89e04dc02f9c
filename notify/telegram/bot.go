// Package telegram implements notify.Channel over the Telegram Bot API.
//
// Only two methods are used, both as JSON POSTs:
//
//	POST {base}/bot{token}/sendVideo    → {"ok":true,"result":{"video":{"file_id":"…"}}}
//	POST {base}/bot{token}/sendMessage  → {"ok":true,"result":{…}}
//
// Rate-limited calls (HTTP 429) are retried, honoring the retry_after hint
// when the API sends one and jittered exponential backoff otherwise.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meemee/studio/backoff"
	"github.com/meemee/studio/notify"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// APIError is a non-ok Bot API response.
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// Bot sends messages through one bot token. It is safe for concurrent use.
type Bot struct {
	token      string
	baseURL    string
	http       *http.Client
	logger     *slog.Logger
	maxRetries int
	backoff    backoff.Strategy
}

var _ notify.Channel = (*Bot)(nil)

// Option configures a Bot.
type Option func(*Bot)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(b *Bot) { b.baseURL = u }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(b *Bot) { b.http = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithMaxRetries bounds retries of rate-limited calls.
func WithMaxRetries(n int) Option {
	return func(b *Bot) { b.maxRetries = n }
}

// WithBackoff sets the delay strategy used when the API gives no
// retry_after hint.
func WithBackoff(s backoff.Strategy) Option {
	return func(b *Bot) { b.backoff = s }
}

// New creates a Bot for token.
func New(token string, opts ...Option) *Bot {
	b := &Bot{
		token:      token,
		baseURL:    DefaultBaseURL,
		http:       &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
		maxRetries: 3,
		backoff:    backoff.NewExponentialWithJitter(time.Second, 30*time.Second),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ── wire types ──

type inlineButton struct {
	Text              string `json:"text"`
	CallbackData      string `json:"callback_data,omitempty"`
	SwitchInlineQuery string `json:"switch_inline_query,omitempty"`
	URL               string `json:"url,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendVideoRequest struct {
	ChatID      int64        `json:"chat_id"`
	Video       string       `json:"video"`
	Caption     string       `json:"caption,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type sendMessageRequest struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type sentMessage struct {
	Video *struct {
		FileID string `json:"file_id"`
	} `json:"video"`
}

func markup(kb notify.Keyboard) *replyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]inlineButton, len(kb))
	for i, row := range kb {
		rows[i] = make([]inlineButton, len(row))
		for k, btn := range row {
			rows[i][k] = inlineButton{
				Text:              btn.Text,
				CallbackData:      btn.Callback,
				SwitchInlineQuery: btn.SwitchInline,
				URL:               btn.URL,
			}
		}
	}
	return &replyMarkup{InlineKeyboard: rows}
}

// SendVideo implements notify.Channel. The returned reference is the
// Telegram file id of the delivered video.
func (b *Bot) SendVideo(ctx context.Context, target int64, url, caption string, kb notify.Keyboard) (string, error) {
	raw, err := b.call(ctx, "sendVideo", sendVideoRequest{
		ChatID:      target,
		Video:       url,
		Caption:     caption,
		ReplyMarkup: markup(kb),
	})
	if err != nil {
		return "", err
	}

	var msg sentMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("telegram: decode sendVideo result: %w", err)
	}
	if msg.Video == nil {
		return "", nil
	}
	return msg.Video.FileID, nil
}

// SendText implements notify.Channel.
func (b *Bot) SendText(ctx context.Context, target int64, text string, kb notify.Keyboard) error {
	_, err := b.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      target,
		Text:        text,
		ReplyMarkup: markup(kb),
	})
	return err
}

// call posts payload to method, retrying 429 responses.
func (b *Bot) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: encode %s: %w", method, err)
	}

	for attempt := 1; ; attempt++ {
		raw, err := b.post(ctx, method, body)
		if err == nil {
			return raw, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests || attempt > b.maxRetries {
			return nil, err
		}

		wait := apiErr.RetryAfter
		if wait <= 0 {
			wait = b.backoff.Delay(attempt)
		}
		b.logger.Warn("telegram rate limited, retrying",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (b *Bot) post(ctx context.Context, method string, body []byte) (json.RawMessage, error) {
	endpoint := b.baseURL + "/bot" + b.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of the error.
		return nil, fmt.Errorf("telegram: %s: transport error", method)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read %s: %w", method, err)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("telegram: decode %s (http %d): %w", method, resp.StatusCode, err)
	}
	if !r.OK {
		apiErr := &APIError{Code: r.ErrorCode, Description: r.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if r.Parameters != nil && r.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(r.Parameters.RetryAfter) * time.Second
		}
		return nil, apiErr
	}
	return r.Result, nil
}
