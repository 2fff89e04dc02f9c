// Package kie implements renderer.Client over the kie.ai jobs API.
//
// Two endpoints are used:
//
//	POST {base}/createTask            → {"code":200,"data":{"taskId":"…"}}
//	GET  {base}/recordInfo?taskId=…   → {"code":200,"data":{"state":"…", …}}
//
// Provider code 402 (or a failure message about credits) is reported as
// renderer.CategoryInsufficientCredit. Outbound calls share a token-bucket
// limiter so many concurrent poll loops cannot flood the provider.
//
//	c := kie.New(apiKey,
//	    kie.WithRateLimit(5, 5),
//	    kie.WithLogger(logger),
//	)
//	handle, err := c.Submit(ctx, prompt)
package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/meemee/studio/renderer"
)

const (
	// DefaultBaseURL is the production jobs API.
	DefaultBaseURL = "https://api.kie.ai/api/v1/jobs"
	// DefaultModel is the text-to-video model used for every render.
	DefaultModel = "sora-2-text-to-video"

	codeOK                 = 200
	codeInsufficientCredit = 402
)

// ErrNoTaskID is returned when the provider accepts a task but omits its id.
var ErrNoTaskID = errors.New("kie: response carries no task id")

// Client talks to the kie.ai jobs API. It is safe for concurrent use.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	aspectRatio     string
	frames          string
	removeWatermark bool

	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ renderer.Client = (*Client)(nil)

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:          apiKey,
		baseURL:         DefaultBaseURL,
		model:           DefaultModel,
		aspectRatio:     "portrait",
		frames:          "10",
		removeWatermark: true,
		http:            &http.Client{Timeout: 30 * time.Second},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c
}

// envelope is the common response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type createTaskRequest struct {
	Model string          `json:"model"`
	Input createTaskInput `json:"input"`
}

type createTaskInput struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	NFrames         string `json:"n_frames"`
	RemoveWatermark bool   `json:"remove_watermark"`
}

type createTaskData struct {
	TaskID string `json:"taskId"`
}

type recordInfoData struct {
	TaskID     string          `json:"taskId"`
	State      string          `json:"state"`
	ResultJSON json.RawMessage `json:"resultJson"`
	FailMsg    string          `json:"failMsg"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

// Submit implements renderer.Client.
func (c *Client) Submit(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(createTaskRequest{
		Model: c.model,
		Input: createTaskInput{
			Prompt:          prompt,
			AspectRatio:     c.aspectRatio,
			NFrames:         c.frames,
			RemoveWatermark: c.removeWatermark,
		},
	})
	if err != nil {
		return "", fmt.Errorf("kie: marshal task: %w", err)
	}

	env, err := c.do(ctx, http.MethodPost, c.baseURL+"/createTask", body)
	if err != nil {
		return "", fmt.Errorf("kie: create task: %w", err)
	}

	var data createTaskData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", fmt.Errorf("kie: decode task: %w", err)
		}
	}
	if data.TaskID == "" {
		return "", ErrNoTaskID
	}

	c.logger.Debug("kie task created", slog.String("task_id", data.TaskID))
	return data.TaskID, nil
}

// Status implements renderer.Client.
func (c *Client) Status(ctx context.Context, handle string) (renderer.Status, error) {
	endpoint := c.baseURL + "/recordInfo?" + url.Values{"taskId": {handle}}.Encode()

	env, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return renderer.Status{}, fmt.Errorf("kie: record info: %w", err)
	}

	var data recordInfoData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return renderer.Status{}, fmt.Errorf("kie: decode record info: %w", err)
	}

	switch strings.ToLower(data.State) {
	case "success":
		urls, err := decodeResultURLs(data.ResultJSON)
		if err != nil {
			return renderer.Status{}, fmt.Errorf("kie: decode result: %w", err)
		}
		return renderer.Status{Phase: renderer.PhaseSuccess, AssetURLs: urls}, nil
	case "fail":
		return renderer.Status{
			Phase:    renderer.PhaseFailure,
			Reason:   data.FailMsg,
			Category: categorize(0, data.FailMsg),
		}, nil
	case "waiting", "queuing", "":
		return renderer.Status{Phase: renderer.PhaseQueued}, nil
	default:
		return renderer.Status{Phase: renderer.PhaseRunning}, nil
	}
}

// do sends one rate-limited request and decodes the envelope. A non-200
// envelope code, or an HTTP error status, is returned as a
// *renderer.ProviderError.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var env envelope
	if decodeErr := json.Unmarshal(raw, &env); decodeErr != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, providerError(resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, fmt.Errorf("decode envelope: %w", decodeErr)
	}

	if env.Code == 0 {
		env.Code = resp.StatusCode
	}
	if env.Code != codeOK {
		msg := env.Msg
		if msg == "" {
			msg = http.StatusText(env.Code)
		}
		return nil, providerError(env.Code, msg)
	}
	return &env, nil
}

func providerError(code int, msg string) *renderer.ProviderError {
	return &renderer.ProviderError{Code: code, Message: msg, Category: categorize(code, msg)}
}

func categorize(code int, msg string) renderer.Category {
	if code == codeInsufficientCredit {
		return renderer.CategoryInsufficientCredit
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "credit") && (strings.Contains(lower, "insufficient") || strings.Contains(lower, "not enough")) {
		return renderer.CategoryInsufficientCredit
	}
	return renderer.CategoryGeneric
}

// decodeResultURLs accepts resultJson either as an embedded JSON string or
// as an object.
func decodeResultURLs(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}
	var p resultPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p.ResultURLs, nil
}
