package kie_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meemee/studio/renderer"
	"github.com/meemee/studio/renderer/kie"
)

func newServer(t *testing.T, handler http.HandlerFunc) *kie.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return kie.New("test-key", kie.WithBaseURL(srv.URL+"/"), kie.WithHTTPClient(srv.Client()))
}

func TestSubmit(t *testing.T) {
	var got struct {
		Model string `json:"model"`
		Input struct {
			Prompt          string `json:"prompt"`
			AspectRatio     string `json:"aspect_ratio"`
			NFrames         string `json:"n_frames"`
			RemoveWatermark bool   `json:"remove_watermark"`
		} `json:"input"`
	}

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/createTask" {
			t.Errorf("request = %s %s, want POST /createTask", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"task-123"}}`))
	})

	handle, err := c.Submit(context.Background(), "Alex waves")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if handle != "task-123" {
		t.Errorf("handle = %q, want %q", handle, "task-123")
	}
	if got.Model != kie.DefaultModel || got.Input.Prompt != "Alex waves" {
		t.Errorf("body = %+v, want default model and prompt", got)
	}
	if got.Input.AspectRatio != "portrait" || got.Input.NFrames != "10" || !got.Input.RemoveWatermark {
		t.Errorf("input = %+v, want portrait/10/remove_watermark", got.Input)
	}
}

func TestSubmitInsufficientCredit(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"envelope code", http.StatusOK, `{"code":402,"msg":"Credits insufficient"}`},
		{"http status", http.StatusPaymentRequired, `{"code":402,"msg":"top up"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Submit(context.Background(), "x")
			if !errors.Is(err, renderer.ErrInsufficientCredit) {
				t.Fatalf("err = %v, want ErrInsufficientCredit", err)
			}
			var pe *renderer.ProviderError
			if !errors.As(err, &pe) || pe.Code != 402 {
				t.Errorf("err = %v, want ProviderError code 402", err)
			}
		})
	}
}

func TestSubmitGenericErrors(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":500,"msg":"internal"}`))
	})
	_, err := c.Submit(context.Background(), "x")
	if err == nil || errors.Is(err, renderer.ErrInsufficientCredit) {
		t.Fatalf("err = %v, want generic provider error", err)
	}
	if renderer.Classify(err) != renderer.CategoryGeneric {
		t.Errorf("Classify = %q, want generic", renderer.Classify(err))
	}

	noID := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{}}`))
	})
	if _, err := noID.Submit(context.Background(), "x"); !errors.Is(err, kie.ErrNoTaskID) {
		t.Errorf("err = %v, want ErrNoTaskID", err)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantPhase renderer.Phase
		wantURL   string
		wantCat   renderer.Category
	}{
		{"waiting", `{"code":200,"data":{"state":"waiting"}}`, renderer.PhaseQueued, "", ""},
		{"generating", `{"code":200,"data":{"state":"generating"}}`, renderer.PhaseRunning, "", ""},
		{"success string result", `{"code":200,"data":{"state":"success","resultJson":"{\"resultUrls\":[\"https://x/1.mp4\"]}"}}`, renderer.PhaseSuccess, "https://x/1.mp4", ""},
		{"success object result", `{"code":200,"data":{"state":"success","resultJson":{"resultUrls":["https://x/2.mp4","https://x/3.mp4"]}}}`, renderer.PhaseSuccess, "https://x/2.mp4", ""},
		{"success without urls", `{"code":200,"data":{"state":"success","resultJson":""}}`, renderer.PhaseSuccess, "", ""},
		{"fail", `{"code":200,"data":{"state":"fail","failMsg":"content policy"}}`, renderer.PhaseFailure, "", renderer.CategoryGeneric},
		{"fail credit", `{"code":200,"data":{"state":"fail","failMsg":"Insufficient credits"}}`, renderer.PhaseFailure, "", renderer.CategoryInsufficientCredit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/recordInfo" || r.URL.Query().Get("taskId") != "task-123" {
					t.Errorf("request = %s, want /recordInfo?taskId=task-123", r.URL)
				}
				_, _ = w.Write([]byte(tt.body))
			})

			st, err := c.Status(context.Background(), "task-123")
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if st.Phase != tt.wantPhase {
				t.Errorf("Phase = %q, want %q", st.Phase, tt.wantPhase)
			}
			if st.AssetURL() != tt.wantURL {
				t.Errorf("AssetURL = %q, want %q", st.AssetURL(), tt.wantURL)
			}
			if st.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", st.Category, tt.wantCat)
			}
		})
	}
}

func TestStatusTransportErrors(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})
	if _, err := c.Status(context.Background(), "task-123"); err == nil {
		t.Fatal("expected error for 502 response")
	}

	garbage := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	if _, err := garbage.Status(context.Background(), "task-123"); err == nil {
		t.Fatal("expected error for undecodable response")
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":{"taskId":"t"}}`))
	}))
	t.Cleanup(srv.Close)

	c := kie.New("k", kie.WithBaseURL(srv.URL), kie.WithRateLimit(0.001, 1))
	if _, err := c.Submit(context.Background(), "first"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Submit(ctx, "second"); err == nil {
		t.Fatal("expected limiter wait to fail on cancelled context")
	}
}
