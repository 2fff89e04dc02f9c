package renderer_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/meemee/studio/renderer"
)

func TestStatusAssetURL(t *testing.T) {
	tests := []struct {
		urls []string
		want string
	}{
		{[]string{"https://x/1.mp4", "https://x/2.mp4"}, "https://x/1.mp4"},
		{[]string{"", " https://x/2.mp4 "}, "https://x/2.mp4"},
		{nil, ""},
	}
	for _, tt := range tests {
		got := renderer.Status{Phase: renderer.PhaseSuccess, AssetURLs: tt.urls}.AssetURL()
		if got != tt.want {
			t.Errorf("AssetURL(%v) = %q, want %q", tt.urls, got, tt.want)
		}
	}
}

func TestProviderErrorClassification(t *testing.T) {
	credit := &renderer.ProviderError{Code: 402, Message: "top up", Category: renderer.CategoryInsufficientCredit}
	wrapped := fmt.Errorf("submit: %w", credit)

	if !errors.Is(wrapped, renderer.ErrInsufficientCredit) {
		t.Error("expected wrapped credit error to match ErrInsufficientCredit")
	}
	if got := renderer.Classify(wrapped); got != renderer.CategoryInsufficientCredit {
		t.Errorf("Classify = %q, want insufficient-credit", got)
	}

	generic := &renderer.ProviderError{Code: 500, Message: "boom", Category: renderer.CategoryGeneric}
	if errors.Is(generic, renderer.ErrInsufficientCredit) {
		t.Error("generic provider error must not match ErrInsufficientCredit")
	}
	if got := renderer.Classify(errors.New("dial tcp")); got != renderer.CategoryGeneric {
		t.Errorf("Classify(plain) = %q, want generic", got)
	}
}

func TestPhaseTerminal(t *testing.T) {
	for p, want := range map[renderer.Phase]bool{
		renderer.PhaseQueued:  false,
		renderer.PhaseRunning: false,
		renderer.PhaseSuccess: true,
		renderer.PhaseFailure: true,
	} {
		if p.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", p, p.Terminal(), want)
		}
	}
}
