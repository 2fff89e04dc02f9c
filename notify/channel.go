package notify

import (
	"context"
	"log/slog"
	"strconv"
)

// Button is one inline action attached to a message. Exactly one of
// Callback, SwitchInline or URL is expected to be set.
type Button struct {
	Text         string
	Callback     string
	SwitchInline string
	URL          string
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Channel delivers messages to a chat target.
type Channel interface {
	// SendVideo delivers the video at url inline and returns a reference
	// to the delivered media that can be reused later.
	SendVideo(ctx context.Context, target int64, url, caption string, kb Keyboard) (string, error)

	// SendText delivers a plain text message.
	SendText(ctx context.Context, target int64, text string, kb Keyboard) error
}

// LogChannel is a Channel that only logs. It is used when no chat
// transport is configured.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel returns a LogChannel writing to logger.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

// SendVideo implements Channel.
func (c *LogChannel) SendVideo(_ context.Context, target int64, url, caption string, _ Keyboard) (string, error) {
	c.logger.Info("notify video",
		slog.Int64("target", target),
		slog.String("url", url),
		slog.String("caption", caption),
	)
	return "log:" + strconv.FormatInt(target, 10), nil
}

// SendText implements Channel.
func (c *LogChannel) SendText(_ context.Context, target int64, text string, _ Keyboard) error {
	c.logger.Info("notify text",
		slog.Int64("target", target),
		slog.String("text", text),
	)
	return nil
}
