package flags

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

var logLevel slog.LevelVar

func init() {
	h := &slogHandler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}),
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(slog.LevelError)
}

var hadSlogError atomic.Bool

// ExitError exits 1 if anything was logged at error level.
func ExitError() {
	if hadSlogError.Load() {
		os.Exit(1)
	}
	os.Exit(0)
}

type slogHandler struct {
	slog.Handler
}

func (n *slogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		hadSlogError.Store(true)
	}
	return n.Handler.Handle(ctx, r)
}

func (n *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &slogHandler{n.Handler.WithAttrs(attrs)}
}

func (n *slogHandler) WithGroup(name string) slog.Handler {
	return &slogHandler{n.Handler.WithGroup(name)}
}
