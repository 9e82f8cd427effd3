// Package observability decouples store instrumentation from store control flow.
// Stores call Begin at operation entry and the returned func once at exit.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Finish is called exactly once with the operation's error, nil on success
type Finish func(err error)

// Observer receives store operation events
type Observer interface {
	Begin(ctx context.Context, op string, attrs ...slog.Attr) Finish
}

// Nop discards every event
type Nop struct{}

func (Nop) Begin(context.Context, string, ...slog.Attr) Finish {
	return func(error) {}
}

// LogObserver writes operation events to slog: entry at debug, failures at error
// with the operation's key parameters.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Begin(ctx context.Context, op string, attrs ...slog.Attr) Finish {
	start := time.Now()
	base := append([]slog.Attr{slog.String("op", op)}, attrs...)
	o.logger.LogAttrs(ctx, slog.LevelDebug, "store operation", base...)

	return func(err error) {
		if err == nil {
			o.logger.LogAttrs(ctx, slog.LevelDebug, "store operation completed",
				append(base, slog.Duration("duration", time.Since(start)))...)
			return
		}
		o.logger.LogAttrs(ctx, slog.LevelError, "store operation failed",
			append(base, slog.Duration("duration", time.Since(start)), slog.Any("error", err))...)
	}
}

type chain []Observer

// Chain fans events out to every observer in order
func Chain(observers ...Observer) Observer {
	return chain(observers)
}

func (c chain) Begin(ctx context.Context, op string, attrs ...slog.Attr) Finish {
	finishes := make([]Finish, 0, len(c))
	for _, o := range c {
		finishes = append(finishes, o.Begin(ctx, op, attrs...))
	}
	return func(err error) {
		for _, f := range finishes {
			f(err)
		}
	}
}
