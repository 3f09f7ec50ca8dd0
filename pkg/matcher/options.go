package matcher

import (
	"log/slog"
	"time"
)

// DefaultMatchTimeout bounds a single backtracking regex evaluation in the
// portable engine.
const DefaultMatchTimeout = 5 * time.Second

type options struct {
	matchTimeout time.Duration
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		matchTimeout: DefaultMatchTimeout,
		logger:       slog.New(slog.DiscardHandler),
	}
}

// Option configures an Engine.
type Option func(*options)

// WithMatchTimeout sets the per-evaluation timeout of the portable engine
// (0 disables it).
func WithMatchTimeout(d time.Duration) Option {
	return func(o *options) { o.matchTimeout = d }
}

// WithLogger sets the logger used for compile diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
