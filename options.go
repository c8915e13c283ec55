package dagger

import "log/slog"

type Option func(*graphConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *graphConfig) {
		cfg.logger = logger
	}
}

func WithResolveObserver(hook ResolveHook) Option {
	return func(cfg *graphConfig) {
		cfg.onResolve = append(cfg.onResolve, hook)
	}
}

// WithParallelPreload makes Preload build independent singletons of the
// same dependency depth concurrently.
func WithParallelPreload() Option {
	return func(cfg *graphConfig) {
		cfg.parallel = true
	}
}
