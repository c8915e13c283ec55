package dagger

import (
	"context"

	"github.com/path/dagger/internal/scope"
)

// Provider produces one value of T. It receives the resolution session's
// Resolver so that nested lookups participate in the same cycle
// detection; providers must not call back into the graph's top-level Get
// while running.
type Provider[T any] func(ctx context.Context, r Resolver) (T, error)

type ProviderOption func(*providerConfig)

type providerConfig struct {
	name         string
	scope        scope.Scope
	dependencies []string
}

func WithName(name string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.name = name
	}
}

// WithScope sets the binding's lifetime. Bindings are unscoped by
// default: every request runs the producer again.
func WithScope(s Scope) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.scope = s
	}
}

// WithDependencies declares the keys the provider resolves through its
// Resolver. Declared dependencies are what eager validation walks, so an
// undeclared dependency is only discovered at first use.
func WithDependencies(deps ...string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.dependencies = deps
	}
}
