package dagger

import (
	"context"

	"github.com/path/dagger/internal/linker"
	"github.com/path/dagger/internal/scope"
)

type Scope = scope.Scope

const (
	Unscoped  = scope.Unscoped
	Singleton = scope.Singleton
	Request   = scope.Request
)

// WithRequestScope attaches a fresh request scope to ctx. Request-scoped
// bindings resolved under the returned context share one instance per
// scope.
func WithRequestScope(ctx context.Context) context.Context {
	return linker.WithRequestScope(ctx)
}
