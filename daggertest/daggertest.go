// Package daggertest provides helpers for testing code that consumes an
// object graph: fatal-on-error accessors, validation assertions, and
// binding replacement for swapping real dependencies with test doubles.
package daggertest

import (
	"context"

	"github.com/path/dagger"
	"github.com/path/dagger/internal/keys"
)

type TB interface {
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Cleanup(f func())
}

type TestGraph struct {
	*dagger.ObjectGraph
	tb TB
}

// New builds a graph from the given modules and wraps it for use in tests.
func New(tb TB, modules ...*dagger.Module) *TestGraph {
	tb.Helper()

	return &TestGraph{
		ObjectGraph: dagger.Create(modules...),
		tb:          tb,
	}
}

// NewWith is New with graph options.
func NewWith(tb TB, opts []dagger.Option, modules ...*dagger.Module) *TestGraph {
	tb.Helper()

	return &TestGraph{
		ObjectGraph: dagger.CreateWith(opts, modules...),
		tb:          tb,
	}
}

// Wrap adopts an existing graph, for tests that exercise Plus chains.
func Wrap(tb TB, g *dagger.ObjectGraph) *TestGraph {
	tb.Helper()

	return &TestGraph{ObjectGraph: g, tb: tb}
}

func (tg *TestGraph) RequireValidate() {
	tg.tb.Helper()

	if err := tg.Validate(); err != nil {
		tg.tb.Fatalf("graph validation failed: %v", err)
	}
}

func (tg *TestGraph) RequirePreload(ctx context.Context) {
	tg.tb.Helper()

	if err := tg.Preload(ctx); err != nil {
		tg.tb.Fatalf("graph preload failed: %v", err)
	}
}

func (tg *TestGraph) RequireInject(ctx context.Context, target any) {
	tg.tb.Helper()

	if err := tg.Inject(ctx, target); err != nil {
		tg.tb.Fatalf("injection failed: %v", err)
	}
}

// Replace swaps the binding for T with a fixed value. The value is served
// as a cached singleton from then on.
func Replace[T any](tg *TestGraph, value T) {
	tg.tb.Helper()

	tg.Internal().ReplaceValue(keys.TypeKey[T](), value)
}

func ReplaceNamed[T any](tg *TestGraph, name string, value T) {
	tg.tb.Helper()

	tg.Internal().ReplaceValue(keys.Named(keys.TypeKey[T](), name), value)
}

func AssertHas[T any](tg *TestGraph) {
	tg.tb.Helper()

	if !dagger.Has[T](tg.ObjectGraph) {
		tg.tb.Fatalf("expected graph to have %s", keys.TypeKey[T]())
	}
}

func AssertHasNamed[T any](tg *TestGraph, name string) {
	tg.tb.Helper()

	if !dagger.HasNamed[T](tg.ObjectGraph, name) {
		tg.tb.Fatalf("expected graph to have %s", keys.Named(keys.TypeKey[T](), name))
	}
}

func AssertNotHas[T any](tg *TestGraph) {
	tg.tb.Helper()

	if dagger.Has[T](tg.ObjectGraph) {
		tg.tb.Fatalf("expected graph to not have %s", keys.TypeKey[T]())
	}
}

func MustGet[T any](tg *TestGraph) T {
	tg.tb.Helper()

	v, err := dagger.Get[T](tg.ObjectGraph)
	if err != nil {
		tg.tb.Fatalf("failed to get %s: %v", keys.TypeKey[T](), err)
	}
	return v
}

func MustGetNamed[T any](tg *TestGraph, name string) T {
	tg.tb.Helper()

	v, err := dagger.GetNamed[T](tg.ObjectGraph, name)
	if err != nil {
		tg.tb.Fatalf("failed to get %s: %v", keys.Named(keys.TypeKey[T](), name), err)
	}
	return v
}

func MustGetSet[T any](tg *TestGraph) []T {
	tg.tb.Helper()

	v, err := dagger.GetSet[T](tg.ObjectGraph)
	if err != nil {
		tg.tb.Fatalf("failed to get %s: %v", keys.Set(keys.TypeKey[T]()), err)
	}
	return v
}
