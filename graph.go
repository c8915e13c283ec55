package dagger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/path/dagger/internal/linker"
	"github.com/path/dagger/internal/registry"
)

// ObjectGraph owns one registry of bindings and one instance cache. It is
// the top-level entry surface: build it from modules, validate it eagerly
// or let individual requests fail lazily, and resolve or inject through
// it. The registry is immutable once Create returns; resolution is safe
// for concurrent use.
type ObjectGraph struct {
	registry *registry.Registry
	core     *linker.Core
	config   *graphConfig
	parent   *ObjectGraph
}

type graphConfig struct {
	logger    *slog.Logger
	onResolve []ResolveHook
	parallel  bool
}

// Create builds an object graph from the given modules. Nothing is linked
// yet: configuration errors (missing, duplicate, ambiguous bindings)
// surface from Validate, or from the first Get or Inject that needs the
// broken key.
func Create(modules ...*Module) *ObjectGraph {
	return CreateWith(nil, modules...)
}

func CreateWith(opts []Option, modules ...*Module) *ObjectGraph {
	cfg := &graphConfig{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return newGraph(cfg, nil, modules)
}

func newGraph(cfg *graphConfig, parent *ObjectGraph, modules []*Module) *ObjectGraph {
	g := &ObjectGraph{
		registry: registry.New(),
		config:   cfg,
		parent:   parent,
	}

	var parentCore *linker.Core
	if parent != nil {
		parentCore = parent.core
	}

	hooks := make([]linker.ResolveHook, 0, len(cfg.onResolve))
	for _, h := range cfg.onResolve {
		hooks = append(hooks, linker.ResolveHook(h))
	}

	g.core = linker.New(
		g.registry, parentCore, &linker.Config{
			Logger:    cfg.logger,
			Implicit:  synthesizeBinding,
			OnResolve: hooks,
			Parallel:  cfg.parallel,
		},
	)

	for _, m := range modules {
		if m == nil {
			continue
		}
		m.apply(g)
	}

	return g
}

// Plus returns a child graph extending this one. Child bindings shadow
// same-key parent bindings; everything else falls back to the parent. The
// child reads parent-cached singletons but never writes into the parent.
func (g *ObjectGraph) Plus(modules ...*Module) *ObjectGraph {
	return newGraph(g.config, g, modules)
}

func (g *ObjectGraph) Parent() *ObjectGraph {
	return g.parent
}

// Validate eagerly links every registered key and entry point and
// aggregates all discoverable errors into one report, instead of stopping
// at the first.
func (g *ObjectGraph) Validate() error {
	entries := g.core.LinkAll()
	if len(entries) == 0 {
		return nil
	}

	ve := &ValidationError{
		Errors: make([]ErrorEntry, 0, len(entries)),
	}
	for _, e := range entries {
		msg := e.Message
		if e.RequiredBy != "" {
			msg = fmt.Sprintf("%s (required by %s)", msg, e.RequiredBy)
		}
		ve.Errors = append(
			ve.Errors, ErrorEntry{
				Key:     e.Key,
				Code:    codeForKind(e.Kind),
				Message: msg,
			},
		)
	}
	return ve
}

// GetKey resolves a raw key. Prefer the typed Get helpers.
func (g *ObjectGraph) GetKey(ctx context.Context, key string) (any, error) {
	instance, err := g.core.Resolve(ctx, key)
	if err != nil {
		return nil, wrapResolveError(key, err)
	}
	return instance, nil
}

// Preload eagerly instantiates every singleton in dependency order,
// concurrently per depth level when the graph was created with
// WithParallelPreload.
func (g *ObjectGraph) Preload(ctx context.Context) error {
	if err := g.core.Preload(ctx); err != nil {
		return wrapResolveError("", err)
	}
	return nil
}

func (g *ObjectGraph) HasKey(key string) bool {
	return g.core.Has(key)
}

func (g *ObjectGraph) Keys() []string {
	return slices.Collect(g.registry.Keys())
}

func (g *ObjectGraph) Size() int {
	return g.registry.Size()
}

// Internal exposes the runtime core for sibling packages such as
// daggertest. Not part of the supported API surface.
func (g *ObjectGraph) Internal() *linker.Core {
	return g.core
}
