package dagger

import (
	"context"
	"fmt"
	"reflect"

	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/registry"
)

// Module is a named bundle of binding declarations. Modules are inert
// until handed to Create or Plus; applying the same module to several
// graphs is fine.
type Module struct {
	name      string
	overrides bool
	includes  []*Module
	entries   []moduleEntry
}

type moduleEntry func(g *ObjectGraph)

func NewModule(name string) *Module {
	return &Module{
		name: name,
	}
}

func (m *Module) Name() string {
	return m.name
}

// Include nests submodule's declarations into m. Included modules are
// applied before m's own declarations.
func (m *Module) Include(submodule *Module) *Module {
	m.includes = append(m.includes, submodule)
	return m
}

// Overrides lets m's bindings replace same-key bindings from other
// modules instead of raising a DuplicateBindingError. Meant for test and
// plugin modules.
func (m *Module) Overrides() *Module {
	m.overrides = true
	return m
}

func (m *Module) apply(g *ObjectGraph) {
	for _, sub := range m.includes {
		sub.apply(g)
	}
	for _, entry := range m.entries {
		entry(g)
	}
}

func ModuleProvide[T any](m *Module, provider Provider[T], opts ...ProviderOption) *Module {
	m.entries = append(
		m.entries, func(g *ObjectGraph) {
			cfg := &providerConfig{}
			for _, opt := range opts {
				opt(cfg)
			}

			key := keys.Named(keys.TypeKey[T](), cfg.name)
			if keys.Unsupported(keys.TypeOf[T]()) {
				g.registry.RecordInvalid(
					key,
					fmt.Sprintf("module %q provides unkeyable type %s", m.name, keys.TypeName[T]()),
				)
				return
			}

			g.registry.Register(
				key, &registry.Binding{
					Producer:     wrapProvider(provider),
					Dependencies: cfg.dependencies,
					Scope:        cfg.scope,
					Source:       m.name,
				}, m.overrides,
			)
		},
	)
	return m
}

func ModuleProvideValue[T any](m *Module, value T, opts ...ProviderOption) *Module {
	opts = append([]ProviderOption{WithScope(Singleton)}, opts...)
	return ModuleProvide(
		m, func(ctx context.Context, r Resolver) (T, error) {
			return value, nil
		}, opts...,
	)
}

// ModuleContribute adds one set contribution for element type T. All
// contributions for the same element type aggregate into a single
// multibinding resolved with GetSet, ordered by declaration.
func ModuleContribute[T any](m *Module, provider Provider[T], opts ...ProviderOption) *Module {
	m.entries = append(
		m.entries, func(g *ObjectGraph) {
			cfg := &providerConfig{}
			for _, opt := range opts {
				opt(cfg)
			}

			setKey := keys.Set(keys.Named(keys.TypeKey[T](), cfg.name))
			if keys.Unsupported(keys.TypeOf[T]()) {
				g.registry.RecordInvalid(
					setKey,
					fmt.Sprintf("module %q contributes unkeyable type %s", m.name, keys.TypeName[T]()),
				)
				return
			}

			g.registry.Contribute(
				setKey, &registry.Binding{
					Producer:     wrapProvider(provider),
					Dependencies: cfg.dependencies,
					Scope:        cfg.scope,
					Source:       m.name,
				},
			)
		},
	)
	return m
}

func ModuleContributeValue[T any](m *Module, value T, opts ...ProviderOption) *Module {
	return ModuleContribute(
		m, func(ctx context.Context, r Resolver) (T, error) {
			return value, nil
		}, opts...,
	)
}

// ModuleScopeSet scopes the aggregate itself. Without it the collection
// is rebuilt on every request even when its elements are scoped.
func ModuleScopeSet[T any](m *Module, s Scope, opts ...ProviderOption) *Module {
	m.entries = append(
		m.entries, func(g *ObjectGraph) {
			cfg := &providerConfig{}
			for _, opt := range opts {
				opt(cfg)
			}
			g.registry.SetScope(keys.Set(keys.Named(keys.TypeKey[T](), cfg.name)), s)
		},
	)
	return m
}

// ModuleInjects declares T as an entry point: eager validation links T's
// injection sites (or its provider key for non-struct types) even when
// nothing else depends on them.
func ModuleInjects[T any](m *Module) *Module {
	m.entries = append(
		m.entries, func(g *ObjectGraph) {
			t := keys.TypeOf[T]()
			key := keys.FromType(t)

			structType := t
			if structType.Kind() == reflect.Ptr {
				structType = structType.Elem()
			}
			if structType.Kind() == reflect.Struct {
				key = keys.Members(keys.FromType(t))
			}

			g.core.AddRoot(key)
		},
	)
	return m
}

func wrapProvider[T any](provider Provider[T]) registry.ProducerFunc {
	return func(ctx context.Context, r registry.Resolver) (any, error) {
		return provider(ctx, &resolverAdapter{inner: r})
	}
}
