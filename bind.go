package dagger

import (
	"context"

	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/registry"
)

// ModuleBind binds interface I to implementation T: requests for I
// delegate to T's binding, wherever that binding comes from.
func ModuleBind[I, T any](m *Module, opts ...ProviderOption) *Module {
	m.entries = append(
		m.entries, func(g *ObjectGraph) {
			cfg := &providerConfig{}
			for _, opt := range opts {
				opt(cfg)
			}

			interfaceKey := keys.Named(keys.TypeKey[I](), cfg.name)
			implKey := keys.TypeKey[T]()

			g.registry.Register(
				interfaceKey, &registry.Binding{
					Producer: func(ctx context.Context, r registry.Resolver) (any, error) {
						return r.Resolve(ctx, implKey)
					},
					Dependencies: []string{implKey},
					Scope:        cfg.scope,
					Source:       m.name,
				}, m.overrides,
			)
		},
	)
	return m
}

func ModuleBindNamed[I, T any](m *Module, name string, opts ...ProviderOption) *Module {
	opts = append(opts, WithName(name))
	return ModuleBind[I, T](m, opts...)
}
