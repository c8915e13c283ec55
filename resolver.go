package dagger

import (
	"context"

	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/linker"
	"github.com/path/dagger/internal/registry"
)

// Resolver is the lookup surface handed to providers. Resolution through
// it stays inside the caller's session, so cycle detection keeps working
// across nested lookups.
type Resolver interface {
	Resolve(ctx context.Context, key string) (any, error)
	Has(key string) bool
}

type resolverAdapter struct {
	inner registry.Resolver
}

func (r *resolverAdapter) Resolve(ctx context.Context, key string) (any, error) {
	return r.inner.Resolve(ctx, key)
}

func (r *resolverAdapter) Has(key string) bool {
	return r.inner.Has(key)
}

func Get[T any](g *ObjectGraph) (T, error) {
	return GetCtx[T](context.Background(), g)
}

func GetCtx[T any](ctx context.Context, g *ObjectGraph) (T, error) {
	var zero T
	key := keys.TypeKey[T]()

	instance, err := g.core.Resolve(ctx, key)
	if err != nil {
		return zero, wrapResolveError(key, err)
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errResolutionFailed(key, nil)
	}

	return typed, nil
}

func GetNamed[T any](g *ObjectGraph, name string) (T, error) {
	return GetNamedCtx[T](context.Background(), g, name)
}

func GetNamedCtx[T any](ctx context.Context, g *ObjectGraph, name string) (T, error) {
	var zero T
	key := keys.Named(keys.TypeKey[T](), name)

	instance, err := g.core.Resolve(ctx, key)
	if err != nil {
		return zero, wrapResolveError(key, err)
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errResolutionFailed(key, nil)
	}

	return typed, nil
}

func MustGet[T any](g *ObjectGraph) T {
	v, err := Get[T](g)
	if err != nil {
		panic(err)
	}
	return v
}

func MustGetCtx[T any](ctx context.Context, g *ObjectGraph) T {
	v, err := GetCtx[T](ctx, g)
	if err != nil {
		panic(err)
	}
	return v
}

func MustGetNamed[T any](g *ObjectGraph, name string) T {
	v, err := GetNamed[T](g, name)
	if err != nil {
		panic(err)
	}
	return v
}

// GetSet resolves the multibinding aggregate for element type T. Elements
// come back in declaration order; the slice is rebuilt per request unless
// the aggregate itself is scoped.
func GetSet[T any](g *ObjectGraph) ([]T, error) {
	return GetSetCtx[T](context.Background(), g)
}

func GetSetCtx[T any](ctx context.Context, g *ObjectGraph) ([]T, error) {
	key := keys.Set(keys.TypeKey[T]())
	return getSetKey[T](ctx, g, key)
}

func GetSetNamed[T any](g *ObjectGraph, name string) ([]T, error) {
	key := keys.Set(keys.Named(keys.TypeKey[T](), name))
	return getSetKey[T](context.Background(), g, key)
}

func getSetKey[T any](ctx context.Context, g *ObjectGraph, key string) ([]T, error) {
	instance, err := g.core.Resolve(ctx, key)
	if err != nil {
		return nil, wrapResolveError(key, err)
	}

	raw, ok := instance.([]any)
	if !ok {
		return nil, errResolutionFailed(key, nil)
	}

	out := make([]T, 0, len(raw))
	for _, v := range raw {
		typed, ok := v.(T)
		if !ok {
			return nil, errResolutionFailed(key, nil)
		}
		out = append(out, typed)
	}
	return out, nil
}

// GetLazy returns a deferred handle for T without resolving it. The key is
// linked and the instance built on first Get.
func GetLazy[T any](g *ObjectGraph) *Lazy[T] {
	key := keys.TypeKey[T]()
	l := &Lazy[T]{}
	l.bindFetch(
		func(ctx context.Context) (any, error) {
			return g.core.Resolve(ctx, key)
		},
	)
	return l
}

func Has[T any](g *ObjectGraph) bool {
	return g.core.Has(keys.TypeKey[T]())
}

func HasNamed[T any](g *ObjectGraph, name string) bool {
	return g.core.Has(keys.Named(keys.TypeKey[T](), name))
}

// Resolve is the typed lookup for use inside providers. Failures come
// back unwrapped so that returning them from the provider preserves
// their classification; the error predicates recognize them either way.
func Resolve[T any](ctx context.Context, r Resolver) (T, error) {
	var zero T
	key := keys.TypeKey[T]()

	instance, err := r.Resolve(ctx, key)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errResolutionFailed(key, nil)
	}
	return typed, nil
}

func ResolveNamed[T any](ctx context.Context, r Resolver, name string) (T, error) {
	var zero T
	key := keys.Named(keys.TypeKey[T](), name)

	instance, err := r.Resolve(ctx, key)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errResolutionFailed(key, nil)
	}
	return typed, nil
}

func MustResolve[T any](ctx context.Context, r Resolver) T {
	v, err := Resolve[T](ctx, r)
	if err != nil {
		panic(err)
	}
	return v
}

func MustResolveNamed[T any](ctx context.Context, r Resolver, name string) T {
	v, err := ResolveNamed[T](ctx, r, name)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveSet resolves a multibinding aggregate from inside a provider.
func ResolveSet[T any](ctx context.Context, r Resolver) ([]T, error) {
	key := keys.Set(keys.TypeKey[T]())

	instance, err := r.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	raw, ok := instance.([]any)
	if !ok {
		return nil, errResolutionFailed(key, nil)
	}

	out := make([]T, 0, len(raw))
	for _, v := range raw {
		typed, ok := v.(T)
		if !ok {
			return nil, errResolutionFailed(key, nil)
		}
		out = append(out, typed)
	}
	return out, nil
}

// ResolveDeferred returns a deferred handle from inside a provider. This
// is how one side of a legal construction cycle avoids needing the
// other's concrete value synchronously.
func ResolveDeferred[T any](ctx context.Context, r Resolver) (*Lazy[T], error) {
	key := keys.Lazy(keys.TypeKey[T]())

	instance, err := r.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	d, ok := instance.(*linker.Deferral)
	if !ok {
		return nil, errResolutionFailed(key, nil)
	}
	return lazyFromDeferral[T](d), nil
}

func ResolveDeferredNamed[T any](ctx context.Context, r Resolver, name string) (*Lazy[T], error) {
	key := keys.Lazy(keys.Named(keys.TypeKey[T](), name))

	instance, err := r.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	d, ok := instance.(*linker.Deferral)
	if !ok {
		return nil, errResolutionFailed(key, nil)
	}
	return lazyFromDeferral[T](d), nil
}
