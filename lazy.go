package dagger

import (
	"context"
	"sync"

	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/linker"
)

// Lazy is a deferred handle for a value of T. Inside a construction cycle
// it is bound to the indirection cell of the instance being built and
// starts returning it as soon as the outer resolution completes; outside a
// cycle it resolves the key on first Get and memoizes the result.
type Lazy[T any] struct {
	mu    sync.Mutex
	done  bool
	value T
	cell  *linker.Deferral
	fetch func(ctx context.Context) (any, error)
}

func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.value, nil
	}

	var zero T
	var v any
	var err error

	switch {
	case l.cell != nil:
		v, err = l.cell.Get(ctx)
	case l.fetch != nil:
		v, err = l.fetch(ctx)
	default:
		return zero, newError(ErrCodeResolutionFailed, "deferred handle is unbound", nil)
	}

	if err != nil {
		return zero, wrapResolveError(keys.TypeKey[T](), err)
	}

	typed, ok := v.(T)
	if !ok {
		return zero, errResolutionFailed(keys.TypeKey[T](), nil)
	}

	l.value = typed
	l.done = true
	return typed, nil
}

func (l *Lazy[T]) MustGet(ctx context.Context) T {
	v, err := l.Get(ctx)
	if err != nil {
		panic(err)
	}
	return v
}

func (l *Lazy[T]) bindCell(cell *linker.Deferral) {
	l.cell = cell
}

func (l *Lazy[T]) bindFetch(fetch func(ctx context.Context) (any, error)) {
	l.fetch = fetch
}

// elemKey lets reflection-driven injection recover the element key of a
// *Lazy[T] field without knowing T.
func (l *Lazy[T]) elemKey() string {
	return keys.TypeKey[T]()
}

type lazyBinder interface {
	bindCell(cell *linker.Deferral)
	bindFetch(fetch func(ctx context.Context) (any, error))
}

type lazyKeyed interface {
	elemKey() string
}

func lazyFromDeferral[T any](d *linker.Deferral) *Lazy[T] {
	l := &Lazy[T]{}
	l.bindCell(d)
	return l
}
