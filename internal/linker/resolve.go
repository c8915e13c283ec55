package linker

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/registry"
	"github.com/path/dagger/internal/scope"
)

type cacheEntry struct {
	done  chan struct{}
	value any
	err   error
}

// Resolve links key on demand and resolves it in a fresh session. This is
// the entry point behind ObjectGraph.Get.
func (c *Core) Resolve(ctx context.Context, key string) (any, error) {
	start := time.Now()

	v, err := c.resolve(ctx, key)

	for _, hook := range c.onResolve {
		hook(key, time.Since(start), err)
	}
	return v, err
}

func (c *Core) resolve(ctx context.Context, key string) (any, error) {
	if err := c.LinkRequested(key); err != nil {
		return nil, err
	}
	return c.NewSession().Resolve(ctx, key)
}

// Session is one synchronous resolution pass. Cycle detection is session
// local: a key re-requested while it is being built on this call stack is
// a cycle, while the same key requested from another goroutine merely
// blocks on the instance cache.
type Session struct {
	core     *Core
	inFlight map[string]*Deferral
	chain    []string
}

func (c *Core) NewSession() *Session {
	return &Session{
		core:     c,
		inFlight: make(map[string]*Deferral),
	}
}

func (s *Session) Has(key string) bool {
	return s.core.Has(key)
}

func (s *Session) Resolve(ctx context.Context, key string) (any, error) {
	if inner, ok := keys.TrimLazy(key); ok {
		return s.ResolveDeferred(ctx, inner)
	}

	if _, ok := s.inFlight[key]; ok {
		return nil, &ResolveError{
			Key:     key,
			Kind:    KindUninjectableCycle,
			Chain:   append(slices.Clone(s.chain), key),
			Message: "synchronous dependency on a key that is still being constructed",
		}
	}

	b, owner := s.core.bindingOwner(key)
	if b == nil || !s.core.linkedClean(key) {
		if err := s.core.LinkRequested(key); err != nil {
			return nil, err
		}
		b, owner = s.core.bindingOwner(key)
		if b == nil {
			return nil, &ResolveError{
				Key:     key,
				Kind:    KindUnresolved,
				Chain:   slices.Clone(s.chain),
				Message: "no binding registered, synthesizable, or inherited for this key",
			}
		}
	}

	switch b.Scope {
	case scope.Singleton:
		return s.resolveSingleton(ctx, key, b, owner)
	case scope.Request:
		return s.resolveRequest(ctx, key, b)
	default:
		return s.build(ctx, key, b)
	}
}

// ResolveDeferred returns a deferral for key. During a cycle this is the
// in-flight cell of the outer resolution; otherwise the deferral resolves
// through this session on first read, so a read during construction that
// loops back synchronously is reported as a cycle instead of blocking on
// the instance cache.
func (s *Session) ResolveDeferred(ctx context.Context, key string) (*Deferral, error) {
	if cell, ok := s.inFlight[key]; ok {
		return cell, nil
	}

	if err := s.core.LinkRequested(key); err != nil {
		return nil, err
	}

	return &Deferral{
		key: key,
		fetch: func(ctx context.Context) (any, error) {
			return s.Resolve(ctx, key)
		},
	}, nil
}

// resolveSingleton guarantees one producer invocation per key. The first
// caller claims the cache entry and builds; concurrent callers block on
// the entry's done channel and observe the identical instance.
func (s *Session) resolveSingleton(ctx context.Context, key string, b *registry.Binding, owner *Core) (any, error) {
	if v, err, ok := s.core.cachedDone(key, owner); ok {
		return v, err
	}

	s.core.cacheMu.Lock()
	if e, ok := s.core.cache[key]; ok {
		s.core.cacheMu.Unlock()
		<-e.done
		return e.value, e.err
	}
	e := &cacheEntry{done: make(chan struct{})}
	s.core.cache[key] = e
	s.core.cacheMu.Unlock()

	e.value, e.err = s.build(ctx, key, b)
	close(e.done)

	return e.value, e.err
}

// cachedDone reads completed entries only: the local cache first, then the
// caches of ancestors up to and including the binding's owner. Ancestor
// caches are never written to.
func (c *Core) cachedDone(key string, owner *Core) (any, error, bool) {
	for g := c; g != nil; g = g.parent {
		g.cacheMu.Lock()
		e, ok := g.cache[key]
		g.cacheMu.Unlock()
		if ok {
			select {
			case <-e.done:
				return e.value, e.err, true
			default:
				if g != c {
					// An ancestor is mid-construction; fall through and
					// build locally rather than block on foreign work.
					continue
				}
			}
			return nil, nil, false
		}
		if g == owner {
			break
		}
	}
	return nil, nil, false
}

func (s *Session) resolveRequest(ctx context.Context, key string, b *registry.Binding) (any, error) {
	rs := requestScopeFrom(ctx)
	if rs == nil {
		return nil, &ResolveError{
			Key:     key,
			Kind:    KindScopeMissing,
			Chain:   slices.Clone(s.chain),
			Message: "request scope not found in context; use WithRequestScope(ctx)",
		}
	}

	if v, ok := rs.get(key); ok {
		return v, nil
	}

	v, err := s.build(ctx, key, b)
	if err != nil {
		return nil, err
	}
	rs.set(key, v)
	return v, nil
}

// build installs the cycle-guard cell, runs the producer, and completes
// the cell so deferred handles taken during the build see the instance.
func (s *Session) build(ctx context.Context, key string, b *registry.Binding) (any, error) {
	cell := newCell(key)
	s.inFlight[key] = cell
	s.chain = append(s.chain, key)

	v, err := b.Producer(ctx, s)

	s.chain = s.chain[:len(s.chain)-1]
	delete(s.inFlight, key)

	if err != nil {
		// Resolution errors from nested lookups keep their classification
		// even when the producer wrapped them.
		var re *ResolveError
		if errors.As(err, &re) {
			return nil, re
		}
		return nil, &ResolveError{
			Key:   key,
			Kind:  KindProviderFailed,
			Chain: append(slices.Clone(s.chain), key),
			Cause: err,
		}
	}

	cell.complete(v)
	s.core.logger.Debug("built instance", "key", key, "scope", b.Scope.String())
	return v, nil
}

// Deferral is the two-phase indirection cell behind a deferred handle. It
// is either bound to an in-flight construction (completed when the outer
// producer returns) or carries a fetch that resolves on first read.
type Deferral struct {
	key   string
	mu    sync.Mutex
	done  bool
	value any
	fetch func(ctx context.Context) (any, error)
}

func newCell(key string) *Deferral {
	return &Deferral{key: key}
}

func (d *Deferral) complete(v any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.value = v
	d.done = true
}

// Get returns the deferred instance. Reading a cycle-bound deferral before
// its construction completes is the non-deferrable cycle case and fails.
func (d *Deferral) Get(ctx context.Context) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done {
		return d.value, nil
	}
	if d.fetch != nil {
		v, err := d.fetch(ctx)
		if err != nil {
			return nil, err
		}
		d.value = v
		d.done = true
		return v, nil
	}
	return nil, &ResolveError{
		Key:     d.key,
		Kind:    KindUninjectableCycle,
		Message: "deferred instance read before its construction completed",
	}
}

func (d *Deferral) Key() string {
	return d.key
}

// Cached reports whether a completed instance exists for key in this
// graph's own cache.
func (c *Core) Cached(key string) bool {
	c.cacheMu.Lock()
	e, ok := c.cache[key]
	c.cacheMu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// ReplaceValue swaps in a fixed value for key, dropping any cached
// instance and link state. Test-only escape hatch used by daggertest.
func (c *Core) ReplaceValue(key string, value any) {
	c.registry.Replace(
		key, &registry.Binding{
			Producer: func(ctx context.Context, r registry.Resolver) (any, error) {
				return value, nil
			},
			Scope:  scope.Singleton,
			Source: "replaced",
		},
	)

	c.linkMu.Lock()
	delete(c.linked, key)
	c.linkMu.Unlock()

	c.cacheMu.Lock()
	delete(c.cache, key)
	c.cacheMu.Unlock()
}

// Preload eagerly instantiates every singleton binding in dependency
// order. With Parallel enabled, bindings of the same dependency depth are
// built concurrently.
func (c *Core) Preload(ctx context.Context) error {
	if entries := c.LinkAll(); len(entries) > 0 {
		return entryError(entries[0])
	}

	groups, err := c.graph.ParallelGroups()
	if err != nil {
		return err
	}

	for _, group := range groups {
		var singletons []string
		for _, key := range group.Nodes {
			if b, _ := c.bindingOwner(key); b != nil && b.Scope == scope.Singleton {
				singletons = append(singletons, key)
			}
		}

		if !c.parallel {
			for _, key := range singletons {
				if _, err := c.Resolve(ctx, key); err != nil {
					return err
				}
			}
			continue
		}

		eg, gctx := errgroup.WithContext(ctx)
		for _, key := range singletons {
			eg.Go(
				func() error {
					_, err := c.Resolve(gctx, key)
					return err
				},
			)
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}

	return nil
}

type requestScopeKey struct{}

// RequestScope caches request-scoped instances for the lifetime of one
// context.
type RequestScope struct {
	mu        sync.RWMutex
	instances map[string]any
}

func NewRequestScope() *RequestScope {
	return &RequestScope{
		instances: make(map[string]any),
	}
}

func (rs *RequestScope) get(key string) (any, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	instance, ok := rs.instances[key]
	return instance, ok
}

func (rs *RequestScope) set(key string, instance any) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.instances[key] = instance
}

func WithRequestScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, NewRequestScope())
}

func requestScopeFrom(ctx context.Context) *RequestScope {
	if rs, ok := ctx.Value(requestScopeKey{}).(*RequestScope); ok {
		return rs
	}
	return nil
}
