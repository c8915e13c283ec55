// Package linker walks the transitive closure of required keys, resolves
// each to a binding, and turns linked bindings into instances. It is the
// runtime core behind the public ObjectGraph.
package linker

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/path/dagger/internal/graph"
	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/registry"
)

// ImplicitFunc synthesizes a binding for a key that no module declared.
// It returns (nil, nil) when the key cannot be synthesized.
type ImplicitFunc func(key string) (*registry.Binding, error)

type ResolveHook func(key string, duration time.Duration, err error)

type Config struct {
	Logger    *slog.Logger
	Implicit  ImplicitFunc
	OnResolve []ResolveHook
	Parallel  bool
}

type Core struct {
	registry *registry.Registry
	parent   *Core
	graph    *graph.Graph
	logger   *slog.Logger
	implicit ImplicitFunc
	onResolve []ResolveHook
	parallel  bool

	linkMu sync.Mutex
	linked map[string]*Entry // nil entry means linked cleanly
	roots  []string

	cacheMu sync.Mutex
	cache   map[string]*cacheEntry
}

func New(reg *registry.Registry, parent *Core, cfg *Config) *Core {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Core{
		registry:  reg,
		parent:    parent,
		graph:     graph.New(),
		logger:    logger,
		implicit:  cfg.Implicit,
		onResolve: cfg.OnResolve,
		parallel:  cfg.Parallel,
		linked:    make(map[string]*Entry),
		cache:     make(map[string]*cacheEntry),
	}
}

// AddRoot registers an entry-point key that eager validation must reach
// even when no provider depends on it.
func (c *Core) AddRoot(key string) {
	c.linkMu.Lock()
	defer c.linkMu.Unlock()

	c.roots = append(c.roots, key)
}

// LinkAll links every registered key and entry point, collecting every
// discoverable error instead of stopping at the first.
func (c *Core) LinkAll() []Entry {
	c.linkMu.Lock()
	defer c.linkMu.Unlock()

	var entries []Entry
	collect := func(e Entry) {
		entries = append(entries, e)
	}

	var seed []workItem
	for key := range c.registry.Keys() {
		seed = append(seed, workItem{key: key})
	}
	for _, key := range c.roots {
		seed = append(seed, workItem{key: key})
	}

	c.linkQueue(seed, collect)

	for _, cycle := range c.graph.StrictCycles() {
		collect(
			Entry{
				Key:     cycle[0],
				Kind:    KindUninjectableCycle,
				Message: "dependency cycle " + strings.Join(cycle, " -> ") + " has no deferred link to break it",
			},
		)
	}

	return entries
}

// LinkRequested links the closure of a single key and fails with the first
// error found. Resolution calls it lazily for keys that were never
// validated.
func (c *Core) LinkRequested(key string) error {
	c.linkMu.Lock()
	defer c.linkMu.Unlock()

	if norm, ok := keys.TrimLazy(key); ok {
		key = norm
	}

	var first *Entry
	c.linkQueue(
		[]workItem{{key: key}}, func(e Entry) {
			if first == nil {
				entry := e
				first = &entry
			}
		},
	)

	if first != nil {
		return entryError(*first)
	}
	if entry := c.linked[key]; entry != nil {
		return entryError(*entry)
	}
	return nil
}

// linkedClean reports whether this core already linked key without error.
// The link state is core local so parent and child graphs never write to
// a shared binding while the other reads it.
func (c *Core) linkedClean(key string) bool {
	c.linkMu.Lock()
	defer c.linkMu.Unlock()
	entry, done := c.linked[key]
	return done && entry == nil
}

type workItem struct {
	key        string
	requiredBy string
}

// linkQueue drains the work queue of keys needing linking. Visiting order
// is not topological; legal cycles make that impossible, and linking only
// establishes binding existence, not instantiation order. Caller holds
// linkMu.
func (c *Core) linkQueue(queue []workItem, collect func(Entry)) {
	reported := make(map[string]bool)
	report := func(e Entry) {
		if reported[e.Key] {
			return
		}
		reported[e.Key] = true
		collect(e)
	}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		key := it.key
		if norm, ok := keys.TrimLazy(key); ok {
			key = norm
		}

		// Keys linked by an earlier pass still re-report their stored
		// error so repeated validation stays consistent.
		if entry, done := c.linked[key]; done {
			if entry != nil {
				report(*entry)
			}
			continue
		}

		if conflict, ok := c.conflictFor(key); ok {
			entry := conflictEntry(conflict)
			entry.RequiredBy = it.requiredBy
			c.linked[key] = &entry
			report(entry)
			continue
		}
		if msg, ok := c.invalidFor(key); ok {
			entry := Entry{Key: key, Kind: KindUnsupportedTarget, RequiredBy: it.requiredBy, Message: msg}
			c.linked[key] = &entry
			report(entry)
			continue
		}

		b, err := c.lookupBinding(key)
		if err != nil {
			entry := Entry{Key: key, Kind: KindUnsupportedTarget, RequiredBy: it.requiredBy, Message: err.Error()}
			if re, ok := err.(*ResolveError); ok {
				entry.Kind = re.Kind
				entry.Message = re.Message
			}
			c.linked[key] = &entry
			report(entry)
			continue
		}
		if b == nil {
			// Bound to a placeholder error entry so the rest of the walk
			// still runs and reports its own errors.
			entry := Entry{
				Key:        key,
				Kind:       KindUnresolved,
				RequiredBy: it.requiredBy,
				Message:    "no binding registered, synthesizable, or inherited for this key",
			}
			c.linked[key] = &entry
			report(entry)
			continue
		}

		c.linked[key] = nil

		edges := make([]graph.Edge, 0, len(b.Dependencies))
		for _, dep := range b.Dependencies {
			target := dep
			deferred := false
			if inner, ok := keys.TrimLazy(dep); ok {
				target = inner
				deferred = true
			}
			edges = append(edges, graph.Edge{To: target, Deferred: deferred})
			queue = append(queue, workItem{key: dep, requiredBy: key})
		}
		c.graph.AddNode(key, edges)

		c.logger.Debug("linked binding", "key", key, "deps", len(b.Dependencies))
	}
}

// lookupBinding finds key in the local registry, then in ancestors, then
// asks the implicit synthesizer. Implicit bindings are registered locally
// so later lookups hit the registry directly.
func (c *Core) lookupBinding(key string) (*registry.Binding, error) {
	if b, ok := c.registry.Lookup(key); ok {
		return b, nil
	}

	for p := c.parent; p != nil; p = p.parent {
		if b, ok := p.registry.Lookup(key); ok {
			return b, nil
		}
	}

	if c.implicit == nil {
		return nil, nil
	}
	b, err := c.implicit(key)
	if err != nil || b == nil {
		return b, err
	}
	b.Implicit = true
	c.registry.Register(key, b, false)
	return b, nil
}

// conflictFor checks the local registry and then ancestors, so a child
// graph reports duplicates its parent recorded instead of resolving the
// first registration silently. The walk stops at the first graph that
// binds the key cleanly; its binding shadows whatever lies above.
func (c *Core) conflictFor(key string) (registry.Conflict, bool) {
	for g := c; g != nil; g = g.parent {
		if conflict, ok := g.registry.ConflictFor(key); ok {
			return conflict, true
		}
		if g.registry.Has(key) {
			break
		}
	}
	return registry.Conflict{}, false
}

func (c *Core) invalidFor(key string) (string, bool) {
	if msg, ok := c.registry.InvalidFor(key); ok {
		return msg, true
	}
	for p := c.parent; p != nil; p = p.parent {
		if msg, ok := p.registry.InvalidFor(key); ok {
			return msg, true
		}
	}
	return "", false
}

// bindingOwner walks the graph chain for the core whose registry holds the
// binding. Instances of ancestor-owned singletons already cached by the
// ancestor are shared read-only.
func (c *Core) bindingOwner(key string) (*registry.Binding, *Core) {
	if b, ok := c.registry.Get(key); ok {
		return b, c
	}
	for p := c.parent; p != nil; p = p.parent {
		if b, ok := p.registry.Get(key); ok {
			return b, p
		}
	}
	return nil, nil
}

func conflictEntry(conflict registry.Conflict) Entry {
	return Entry{
		Key:  conflict.Key,
		Kind: KindDuplicate,
		Message: fmt.Sprintf(
			"bound by both module %q and module %q", conflict.First, conflict.Second,
		),
	}
}

func (c *Core) Registry() *registry.Registry {
	return c.registry
}

func (c *Core) Parent() *Core {
	return c.parent
}

// GraphSnapshot returns a copy of the linked dependency graph for
// introspection.
func (c *Core) GraphSnapshot() *graph.Graph {
	return c.graph.Clone()
}

func (c *Core) Has(key string) bool {
	if c.registry.Has(key) {
		return true
	}
	for p := c.parent; p != nil; p = p.parent {
		if p.registry.Has(key) {
			return true
		}
	}
	return false
}
