// Package registry owns the bindings of one object graph: how each key is
// produced, which module declared it, and how set contributions fold into a
// single aggregate binding.
package registry

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/scope"
)

type ProducerFunc func(ctx context.Context, r Resolver) (any, error)

// Resolver is what producers see while they run. It is implemented by the
// resolution session so that nested lookups share one cycle-detection
// context.
type Resolver interface {
	Resolve(ctx context.Context, key string) (any, error)
	Has(key string) bool
}

type Binding struct {
	Key          string
	Producer     ProducerFunc
	Dependencies []string
	Scope        scope.Scope
	Element      bool
	Implicit     bool
	Source       string
	Seq          int
}

// Conflict records two distinct modules providing the same non-multibinding
// key. Registration keeps the first binding and the conflict is surfaced by
// validation or by the first resolution that touches the key.
type Conflict struct {
	Key    string
	First  string
	Second string
}

type Registry struct {
	mu            sync.RWMutex
	bindings      map[string]*Binding
	order         []string
	contributions map[string][]string
	setScopes     map[string]scope.Scope
	conflicts     []Conflict
	invalid       map[string]string
	seq           int
}

func New() *Registry {
	return &Registry{
		bindings:      make(map[string]*Binding),
		contributions: make(map[string][]string),
		setScopes:     make(map[string]scope.Scope),
		invalid:       make(map[string]string),
	}
}

// Register adds a binding for key. A duplicate from the same source module
// is idempotent; a duplicate from a different module is recorded as a
// Conflict unless override is set, in which case the new binding replaces
// the old one.
func (r *Registry) Register(key string, b *Binding, override bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.bindings[key]
	if exists {
		if existing.Source == b.Source && !override {
			return
		}
		if !override {
			r.conflicts = append(
				r.conflicts, Conflict{
					Key:    key,
					First:  existing.Source,
					Second: b.Source,
				},
			)
			return
		}
	}

	r.insert(key, b, exists)
}

func (r *Registry) insert(key string, b *Binding, replacing bool) {
	b.Key = key
	b.Seq = r.seq
	r.seq++
	r.bindings[key] = b
	if !replacing {
		r.order = append(r.order, key)
	}
}

// Contribute appends a set contribution. The element is registered as a
// hidden binding of its own so it can carry an independent scope, and the
// aggregate lists it by declaration order.
func (r *Registry) Contribute(setKey string, b *Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elemKey := fmt.Sprintf("%s[%d]", setKey, len(r.contributions[setKey]))
	b.Element = true
	r.insert(elemKey, b, false)
	r.contributions[setKey] = append(r.contributions[setKey], elemKey)
}

func (r *Registry) SetScope(setKey string, s scope.Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.setScopes[setKey] = s
}

// RecordInvalid marks a key as unkeyable or otherwise unsupported at its
// declaration site. The message is replayed when the key is linked.
func (r *Registry) RecordInvalid(key, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invalid[key]; !ok {
		r.invalid[key] = message
		r.order = append(r.order, key)
	}
}

func (r *Registry) InvalidFor(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.invalid[key]
	return msg, ok
}

func (r *Registry) ConflictFor(key string) (Conflict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conflicts {
		if c.Key == key {
			return c, true
		}
	}
	return Conflict{}, false
}

func (r *Registry) Conflicts() []Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.conflicts)
}

// Lookup returns the binding for key. For a set key with registered
// contributions the synthetic aggregate binding is built and cached on
// first request.
func (r *Registry) Lookup(key string) (*Binding, bool) {
	r.mu.RLock()
	b, exists := r.bindings[key]
	r.mu.RUnlock()
	if exists {
		return b, true
	}

	if _, ok := keys.TrimSet(key); !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, exists := r.bindings[key]; exists {
		return b, true
	}

	elems, ok := r.contributions[key]
	if !ok {
		return nil, false
	}

	deps := slices.Clone(elems)
	aggregate := &Binding{
		Producer: func(ctx context.Context, res Resolver) (any, error) {
			values := make([]any, 0, len(deps))
			for _, elemKey := range deps {
				v, err := res.Resolve(ctx, elemKey)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			return values, nil
		},
		Dependencies: deps,
		Scope:        r.setScopes[key],
		Source:       "aggregate",
	}
	r.insert(key, aggregate, false)
	return aggregate, true
}

func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.bindings[key]; exists {
		return true
	}
	if _, exists := r.contributions[key]; exists {
		return true
	}
	return false
}

func (r *Registry) Get(key string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.bindings[key]
	return b, exists
}

// Keys yields every registered key in declaration order. The sequence is
// lazy and restartable; eager validation ranges over it.
func (r *Registry) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		r.mu.RLock()
		order := slices.Clone(r.order)
		r.mu.RUnlock()

		for _, key := range order {
			if !yield(key) {
				return
			}
		}
	}
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bindings)
}

// Replace swaps the binding for key regardless of source module. It exists
// for test doubles; production registration goes through Register.
func (r *Registry) Replace(key string, b *Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.bindings[key]
	r.insert(key, b, exists)
}
