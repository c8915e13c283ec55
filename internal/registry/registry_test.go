package registry

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/path/dagger/internal/scope"
)

type staticResolver map[string]any

func (r staticResolver) Resolve(ctx context.Context, key string) (any, error) {
	return r[key], nil
}

func (r staticResolver) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func value(v any) ProducerFunc {
	return func(ctx context.Context, r Resolver) (any, error) {
		return v, nil
	}
}

func TestRegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("k", &Binding{Producer: value(1), Source: "m"}, false)

	b, ok := r.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "k", b.Key)
	assert.Equal(t, "m", b.Source)
	assert.True(t, r.Has("k"))
	assert.False(t, r.Has("other"))
}

func TestRegisterSameSourceIdempotent(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("k", &Binding{Producer: value(1), Source: "m"}, false)
	r.Register("k", &Binding{Producer: value(2), Source: "m"}, false)

	assert.Empty(t, r.Conflicts())
	assert.Equal(t, 1, r.Size())

	b, _ := r.Lookup("k")
	v, err := b.Producer(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRegisterConflictKeepsFirst(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("k", &Binding{Producer: value(1), Source: "first"}, false)
	r.Register("k", &Binding{Producer: value(2), Source: "second"}, false)

	conflicts := r.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "k", conflicts[0].Key)
	assert.Equal(t, "first", conflicts[0].First)
	assert.Equal(t, "second", conflicts[0].Second)

	c, ok := r.ConflictFor("k")
	require.True(t, ok)
	assert.Equal(t, "second", c.Second)

	b, _ := r.Lookup("k")
	v, _ := b.Producer(context.Background(), nil)
	assert.Equal(t, 1, v)
}

func TestRegisterOverrideReplaces(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("k", &Binding{Producer: value(1), Source: "prod"}, false)
	r.Register("k", &Binding{Producer: value(2), Source: "test"}, true)

	assert.Empty(t, r.Conflicts())

	b, _ := r.Lookup("k")
	v, _ := b.Producer(context.Background(), nil)
	assert.Equal(t, 2, v)
}

func TestContributeBuildsAggregate(t *testing.T) {
	t.Parallel()

	r := New()
	r.Contribute("set/elem", &Binding{Producer: value("a"), Source: "m1"})
	r.Contribute("set/elem", &Binding{Producer: value("b"), Source: "m2"})

	agg, ok := r.Lookup("set/elem")
	require.True(t, ok)
	assert.Equal(t, []string{"set/elem[0]", "set/elem[1]"}, agg.Dependencies)

	res := staticResolver{"set/elem[0]": "a", "set/elem[1]": "b"}
	v, err := agg.Producer(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestContributeElementBindings(t *testing.T) {
	t.Parallel()

	r := New()
	r.Contribute("set/elem", &Binding{Producer: value("a"), Source: "m"})

	b, ok := r.Get("set/elem[0]")
	require.True(t, ok)
	assert.True(t, b.Element)
	assert.True(t, r.Has("set/elem"))
}

func TestSetScopeAppliesToAggregate(t *testing.T) {
	t.Parallel()

	r := New()
	r.Contribute("set/elem", &Binding{Producer: value("a"), Source: "m"})
	r.SetScope("set/elem", scope.Singleton)

	agg, ok := r.Lookup("set/elem")
	require.True(t, ok)
	assert.Equal(t, scope.Singleton, agg.Scope)
}

func TestLookupMissingSet(t *testing.T) {
	t.Parallel()

	r := New()
	_, ok := r.Lookup("set/never")
	assert.False(t, ok)
}

func TestRecordInvalid(t *testing.T) {
	t.Parallel()

	r := New()
	r.RecordInvalid("k", "unkeyable")

	msg, ok := r.InvalidFor("k")
	require.True(t, ok)
	assert.Equal(t, "unkeyable", msg)

	// Invalid keys still appear in the declaration order so validation
	// visits them.
	assert.Contains(t, slices.Collect(r.Keys()), "k")
}

func TestKeysDeclarationOrder(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("b", &Binding{Producer: value(1), Source: "m"}, false)
	r.Register("a", &Binding{Producer: value(2), Source: "m"}, false)
	r.Contribute("set/x", &Binding{Producer: value(3), Source: "m"})

	assert.Equal(t, []string{"b", "a", "set/x[0]"}, slices.Collect(r.Keys()))
}

func TestKeysRestartable(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("a", &Binding{Producer: value(1), Source: "m"}, false)
	r.Register("b", &Binding{Producer: value(2), Source: "m"}, false)

	seq := r.Keys()

	var first []string
	for k := range seq {
		first = append(first, k)
		break
	}
	assert.Equal(t, []string{"a"}, first)

	assert.Equal(t, []string{"a", "b"}, slices.Collect(seq))
}

func TestReplace(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("k", &Binding{Producer: value(1), Source: "m"}, false)
	r.Replace("k", &Binding{Producer: value(99), Source: "replaced"})

	b, _ := r.Lookup("k")
	v, _ := b.Producer(context.Background(), nil)
	assert.Equal(t, 99, v)
	assert.Equal(t, 1, r.Size())
}
