package dagger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/path/dagger"
)

func TestScopeSingleton(t *testing.T) {
	t.Parallel()

	var builds atomic.Int64

	m := dagger.NewModule("app")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Database, error) {
		builds.Add(1)
		return &Database{Name: "shared"}, nil
	}, dagger.WithScope(dagger.Singleton))

	g := dagger.Create(m)

	first, err := dagger.Get[*Database](g)
	require.NoError(t, err)
	second, err := dagger.Get[*Database](g)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), builds.Load())
}

func TestScopeSingletonConcurrent(t *testing.T) {
	t.Parallel()

	var builds atomic.Int64
	release := make(chan struct{})

	m := dagger.NewModule("app")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Database, error) {
		builds.Add(1)
		<-release
		return &Database{Name: "shared"}, nil
	}, dagger.WithScope(dagger.Singleton))

	g := dagger.Create(m)

	const workers = 16
	results := make([]*Database, workers)
	var wg sync.WaitGroup
	var started sync.WaitGroup

	for i := range workers {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			db, err := dagger.Get[*Database](g)
			assert.NoError(t, err)
			results[i] = db
		}()
	}

	// Let every goroutine reach the cache before the producer returns, so
	// the late arrivals really do block on the first writer.
	started.Wait()
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), builds.Load())
	for _, db := range results {
		assert.Same(t, results[0], db)
	}
}

func TestScopeUnscopedDefault(t *testing.T) {
	t.Parallel()

	var builds atomic.Int64

	m := dagger.NewModule("app")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Database, error) {
		builds.Add(1)
		return &Database{}, nil
	})

	g := dagger.Create(m)

	first, err := dagger.Get[*Database](g)
	require.NoError(t, err)
	second, err := dagger.Get[*Database](g)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int64(2), builds.Load())
}

func TestScopeRequest(t *testing.T) {
	t.Parallel()

	var builds atomic.Int64

	m := dagger.NewModule("app")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Database, error) {
		builds.Add(1)
		return &Database{}, nil
	}, dagger.WithScope(dagger.Request))

	g := dagger.Create(m)

	ctx1 := dagger.WithRequestScope(context.Background())
	first, err := dagger.GetCtx[*Database](ctx1, g)
	require.NoError(t, err)
	again, err := dagger.GetCtx[*Database](ctx1, g)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int64(1), builds.Load())

	ctx2 := dagger.WithRequestScope(context.Background())
	other, err := dagger.GetCtx[*Database](ctx2, g)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, int64(2), builds.Load())
}

func TestProvideValueScopeOverride(t *testing.T) {
	t.Parallel()

	// ModuleProvideValue defaults to a singleton, but an explicit scope
	// passed by the caller wins over the default.
	m := dagger.NewModule("app")
	dagger.ModuleProvideValue(m, &Config{Port: 9090}, dagger.WithScope(dagger.Request))

	g := dagger.Create(m)

	_, err := dagger.GetCtx[*Config](context.Background(), g)
	require.Error(t, err)

	var de *dagger.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, dagger.ErrCodeScopeNotFound, de.Code)

	ctx := dagger.WithRequestScope(context.Background())
	cfg, err := dagger.GetCtx[*Config](ctx, g)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
}

func TestScopeRequestMissing(t *testing.T) {
	t.Parallel()

	m := dagger.NewModule("app")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Database, error) {
		return &Database{}, nil
	}, dagger.WithScope(dagger.Request))

	g := dagger.Create(m)

	_, err := dagger.GetCtx[*Database](context.Background(), g)
	require.Error(t, err)

	var de *dagger.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, dagger.ErrCodeScopeNotFound, de.Code)
}

func TestPreload(t *testing.T) {
	t.Parallel()

	var configBuilds, dbBuilds, transientBuilds atomic.Int64

	m := dagger.NewModule("app")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Config, error) {
		configBuilds.Add(1)
		return &Config{}, nil
	}, dagger.WithScope(dagger.Singleton))
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Database, error) {
		dbBuilds.Add(1)
		_, err := dagger.Resolve[*Config](ctx, r)
		if err != nil {
			return nil, err
		}
		return &Database{}, nil
	}, dagger.WithScope(dagger.Singleton), dagger.WithDependencies(dagger.KeyOf[*Config]()))
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Server, error) {
		transientBuilds.Add(1)
		return &Server{}, nil
	})

	g := dagger.Create(m)
	require.NoError(t, g.Preload(context.Background()))

	assert.Equal(t, int64(1), configBuilds.Load())
	assert.Equal(t, int64(1), dbBuilds.Load())
	// Unscoped bindings are not warmed.
	assert.Zero(t, transientBuilds.Load())

	// Subsequent gets hit the cache.
	_, err := dagger.Get[*Database](g)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dbBuilds.Load())
}

func TestPreloadParallel(t *testing.T) {
	t.Parallel()

	var builds atomic.Int64

	m := dagger.NewModule("app")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Config, error) {
		builds.Add(1)
		return &Config{}, nil
	}, dagger.WithScope(dagger.Singleton))
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Database, error) {
		builds.Add(1)
		return &Database{}, nil
	}, dagger.WithScope(dagger.Singleton))

	g := dagger.CreateWith([]dagger.Option{dagger.WithParallelPreload()}, m)
	require.NoError(t, g.Preload(context.Background()))
	assert.Equal(t, int64(2), builds.Load())
}

func TestPreloadFailsOnBrokenGraph(t *testing.T) {
	t.Parallel()

	m := dagger.NewModule("broken")
	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*Server, error) {
		return &Server{}, nil
	}, dagger.WithScope(dagger.Singleton), dagger.WithDependencies(dagger.KeyOf[*Database]()))

	g := dagger.Create(m)

	err := g.Preload(context.Background())
	require.Error(t, err)
	assert.True(t, dagger.IsUnresolvedBinding(err))
}
