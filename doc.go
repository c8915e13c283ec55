// Package dagger provides a runtime dependency-injection object graph for
// Go 1.25+.
//
// Bindings are declared by modules, linked lazily into a graph, and
// resolved on demand with scope caching, deterministic multibinding
// aggregation, and cycle-safe deferred handles.
//
// # Quick Start
//
// Declare a module and build a graph:
//
//	var AppModule = dagger.NewModule("app")
//
//	func init() {
//		dagger.ModuleProvide(AppModule, func(ctx context.Context, r dagger.Resolver) (*Config, error) {
//			return &Config{Port: 8080}, nil
//		})
//		dagger.ModuleProvide(AppModule, func(ctx context.Context, r dagger.Resolver) (*Server, error) {
//			cfg, err := dagger.Resolve[*Config](ctx, r)
//			if err != nil {
//				return nil, err
//			}
//			return &Server{config: cfg}, nil
//		}, dagger.WithScope(dagger.Singleton), dagger.WithDependencies(dagger.KeyOf[*Config]()))
//	}
//
//	g := dagger.Create(AppModule)
//	srv, err := dagger.Get[*Server](g)
//
// # Validation
//
// Create never links. Call Validate to walk every declared binding and
// entry point eagerly; it reports all configuration errors in one pass:
//
//	if err := g.Validate(); err != nil {
//		report, _ := dagger.AsValidation(err)
//		for _, entry := range report.Errors {
//			log.Println(entry)
//		}
//	}
//
// Skipping Validate is allowed: an unresolved or duplicate key then fails
// at the first Get or Inject that actually needs it.
//
// # Scopes
//
// Bindings are unscoped by default: every request runs the producer
// again. Singleton bindings are cached per graph, and concurrent first
// access runs the producer exactly once:
//
//	dagger.ModuleProvide(m, newPool, dagger.WithScope(dagger.Singleton))
//
// Request-scoped bindings share one instance per context created with
// WithRequestScope.
//
// # Field Injection
//
// Structs declare injection sites with the inject tag:
//
//	type Frontend struct {
//		Repo  Repository `inject:""`
//		Cache *Cache     `inject:"session"`
//		Log   *Logger    `inject:",optional"`
//	}
//
//	f := &Frontend{}
//	err := g.Inject(ctx, f)
//
// A concrete struct type with tagged sites is also injectable without any
// declared provider; the linker synthesizes its binding on demand.
//
// # Multibindings
//
// Several modules may contribute to one collection:
//
//	dagger.ModuleContributeValue(m1, "alpha")
//	dagger.ModuleContributeValue(m2, "beta")
//
//	all, err := dagger.GetSet[string](g) // ["alpha", "beta"], declaration order
//
// # Cycles
//
// Mutually-recursive bindings are legal when at least one side only needs
// a deferred handle:
//
//	dagger.ModuleProvide(m, func(ctx context.Context, r dagger.Resolver) (*A, error) {
//		b, err := dagger.ResolveDeferred[*B](ctx, r)
//		...
//	})
//
// The handle starts returning the real instance as soon as the outer
// resolution completes. A cycle where every side needs the concrete value
// synchronously fails with an UNINJECTABLE_CYCLE error.
//
// # Child Graphs
//
// Plus builds an extension graph whose bindings shadow the parent's:
//
//	child := g.Plus(pluginModule)
//
// The parent keeps resolving its own bindings; the child falls back to
// the parent for anything it does not bind itself and reads singletons
// the parent has already cached.
package dagger
