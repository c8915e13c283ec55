package dagger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/path/dagger/internal/keys"
	"github.com/path/dagger/internal/linker"
	"github.com/path/dagger/internal/registry"
)

// TagKey is the struct tag marking injection sites:
//
//	type Frontend struct {
//		Repo  Repository     `inject:""`          // by type
//		Cache *Cache         `inject:"session"`   // qualified
//		Log   *Logger        `inject:",optional"` // may be absent
//		Back  *Lazy[*Server] `inject:""`          // deferred handle
//	}
const TagKey = "inject"

type injectField struct {
	name      string
	index     int
	key       string
	optional  bool
	deferred  bool
	fieldType reflect.Type
}

// structFields scans t's tagged fields into injection sites. Site errors
// carry the linker kind so that both eager validation and lazy resolution
// classify them identically.
func structFields(t reflect.Type) ([]injectField, error) {
	if t.Kind() != reflect.Struct {
		return nil, &linker.ResolveError{
			Key:     keys.FromType(t),
			Kind:    linker.KindUnsupportedTarget,
			Message: fmt.Sprintf("injection target must be a struct, got %s", t.Kind()),
		}
	}

	var fields []injectField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup(TagKey)
		if !ok {
			continue
		}

		if f.PkgPath != "" {
			return nil, &linker.ResolveError{
				Key:     keys.FromType(t),
				Kind:    linker.KindUnsupportedTarget,
				Message: fmt.Sprintf("cannot inject unexported field %s.%s", t.Name(), f.Name),
			}
		}

		name, optional, err := parseTag(t, f.Name, tag)
		if err != nil {
			return nil, err
		}

		site := injectField{
			name:      f.Name,
			index:     i,
			optional:  optional,
			fieldType: f.Type,
		}

		if elem, ok := deferredElemKey(f.Type); ok {
			site.deferred = true
			site.key = keys.Lazy(keys.Named(elem, name))
		} else {
			if keys.Unsupported(f.Type) {
				return nil, &linker.ResolveError{
					Key:     keys.FromType(t),
					Kind:    linker.KindUnsupportedTarget,
					Message: fmt.Sprintf("field %s.%s has unkeyable type %s", t.Name(), f.Name, f.Type),
				}
			}
			site.key = keys.Named(keys.FromType(f.Type), name)
		}

		fields = append(fields, site)
	}

	return fields, nil
}

// parseTag splits `inject:"name,flag"`. At most one qualifier name is
// allowed per site.
func parseTag(t reflect.Type, fieldName, tag string) (name string, optional bool, err error) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])

	for _, flag := range parts[1:] {
		switch strings.TrimSpace(flag) {
		case "optional":
			optional = true
		case "":
		default:
			return "", false, &linker.ResolveError{
				Key:  keys.FromType(t),
				Kind: linker.KindAmbiguousQualifier,
				Message: fmt.Sprintf(
					"field %s.%s carries more than one qualifier (%q and %q)",
					t.Name(), fieldName, name, strings.TrimSpace(flag),
				),
			}
		}
	}
	return name, optional, nil
}

// deferredElemKey recognizes *Lazy[T] fields and recovers T's key.
func deferredElemKey(t reflect.Type) (string, bool) {
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return "", false
	}
	zero := reflect.New(t.Elem()).Interface()
	if lk, ok := zero.(lazyKeyed); ok {
		return lk.elemKey(), true
	}
	return "", false
}

// injectInto populates the tagged sites of structVal. With failFast unset
// every site is attempted and the per-site failures are joined, matching
// the one-report-then-continue policy of validation.
func injectInto(ctx context.Context, r registry.Resolver, structVal reflect.Value, fields []injectField, failFast bool) error {
	var siteErrs []error

	for _, f := range fields {
		instance, err := r.Resolve(ctx, f.key)
		if err != nil {
			if f.optional {
				continue
			}
			if failFast {
				// Raw core error: synthesized producers return it to the
				// session, which keeps its classification.
				return err
			}
			siteErrs = append(siteErrs, wrapResolveError(f.key, err))
			continue
		}

		fieldVal := structVal.Field(f.index)

		if f.deferred {
			d, ok := instance.(*linker.Deferral)
			if !ok {
				siteErrs = append(siteErrs, errResolutionFailed(f.key, nil))
				continue
			}
			handle := reflect.New(f.fieldType.Elem())
			handle.Interface().(lazyBinder).bindCell(d)
			fieldVal.Set(handle)
			continue
		}

		instanceVal := reflect.ValueOf(instance)
		if !instanceVal.Type().AssignableTo(fieldVal.Type()) {
			err := newError(
				ErrCodeResolutionFailed,
				fmt.Sprintf("cannot assign %s to field %s of type %s", instanceVal.Type(), f.name, fieldVal.Type()),
				nil,
			)
			if failFast {
				return err
			}
			siteErrs = append(siteErrs, err)
			continue
		}

		fieldVal.Set(instanceVal)
	}

	return errors.Join(siteErrs...)
}

// Inject populates target's tagged fields from the graph. Sites that fail
// are reported together; sites that resolve are still assigned.
func (g *ObjectGraph) Inject(ctx context.Context, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return newError(
			ErrCodeUnsupportedTarget,
			fmt.Sprintf("Inject requires a non-nil pointer to struct, got %T", target),
			nil,
		)
	}

	t := rv.Elem().Type()
	keys.FromType(reflect.PointerTo(t))

	fields, err := structFields(t)
	if err != nil {
		return wrapResolveError(keys.FromType(t), err)
	}

	if err := injectInto(ctx, g.core.NewSession(), rv.Elem(), fields, false); err != nil {
		return &Error{
			Code:    ErrCodeInjectionFailed,
			Message: "failed to inject " + keys.FromType(t),
			Key:     keys.Members(keys.FromType(t)),
			Cause:   err,
		}
	}
	return nil
}

// synthesizeBinding is the linker's implicit-binding hook: a concrete
// struct type with tagged injection sites is injectable without any
// declared provider, and members-injection keys get a link-only binding
// listing the sites as dependencies.
func synthesizeBinding(key string) (*registry.Binding, error) {
	if inner, ok := keys.TrimMembers(key); ok {
		return synthesizeMembers(inner)
	}

	if keys.IsQualified(key) {
		// Qualified bindings must be declared by a module.
		return nil, nil
	}
	if _, ok := keys.TrimSet(key); ok {
		return nil, nil
	}

	t, ok := keys.TypeFor(key)
	if !ok {
		return nil, nil
	}

	structType := t
	wantPtr := false
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		structType = t.Elem()
		wantPtr = true
	}
	if structType.Kind() != reflect.Struct {
		return nil, nil
	}

	fields, err := structFields(structType)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		// A type with no injection sites was never marked injectable.
		return nil, nil
	}

	return &registry.Binding{
		Producer: func(ctx context.Context, r registry.Resolver) (any, error) {
			ptr := reflect.New(structType)
			if err := injectInto(ctx, r, ptr.Elem(), fields, true); err != nil {
				return nil, err
			}
			if wantPtr {
				return ptr.Interface(), nil
			}
			return ptr.Elem().Interface(), nil
		},
		Dependencies: requiredKeys(fields),
		Source:       "implicit",
	}, nil
}

func synthesizeMembers(inner string) (*registry.Binding, error) {
	t, ok := keys.TypeFor(inner)
	if !ok {
		return nil, nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil
	}

	fields, err := structFields(t)
	if err != nil {
		return nil, err
	}

	return &registry.Binding{
		Producer: func(ctx context.Context, r registry.Resolver) (any, error) {
			return nil, fmt.Errorf("members binding %s cannot be requested directly", keys.Members(inner))
		},
		Dependencies: requiredKeys(fields),
		Source:       "implicit",
	}, nil
}

func requiredKeys(fields []injectField) []string {
	deps := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.optional {
			continue
		}
		deps = append(deps, f.key)
	}
	return deps
}
