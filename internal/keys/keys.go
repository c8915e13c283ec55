// Package keys computes the string identities under which bindings are
// registered and requested. A key is a pure function of the Go type, an
// optional qualifier name, and a role prefix; the rest of the module only
// ever compares keys as opaque strings.
package keys

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

const (
	lazyPrefix    = "lazy/"
	setPrefix     = "set/"
	membersPrefix = "members/"
	qualifierSep  = "#"
)

var (
	typeKeyCache sync.Map // reflect.Type -> string
	keyTypeCache sync.Map // string -> reflect.Type
)

func TypeKey[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		t = reflect.TypeOf((*T)(nil)).Elem()
	}
	return FromType(t)
}

func TypeOf[T any]() reflect.Type {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		t = reflect.TypeOf((*T)(nil)).Elem()
	}
	return t
}

// FromType returns the key for t and records the reverse mapping so that
// implicit bindings can later be synthesized from the key alone.
func FromType(t reflect.Type) string {
	if cached, ok := typeKeyCache.Load(t); ok {
		return cached.(string)
	}

	key := buildTypeKey(t)
	typeKeyCache.Store(t, key)
	keyTypeCache.Store(key, t)
	return key
}

// TypeFor is the reverse of FromType. It only knows types that have passed
// through FromType at least once.
func TypeFor(key string) (reflect.Type, bool) {
	if t, ok := keyTypeCache.Load(key); ok {
		return t.(reflect.Type), true
	}
	return nil, false
}

func buildTypeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Ptr:
		return "*" + buildTypeKey(t.Elem())
	case reflect.Slice:
		return "[]" + buildTypeKey(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + buildTypeKey(t.Elem())
	case reflect.Map:
		return "map[" + buildTypeKey(t.Key()) + "]" + buildTypeKey(t.Elem())
	default:
		if t.PkgPath() != "" {
			return t.PkgPath() + "." + t.Name()
		}
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}

// Unsupported reports whether no stable key can be computed for t. Such
// types are rejected when a binding or injection site would need them.
func Unsupported(t reflect.Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return true
	case reflect.Ptr, reflect.Slice, reflect.Array:
		return Unsupported(t.Elem())
	case reflect.Map:
		return Unsupported(t.Key()) || Unsupported(t.Elem())
	default:
		return false
	}
}

func Named(key, name string) string {
	if name == "" {
		return key
	}
	return key + qualifierSep + name
}

func IsQualified(key string) bool {
	return strings.Contains(key, qualifierSep)
}

func Lazy(key string) string { return lazyPrefix + key }

func TrimLazy(key string) (string, bool) {
	return strings.CutPrefix(key, lazyPrefix)
}

func Set(key string) string { return setPrefix + key }

func TrimSet(key string) (string, bool) {
	return strings.CutPrefix(key, setPrefix)
}

func Members(key string) string { return membersPrefix + key }

func TrimMembers(key string) (string, bool) {
	return strings.CutPrefix(key, membersPrefix)
}

func IsNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

func TypeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		t = reflect.TypeOf((*T)(nil)).Elem()
	}
	return t.String()
}
