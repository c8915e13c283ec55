package dagger

import "github.com/path/dagger/internal/keys"

// KeyOf returns the binding key for T. Keys are opaque, comparable
// strings: the same type, qualifier, and role always encode to the same
// key no matter which code path computes it.
func KeyOf[T any]() string {
	return keys.TypeKey[T]()
}

// KeyNamed returns the key for T qualified by name. A qualified key is
// always distinct from the unqualified key of the same type.
func KeyNamed[T any](name string) string {
	return keys.Named(keys.TypeKey[T](), name)
}

// SetKeyOf returns the multibinding key aggregating all contributions of
// element type T.
func SetKeyOf[T any]() string {
	return keys.Set(keys.TypeKey[T]())
}

func SetKeyNamed[T any](name string) string {
	return keys.Set(keys.Named(keys.TypeKey[T](), name))
}

// LazyKeyOf returns the deferred-request key for T. A binding depending on
// it receives a handle instead of the built instance, which is what makes
// construction cycles legal.
func LazyKeyOf[T any]() string {
	return keys.Lazy(keys.TypeKey[T]())
}

func LazyKeyNamed[T any](name string) string {
	return keys.Lazy(keys.Named(keys.TypeKey[T](), name))
}

// MembersKeyOf returns the members-injection key for T, the root linked
// for entry points that receive field injection.
func MembersKeyOf[T any]() string {
	return keys.Members(keys.TypeKey[T]())
}
