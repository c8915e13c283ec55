package linker

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnresolved
	KindDuplicate
	KindAmbiguousQualifier
	KindUnsupportedTarget
	KindUninjectableCycle
	KindProviderFailed
	KindScopeMissing
)

var kindNames = map[Kind]string{
	KindUnknown:            "UNKNOWN",
	KindUnresolved:         "UNRESOLVED_BINDING",
	KindDuplicate:          "DUPLICATE_BINDING",
	KindAmbiguousQualifier: "AMBIGUOUS_QUALIFIER",
	KindUnsupportedTarget:  "UNSUPPORTED_TARGET",
	KindUninjectableCycle:  "UNINJECTABLE_CYCLE",
	KindProviderFailed:     "PROVIDER_FAILED",
	KindScopeMissing:       "SCOPE_MISSING",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(k))
}

// Entry is one collected link error. Validation gathers every Entry in the
// walk before failing; resolution stops at the first one.
type Entry struct {
	Key        string
	Kind       Kind
	RequiredBy string
	Message    string
}

func (e Entry) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Key))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RequiredBy != "" {
		b.WriteString(fmt.Sprintf(" (required by %s)", e.RequiredBy))
	}
	return b.String()
}

// ResolveError carries the failure of a single resolution, including the
// request chain that led to it.
type ResolveError struct {
	Key     string
	Kind    Kind
	Chain   []string
	Message string
	Cause   error
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Key))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Chain) > 0 {
		b.WriteString(" (chain: ")
		b.WriteString(strings.Join(e.Chain, " -> "))
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

func entryError(e Entry) *ResolveError {
	return &ResolveError{
		Key:     e.Key,
		Kind:    e.Kind,
		Message: e.Message,
		Chain: func() []string {
			if e.RequiredBy == "" {
				return nil
			}
			return []string{e.RequiredBy, e.Key}
		}(),
	}
}
