package dagger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/path/dagger/internal/linker"
)

type ErrorCode uint16

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeUnresolvedBinding
	ErrCodeDuplicateBinding
	ErrCodeAmbiguousQualifier
	ErrCodeUnsupportedTarget
	ErrCodeUninjectableCycle
	ErrCodeProviderFailed
	ErrCodeResolutionFailed
	ErrCodeInjectionFailed
	ErrCodeScopeNotFound
	ErrCodeValidationFailed
	ErrCodeModuleApplyFailed
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:            "UNKNOWN",
	ErrCodeUnresolvedBinding:  "UNRESOLVED_BINDING",
	ErrCodeDuplicateBinding:   "DUPLICATE_BINDING",
	ErrCodeAmbiguousQualifier: "AMBIGUOUS_QUALIFIER",
	ErrCodeUnsupportedTarget:  "UNSUPPORTED_TARGET",
	ErrCodeUninjectableCycle:  "UNINJECTABLE_CYCLE",
	ErrCodeProviderFailed:     "PROVIDER_FAILED",
	ErrCodeResolutionFailed:   "RESOLUTION_FAILED",
	ErrCodeInjectionFailed:    "INJECTION_FAILED",
	ErrCodeScopeNotFound:      "SCOPE_NOT_FOUND",
	ErrCodeValidationFailed:   "VALIDATION_FAILED",
	ErrCodeModuleApplyFailed:  "MODULE_APPLY_FAILED",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(c))
}

type Error struct {
	Code    ErrorCode
	Message string
	Key     string
	Cause   error
	Chain   []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s]", e.Code))

	if e.Key != "" {
		b.WriteString(fmt.Sprintf(" key=%q:", e.Key))
	}

	b.WriteString(" ")
	b.WriteString(e.Message)

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

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorEntry is one collected validation failure: the key involved, the
// kind of failure, and a human-readable message.
type ErrorEntry struct {
	Key     string
	Code    ErrorCode
	Message string
}

func (e ErrorEntry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Key, e.Message)
}

// ValidationError aggregates every error discovered by one eager
// validation pass over the graph.
type ValidationError struct {
	Errors []ErrorEntry
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("graph validation failed with %d error(s):", len(e.Errors)))
	for _, entry := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(entry.String())
	}
	return b.String()
}

// AsValidation unwraps err into a *ValidationError if validation produced
// it.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

func codeForKind(k linker.Kind) ErrorCode {
	switch k {
	case linker.KindUnresolved:
		return ErrCodeUnresolvedBinding
	case linker.KindDuplicate:
		return ErrCodeDuplicateBinding
	case linker.KindAmbiguousQualifier:
		return ErrCodeAmbiguousQualifier
	case linker.KindUnsupportedTarget:
		return ErrCodeUnsupportedTarget
	case linker.KindUninjectableCycle:
		return ErrCodeUninjectableCycle
	case linker.KindProviderFailed:
		return ErrCodeProviderFailed
	case linker.KindScopeMissing:
		return ErrCodeScopeNotFound
	default:
		return ErrCodeUnknown
	}
}

// wrapResolveError lifts the core's typed resolution errors into the
// public taxonomy.
func wrapResolveError(key string, err error) *Error {
	if err == nil {
		return nil
	}

	var re *linker.ResolveError
	if errors.As(err, &re) {
		msg := re.Message
		if msg == "" && re.Cause != nil {
			msg = "provider returned an error"
		}
		return &Error{
			Code:    codeForKind(re.Kind),
			Message: msg,
			Key:     re.Key,
			Cause:   re.Cause,
			Chain:   re.Chain,
		}
	}

	return &Error{
		Code:    ErrCodeResolutionFailed,
		Message: "failed to resolve " + key,
		Key:     key,
		Cause:   err,
	}
}

func errResolutionFailed(key string, cause error) *Error {
	return &Error{
		Code:    ErrCodeResolutionFailed,
		Message: "failed to resolve " + key,
		Key:     key,
		Cause:   cause,
	}
}

// errCode classifies err whether it is a public *Error or a raw core
// resolution error, as seen inside providers.
func errCode(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	var re *linker.ResolveError
	if errors.As(err, &re) {
		return codeForKind(re.Kind), true
	}
	return ErrCodeUnknown, false
}

func IsUnresolvedBinding(err error) bool {
	code, ok := errCode(err)
	return ok && code == ErrCodeUnresolvedBinding
}

func IsDuplicateBinding(err error) bool {
	code, ok := errCode(err)
	return ok && code == ErrCodeDuplicateBinding
}

func IsAmbiguousQualifier(err error) bool {
	code, ok := errCode(err)
	return ok && code == ErrCodeAmbiguousQualifier
}

func IsUnsupportedTarget(err error) bool {
	code, ok := errCode(err)
	return ok && code == ErrCodeUnsupportedTarget
}

func IsUninjectableCycle(err error) bool {
	code, ok := errCode(err)
	return ok && code == ErrCodeUninjectableCycle
}

func IsProviderFailed(err error) bool {
	code, ok := errCode(err)
	return ok && code == ErrCodeProviderFailed
}

func IsResolutionFailed(err error) bool {
	code, ok := errCode(err)
	return ok && code == ErrCodeResolutionFailed
}
