package dagger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/path/dagger"
)

func TestErrorString(t *testing.T) {
	t.Parallel()

	err := &dagger.Error{
		Code:    dagger.ErrCodeUnresolvedBinding,
		Message: "no binding",
		Key:     "*pkg.Service",
		Chain:   []string{"*pkg.App", "*pkg.Service"},
	}

	s := err.Error()
	assert.Contains(t, s, "UNRESOLVED_BINDING")
	assert.Contains(t, s, `"*pkg.Service"`)
	assert.Contains(t, s, "no binding")
	assert.Contains(t, s, "*pkg.App -> *pkg.Service")
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	err := &dagger.Error{
		Code:  dagger.ErrCodeProviderFailed,
		Cause: cause,
	}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := &dagger.Error{Code: dagger.ErrCodeUninjectableCycle}
	target := &dagger.Error{Code: dagger.ErrCodeUninjectableCycle}
	other := &dagger.Error{Code: dagger.ErrCodeProviderFailed}

	assert.ErrorIs(t, err, target)
	assert.NotErrorIs(t, err, other)
}

func TestErrorCodeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DUPLICATE_BINDING", dagger.ErrCodeDuplicateBinding.String())
	assert.Equal(t, "UNKNOWN(999)", dagger.ErrorCode(999).String())
}

func TestPredicatesRejectUnrelatedErrors(t *testing.T) {
	t.Parallel()

	err := errors.New("plain")
	assert.False(t, dagger.IsUnresolvedBinding(err))
	assert.False(t, dagger.IsUninjectableCycle(err))
	assert.False(t, dagger.IsProviderFailed(err))
}

func TestValidationErrorString(t *testing.T) {
	t.Parallel()

	ve := &dagger.ValidationError{
		Errors: []dagger.ErrorEntry{
			{Key: "a", Code: dagger.ErrCodeUnresolvedBinding, Message: "missing"},
			{Key: "b", Code: dagger.ErrCodeDuplicateBinding, Message: "twice"},
		},
	}

	s := ve.Error()
	assert.Contains(t, s, "2 error(s)")
	assert.Contains(t, s, "missing")
	assert.Contains(t, s, "twice")

	got, ok := dagger.AsValidation(ve)
	require.True(t, ok)
	assert.Len(t, got.Errors, 2)
}
