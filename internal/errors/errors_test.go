package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: wrapping preserves the original error for errors.Is/Unwrap.
func TestReconError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	original := errors.New("disk full")

	// When: wrapping it
	re := New(ErrCodeFileNotFound, "cannot open access store", original)

	// Then: unwrapping returns the original
	require.NotNil(t, re)
	assert.Equal(t, original, errors.Unwrap(re))
	assert.True(t, errors.Is(re, original))
}

func TestReconError_Error_FormatsCodeAndMessage(t *testing.T) {
	re := New(ErrCodeEmptyState, "no access events yet", nil)
	assert.Equal(t, "[ERR_204_EMPTY_STATE] no access events yet", re.Error())
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	re := New(ErrCodeWriteBackFail, "row count changed", nil)
	assert.Equal(t, CategoryIO, re.Category)
	assert.Equal(t, SeverityFatal, re.Severity)

	re2 := New(ErrCodeEmptyState, "no overlap", nil)
	assert.Equal(t, SeverityWarning, re2.Severity)
}

func TestIsRetryable_OnlyStoreLocked(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeStoreLocked, "locked", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInternal, "boom", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestWithDetail_ChainsAndAccumulates(t *testing.T) {
	re := New(ErrCodeInputMalformed, "bad json", nil).
		WithDetail("session_id", "abc123").
		WithDetail("line", "42")

	assert.Equal(t, "abc123", re.Details["session_id"])
	assert.Equal(t, "42", re.Details["line"])
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode_ReturnsEmptyForNonReconError(t *testing.T) {
	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.Equal(t, ErrCodeInternal, GetCode(New(ErrCodeInternal, "x", nil)))
}
