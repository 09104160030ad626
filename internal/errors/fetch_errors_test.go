package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFetchError_Message tests the formatted error text with and without a cause
func TestFetchError_Message(t *testing.T) {
	plain := New(ErrorCategoryInput, "vision", "validate_dates", "bad date")
	assert.Equal(t, "[INPUT:vision] validate_dates: bad date", plain.Error())

	wrapped := Wrap(stderrors.New("connection refused"), ErrorCategoryTransfer, "downloader", "request")
	assert.Contains(t, wrapped.Error(), "[TRANSFER:downloader]")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

// TestFetchError_Unwrap tests errors.Is through the wrapper
func TestFetchError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	wrapped := Wrap(cause, ErrorCategoryMerge, "assembler", "write_dataset")
	assert.True(t, stderrors.Is(wrapped, cause))
}

// TestWrap_NilStaysNil tests that wrapping nil yields nil
func TestWrap_NilStaysNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorCategoryCache, "index", "store"))
}

// TestIsFatal_OnlyInput tests that only input errors abort the run
func TestIsFatal_OnlyInput(t *testing.T) {
	assert.True(t, NewInputError("vision", "validate", "bad").IsFatal())
	assert.False(t, NewVerificationError("downloader", "verify", "bad").IsFatal())
	assert.False(t, NewTransferError("downloader", "request", stderrors.New("x")).IsFatal())
	assert.False(t, NewCacheError("index", "store", stderrors.New("x")).IsFatal())
	assert.False(t, NewMergeError("assembler", "merge", stderrors.New("x")).IsFatal())
}

// TestCategoryOf_ThroughWrapping tests category extraction through fmt wrapping
func TestCategoryOf_ThroughWrapping(t *testing.T) {
	inner := NewInputError("vision", "validate", "bad")
	outer := fmt.Errorf("run aborted: %w", inner)

	assert.Equal(t, ErrorCategoryInput, CategoryOf(outer))
	assert.True(t, IsInputError(outer))
}

// TestCategoryOf_ForeignError tests that uncategorized errors report empty
func TestCategoryOf_ForeignError(t *testing.T) {
	err := stderrors.New("plain")
	assert.Equal(t, ErrorCategory(""), CategoryOf(err))
	assert.False(t, IsInputError(err))
}

// TestNewf_Formatting tests the formatted constructor
func TestNewf_Formatting(t *testing.T) {
	err := Newf(ErrorCategoryTransfer, "downloader", "request", "status %d for %s", 503, "x.zip")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "status 503 for x.zip")
}
