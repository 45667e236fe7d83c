package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeNotFound, "no node at a/b"),
			expected: "[NOT_FOUND] no node at a/b",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeTransportError, "fetch failed", errors.New("connection reset")),
			expected: "[TRANSPORT_ERROR] fetch failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeParseError, "bad line", underlying)

	assert.Equal(t, underlying, err.Unwrap())
	assert.True(t, errors.Is(err, underlying))
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeAborted, "error 1")
	err2 := New(CodeAborted, "error 2")
	err3 := New(CodeParseError, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestPredicates(t *testing.T) {
	wrappedParse := fmt.Errorf("line 3: %w", Wrap(CodeParseError, "invalid json", errors.New("eof")))

	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{
		{"aborted", IsAborted, ErrAborted, true},
		{"context canceled counts as abort", IsAborted, fmt.Errorf("read: %w", context.Canceled), true},
		{"transport is not abort", IsAborted, ErrTransportError, false},
		{"not found", IsNotFound, Wrap(CodeNotFound, "x", nil), true},
		{"wrapped parse error", IsParseError, wrappedParse, true},
		{"transport", IsTransportError, Wrap(CodeTransportError, "x", errors.New("y")), true},
		{"superseded", IsSuperseded, ErrSuperseded, true},
		{"nil", IsNotFound, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.err))
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeParseError, GetErrorCode(fmt.Errorf("ctx: %w", ErrParseError)))
	assert.Equal(t, CodeAborted, GetErrorCode(context.Canceled))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("plain")))
	assert.Equal(t, CodeUnknown, GetErrorCode(nil))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "not found", GetErrorMessage(ErrNotFound))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}

func TestFromPanic(t *testing.T) {
	err := FromPanic("boom")
	assert.Equal(t, CodeInternal, GetErrorCode(err))
	assert.Contains(t, err.Error(), "boom")

	inner := errors.New("inner")
	err = FromPanic(inner)
	assert.True(t, errors.Is(err, inner))
}
