package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error without details",
			err:      NewError(KindInvalidRequest, "bad payload"),
			expected: "[invalid_request] bad payload",
		},
		{
			name:     "error with details",
			err:      NewError(KindFraming, "malformed").WithDetails("got 2 frames"),
			expected: "[framing_error] malformed: got 2 frames",
		},
		{
			name:     "error with cause",
			err:      NewError(KindInternal, "boom").WithCause(fmt.Errorf("io")),
			expected: "[internal_error] boom: io",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	framing := ErrFraming.WithDetails("got 2 frames")

	if !errors.Is(framing, ErrFraming) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(framing, ErrInvalidRequest) {
		t.Error("errors.Is should not match a different kind")
	}

	// Code refines the match only when the target carries one.
	if !errors.Is(ErrReloadFatal, NewError(KindDataReload, "")) {
		t.Error("code-less target should match any code of the same kind")
	}
	if errors.Is(ErrReloadFatal, ErrReloadRetained) {
		t.Error("different codes should not match")
	}
	if !errors.Is(ErrDataNotLoaded, ErrInternal) {
		t.Error("data not loaded should be an internal error")
	}
	if errors.Is(ErrFraming, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for foreign errors")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := ErrInternal.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable")
	}
	if ErrInternal.Cause != nil {
		t.Error("WithCause must not mutate the sentinel")
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrDeadlineExpired)

	if got := KindOf(wrapped); got != KindDeadlineExpired {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindDeadlineExpired)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %q, want %q", got, KindInternal)
	}
	if !IsKind(wrapped, KindDeadlineExpired) {
		t.Error("IsKind should see through wrapping")
	}
	if IsKind(errors.New("plain"), KindInternal) {
		t.Error("IsKind should be false for foreign errors")
	}
}

func TestResponse_SetError(t *testing.T) {
	var resp Response
	resp.SetError(ErrUnknownAPI.WithDetails("foo"))

	if resp.Error == nil {
		t.Fatal("expected error to be set")
	}
	if resp.Error.Kind != KindInvalidRequest {
		t.Errorf("Kind = %q, want %q", resp.Error.Kind, KindInvalidRequest)
	}
}
