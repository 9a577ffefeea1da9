package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindIntegrity, "commit", "verification failed",
				errors.New("short read")),
			contains: []string{"[integrity:commit]", "verification failed", "short read"},
		},
		{
			name:     "error without cause",
			err:      New(KindPermission, "start", "microphone denied"),
			contains: []string{"[permission:start]", "microphone denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindCapture, "stop", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindTranscription, "transcribe", "engine not ready"),
			kind:     KindTranscription,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      Wrap(KindMigration, "migrate", "decode failed", errors.New("cause")),
			kind:     KindMigration,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindCleanup, "delete", "message"),
			kind:     KindStorage,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindCapture,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}
