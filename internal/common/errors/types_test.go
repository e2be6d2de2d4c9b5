package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		contains []string
	}{
		{
			name:     "type and message only",
			err:      AuthError("calendar credential expired"),
			contains: []string{"authentication", "calendar credential expired"},
		},
		{
			name:     "with code",
			err:      RateLimitError("google calendar").WithCode("429"),
			contains: []string{"rate_limit", "code=429"},
		},
		{
			name:     "with cause",
			err:      PersistenceError("insert lesson", errors.New("connection reset")),
			contains: []string{"persistence", "insert lesson", "cause=connection reset"},
		},
		{
			name:     "with context",
			err:      ConnectionError("fetch window", nil).WithContext("source", "ics_feed"),
			contains: []string{"connection", "source=ics_feed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want substring %q", msg, want)
				}
			}
		})
	}
}

func TestIsType(t *testing.T) {
	authErr := AuthError("token revoked")

	if !IsType(authErr, ErrTypeAuth) {
		t.Error("IsType() should match the error's own type")
	}
	if IsType(authErr, ErrTypeRateLimit) {
		t.Error("IsType() should not match a different type")
	}
	if IsType(nil, ErrTypeAuth) {
		t.Error("IsType(nil) should be false")
	}
	if IsType(errors.New("plain"), ErrTypeAuth) {
		t.Error("IsType() should be false for non-AppError")
	}
}

func TestIsType_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("sync failed: %w", RateLimitError("cal.com"))

	if !IsType(wrapped, ErrTypeRateLimit) {
		t.Error("IsType() should unwrap errors")
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(ConflictError("sync already running")); got != ErrTypeConflict {
		t.Errorf("GetType() = %v, want %v", got, ErrTypeConflict)
	}
	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("GetType() = %v, want %v", got, ErrTypeInternal)
	}
	if got := GetType(nil); got != ErrorType("") {
		t.Errorf("GetType(nil) = %v, want empty", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := ConnectionError("fetching events", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}
