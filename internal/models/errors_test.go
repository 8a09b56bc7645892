package models

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppErrorStatusCodes(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeAuthentication, http.StatusUnauthorized},
		{ErrorTypeRateLimit, http.StatusTooManyRequests},
		{ErrorTypeUpstream, http.StatusBadGateway},
		{ErrorTypeCircuitBreaker, http.StatusServiceUnavailable},
		{ErrorTypeTimeout, http.StatusGatewayTimeout},
		{ErrorTypeInternal, http.StatusInternalServerError},
		{ErrorTypeConfiguration, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			e := &AppError{Type: tt.errType, Message: "boom"}
			if got := e.GetStatusCode(); got != tt.want {
				t.Errorf("GetStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUpstreamErrorRetryability(t *testing.T) {
	retryable := []int{429, 500, 502, 503, 504}
	for _, code := range retryable {
		if !NewUpstreamError("err", code, nil).IsRetryable() {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 404, 0} {
		if NewUpstreamError("err", code, nil).IsRetryable() {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewConfigurationError("bad config", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.IsRetryable() {
		t.Error("configuration errors are never retryable")
	}
	if got := err.Error(); got != "bad config: root cause" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSanitizeErrorStripsCause(t *testing.T) {
	cause := errors.New("contains secret dsn")
	sanitized := SanitizeError(NewAuthenticationError("vault_key", "credential resolution failed", cause))

	if sanitized.Cause != nil {
		t.Error("sanitized error must not expose the cause")
	}
	if sanitized.Type != ErrorTypeAuthentication {
		t.Errorf("type = %s", sanitized.Type)
	}
	if sanitized.Code != "AUTH_vault_key_FAILED" {
		t.Errorf("code = %q", sanitized.Code)
	}

	generic := SanitizeError(cause)
	if generic.Type != ErrorTypeInternal {
		t.Errorf("unknown errors should sanitize to internal, got %s", generic.Type)
	}
	if generic.Message == cause.Error() {
		t.Error("unknown error message must not leak through")
	}
}
