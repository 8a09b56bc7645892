package circuitbreaker

import (
	"context"
	"testing"
	"time"
)

func TestConfigWithDefaults(t *testing.T) {
	got := Config{}.withDefaults()
	if got.FailureThreshold != defaultFailureThreshold {
		t.Errorf("FailureThreshold = %d, want %d", got.FailureThreshold, defaultFailureThreshold)
	}
	if got.SuccessThreshold != defaultSuccessThreshold {
		t.Errorf("SuccessThreshold = %d, want %d", got.SuccessThreshold, defaultSuccessThreshold)
	}
	if got.ResetAfter != defaultResetAfter {
		t.Errorf("ResetAfter = %v, want %v", got.ResetAfter, defaultResetAfter)
	}

	custom := Config{FailureThreshold: 10, SuccessThreshold: 3, ResetAfter: time.Minute}.withDefaults()
	if custom != (Config{FailureThreshold: 10, SuccessThreshold: 3, ResetAfter: time.Minute}) {
		t.Errorf("withDefaults overwrote explicit values: %+v", custom)
	}
}

func TestNilBreakerAdmitsEverything(t *testing.T) {
	var cb *CircuitBreaker
	ctx := context.Background()

	if err := cb.Allow(ctx); err != nil {
		t.Errorf("nil breaker Allow = %v, want nil", err)
	}
	cb.RecordSuccess(ctx)
	cb.RecordFailure(ctx)
	if state := cb.CurrentState(ctx); state != Closed {
		t.Errorf("nil breaker state = %v, want Closed", state)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Closed, "Closed"},
		{Open, "Open"},
		{HalfOpen, "HalfOpen"},
		{State(9), "Unknown(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestKeyPrefix(t *testing.T) {
	cb := New(nil, "azure_openai", Config{})
	if got := cb.key("state"); got != "circuit_breaker:azure_openai:state" {
		t.Errorf("key = %q", got)
	}
}
