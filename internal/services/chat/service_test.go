package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/egile-labs/egile-marketing/internal/config"
	"github.com/egile-labs/egile-marketing/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		AzureOpenAI: models.AzureOpenAIConfig{
			Endpoint:       "https://example.openai.azure.com",
			APIVersion:     "2024-02-15-preview",
			DefaultModel:   "gpt-4",
			MaxRetries:     3,
			TimeoutSeconds: 30,
		},
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !RetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if RetryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 10 * time.Second},
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestSleepBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepBackoff(ctx, 1)
	if err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("sleepBackoff blocked %v on a cancelled context", elapsed)
	}
}

func TestClassifyUpstreamError(t *testing.T) {
	deadline := ClassifyUpstreamError(context.DeadlineExceeded)
	if deadline.Type != models.ErrorTypeTimeout {
		t.Errorf("deadline error type = %s, want %s", deadline.Type, models.ErrorTypeTimeout)
	}
	if !deadline.IsRetryable() {
		t.Error("timeouts should be retryable")
	}

	generic := ClassifyUpstreamError(errors.New("connection reset by peer"))
	if generic.Type != models.ErrorTypeUpstream {
		t.Errorf("generic error type = %s, want %s", generic.Type, models.ErrorTypeUpstream)
	}
	if generic.IsRetryable() {
		t.Error("unclassified errors should not be retryable")
	}
}

func TestClientCacheKey(t *testing.T) {
	base := &models.ConnectionDescriptor{
		Endpoint:   "https://example.openai.azure.com",
		APIVersion: "2024-02-15-preview",
		Credential: models.NewDirectKeyCredential("sk-secret-material"),
	}

	key := clientCacheKey(base, 30, false)
	if strings.Contains(key, "sk-secret-material") {
		t.Error("cache key must never contain raw key material")
	}

	if again := clientCacheKey(base, 30, false); again != key {
		t.Errorf("cache key not stable: %q vs %q", key, again)
	}

	if streamKey := clientCacheKey(base, 30, true); streamKey == key {
		t.Error("stream and non-stream clients must not share a cache entry")
	}

	other := &models.ConnectionDescriptor{
		Endpoint:   base.Endpoint,
		APIVersion: base.APIVersion,
		Credential: models.NewDirectKeyCredential("different-key"),
	}
	if otherKey := clientCacheKey(other, 30, false); otherKey == key {
		t.Error("different keys must produce different cache entries")
	}

	identity := &models.ConnectionDescriptor{
		Endpoint:   base.Endpoint,
		APIVersion: base.APIVersion,
		Credential: models.NewManagedIdentityCredential(),
	}
	if idKey := clientCacheKey(identity, 30, false); idKey == key {
		t.Error("identity and key auth must produce different cache entries")
	}
}

func TestStreamExhaustedError(t *testing.T) {
	err := streamExhaustedError()
	if got := err.GetStatusCode(); got != 502 {
		t.Errorf("status = %d, want 502", got)
	}
	if err.Type != models.ErrorTypeUpstream {
		t.Errorf("type = %s, want %s", err.Type, models.ErrorTypeUpstream)
	}
	if !err.IsRetryable() {
		t.Error("exhausted stream open should stay retryable for the caller")
	}
}

func TestBuildClientRequiresCredential(t *testing.T) {
	cfg := testConfig()
	svc := NewCompletionService(cfg, &models.ConnectionDescriptor{
		Endpoint:   "https://example.openai.azure.com",
		APIVersion: "2024-02-15-preview",
		Credential: models.NewDirectKeyCredential("sk-test"),
	}, nil, nil)

	if _, err := svc.buildClient(false); err != nil {
		t.Errorf("buildClient with direct key failed: %v", err)
	}

	svc.descriptor = &models.ConnectionDescriptor{
		Endpoint:   "https://example.openai.azure.com",
		APIVersion: "2024-02-15-preview",
	}
	if _, err := svc.buildClient(false); err == nil {
		t.Error("buildClient without credential should fail")
	}
}
