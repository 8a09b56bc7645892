// Package chat fronts Azure OpenAI chat completions: client construction
// from the resolved connection descriptor, retry with exponential backoff,
// circuit breaking and usage recording.
package chat

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/azure"
	openaiOption "github.com/openai/openai-go/v2/option"

	"github.com/egile-labs/egile-marketing/internal/config"
	"github.com/egile-labs/egile-marketing/internal/models"
	"github.com/egile-labs/egile-marketing/internal/services/circuitbreaker"
	"github.com/egile-labs/egile-marketing/internal/services/secrets"
	"github.com/egile-labs/egile-marketing/internal/services/usage"
	"github.com/egile-labs/egile-marketing/internal/utils/clientcache"
)

const upstreamName = "azure_openai"

// CompletionService handles completion requests against Azure OpenAI.
type CompletionService struct {
	cfg          *config.Config
	descriptor   *models.ConnectionDescriptor
	clientCache  *clientcache.Cache[*openai.Client]
	breaker      *circuitbreaker.CircuitBreaker
	usageService *usage.Service
}

// NewCompletionService creates a completion service bound to a resolved
// connection descriptor. breaker and usageService may be nil.
func NewCompletionService(cfg *config.Config, descriptor *models.ConnectionDescriptor, breaker *circuitbreaker.CircuitBreaker, usageService *usage.Service) *CompletionService {
	if cfg == nil {
		panic("NewCompletionService: cfg cannot be nil")
	}
	if descriptor == nil {
		panic("NewCompletionService: descriptor cannot be nil")
	}

	return &CompletionService{
		cfg:          cfg,
		descriptor:   descriptor,
		clientCache:  clientcache.NewCache[*openai.Client](),
		breaker:      breaker,
		usageService: usageService,
	}
}

// Descriptor exposes the immutable connection descriptor (health checks).
func (cs *CompletionService) Descriptor() *models.ConnectionDescriptor {
	return cs.descriptor
}

// clientCacheKey hashes the connection settings that affect client identity.
// The API key itself never enters the key, only a hash of it.
func clientCacheKey(d *models.ConnectionDescriptor, timeoutSeconds int, isStream bool) string {
	keyHash := ""
	if apiKey, ok := d.Credential.APIKey(); ok {
		sum := sha256.Sum256([]byte(apiKey))
		keyHash = fmt.Sprintf("%x", sum[:8])
	}

	payload, _ := json.Marshal(struct {
		Endpoint   string
		APIVersion string
		Kind       models.CredentialKind
		KeyHash    string
		TimeoutSec int
		IsStream   bool
	}{d.Endpoint, d.APIVersion, d.Credential.Kind(), keyHash, timeoutSeconds, isStream})

	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%x", d.Credential.Kind(), sum[:12])
}

// getClient returns a cached client or builds one for the descriptor.
func (cs *CompletionService) getClient(isStream bool) (*openai.Client, error) {
	cacheKey := clientCacheKey(cs.descriptor, cs.cfg.AzureOpenAI.TimeoutSeconds, isStream)

	return cs.clientCache.GetOrCreate(cacheKey, func() (*openai.Client, error) {
		fiberlog.Debugf("Creating Azure OpenAI client (auth=%s, stream=%v)", cs.descriptor.Credential.Kind(), isStream)
		return cs.buildClient(isStream)
	})
}

func (cs *CompletionService) buildClient(isStream bool) (*openai.Client, error) {
	d := cs.descriptor

	opts := []openaiOption.RequestOption{
		azure.WithEndpoint(d.Endpoint, d.APIVersion),
		// Retrying is handled here, with backoff matching upstream guidance.
		openaiOption.WithMaxRetries(0),
	}

	switch d.Credential.Kind() {
	case models.CredentialManagedIdentity:
		tokenCred, err := secrets.NewAzureCredential(true)
		if err != nil {
			return nil, err
		}
		opts = append(opts, azure.WithTokenCredential(tokenCred))
	case models.CredentialDirectKey, models.CredentialVaultKey:
		apiKey, _ := d.Credential.APIKey()
		opts = append(opts, openaiOption.WithAPIKey(apiKey))
	default:
		return nil, models.NewConfigurationError("connection descriptor carries no credential", nil)
	}

	// Client-level timeouts only for non-streaming requests; SSE connections
	// must outlive any single-response deadline.
	if cs.cfg.AzureOpenAI.TimeoutSeconds > 0 && !isStream {
		timeout := time.Duration(cs.cfg.AzureOpenAI.TimeoutSeconds) * time.Second
		opts = append(opts, openaiOption.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	client := openai.NewClient(opts...)
	return &client, nil
}

// Complete executes a non-streaming chat completion with retry on transient
// upstream failures.
func (cs *CompletionService) Complete(ctx context.Context, req *models.ChatCompletionRequest, requestID string) (*openai.ChatCompletion, error) {
	client, err := cs.getClient(false)
	if err != nil {
		return nil, err
	}

	params := req.ToOpenAIParams(cs.cfg.AzureOpenAI.DefaultModel)
	maxRetries := cs.cfg.AzureOpenAI.MaxRetries

	started := time.Now()
	var lastErr *models.AppError

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, models.NewTimeoutError("chat completion", err)
			}
			fiberlog.Infof("[%s] Retrying chat completion (attempt %d/%d)", requestID, attempt+1, maxRetries+1)
		}

		if err := cs.breaker.Allow(ctx); err != nil {
			return nil, err
		}

		resp, err := client.Chat.Completions.New(ctx, params)
		if err == nil {
			cs.breaker.RecordSuccess(ctx)
			cs.recordUsage(requestID, string(params.Model), resp.Usage, time.Since(started), http.StatusOK, false)
			return resp, nil
		}

		cs.breaker.RecordFailure(ctx)
		lastErr = ClassifyUpstreamError(err)
		fiberlog.Warnf("[%s] Chat completion attempt %d failed: %v", requestID, attempt+1, lastErr)

		if !lastErr.IsRetryable() {
			break
		}
	}

	cs.recordUsage(requestID, string(params.Model), openai.CompletionUsage{}, time.Since(started), lastErr.GetStatusCode(), false)
	return nil, lastErr
}

func (cs *CompletionService) recordUsage(requestID, model string, u openai.CompletionUsage, latency time.Duration, statusCode int, streamed bool) {
	if cs.usageService == nil {
		return
	}
	cs.usageService.Record(&models.RequestUsage{
		RequestID:        requestID,
		Model:            model,
		CredentialKind:   string(cs.descriptor.Credential.Kind()),
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		LatencyMs:        latency.Milliseconds(),
		StatusCode:       statusCode,
		Streamed:         streamed,
	})
}

// Backoff window for transient upstream failures: exponential from 4s capped
// at 10s.
const (
	backoffBase = 4 * time.Second
	backoffCap  = 10 * time.Second
)

// backoffDelay returns the wait before retry attempt n (n >= 1).
func backoffDelay(attempt int) time.Duration {
	delay := backoffBase << (attempt - 1)
	if delay > backoffCap || delay <= 0 {
		return backoffCap
	}
	return delay
}

func sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(backoffDelay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryableStatus reports whether an upstream HTTP status warrants a retry.
func RetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ClassifyUpstreamError maps an openai-go error into the AppError taxonomy.
func ClassifyUpstreamError(err error) *models.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeoutError("chat completion", err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return models.NewAuthenticationError("upstream", "azure openai rejected the credential", err)
		}
		return models.NewUpstreamError(
			fmt.Sprintf("azure openai error (status %d)", apiErr.StatusCode),
			apiErr.StatusCode, err)
	}

	return models.NewUpstreamError("azure openai request failed", 0, err)
}
