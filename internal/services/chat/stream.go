package chat

import (
	"bufio"
	"context"
	"net/http"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/egile-labs/egile-marketing/internal/models"
	"github.com/egile-labs/egile-marketing/internal/utils"
)

// StreamCompletion executes a streaming chat completion, writing server-sent
// events to w. Retries apply only until the first chunk arrives; once bytes
// have reached the client the stream fails as-is.
func (cs *CompletionService) StreamCompletion(ctx context.Context, req *models.ChatCompletionRequest, requestID string, w *bufio.Writer) error {
	client, err := cs.getClient(true)
	if err != nil {
		return err
	}

	params := req.ToOpenAIParams(cs.cfg.AzureOpenAI.DefaultModel)
	// Ask the upstream to attach token usage to the final chunk.
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}

	maxRetries := cs.cfg.AzureOpenAI.MaxRetries
	started := time.Now()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return models.NewTimeoutError("chat completion stream", err)
			}
			fiberlog.Infof("[%s] Retrying stream open (attempt %d/%d)", requestID, attempt+1, maxRetries+1)
		}

		if err := cs.breaker.Allow(ctx); err != nil {
			return err
		}

		delivered, usage, err := cs.pumpStream(ctx, client, params, w)
		if err == nil {
			cs.breaker.RecordSuccess(ctx)
			cs.recordUsage(requestID, string(params.Model), usage, time.Since(started), http.StatusOK, true)
			return nil
		}

		cs.breaker.RecordFailure(ctx)
		appErr := ClassifyUpstreamError(err)
		fiberlog.Warnf("[%s] Stream attempt %d failed (delivered=%v): %v", requestID, attempt+1, delivered, appErr)

		// A partially delivered stream cannot be replayed to the client.
		if delivered || !appErr.IsRetryable() {
			cs.recordUsage(requestID, string(params.Model), usage, time.Since(started), appErr.GetStatusCode(), true)
			return appErr
		}
	}

	exhausted := streamExhaustedError()
	cs.recordUsage(requestID, string(params.Model), openai.CompletionUsage{}, time.Since(started), exhausted.GetStatusCode(), true)
	return exhausted
}

// streamExhaustedError is the single source for the status reported when
// stream-open retries run out, both on the usage record and to the caller.
func streamExhaustedError() *models.AppError {
	return models.NewUpstreamError("stream open failed after retries", http.StatusBadGateway, nil)
}

// pumpStream relays chunks as SSE events. It reports whether any chunk was
// delivered and the usage attached to the final chunk.
func (cs *CompletionService) pumpStream(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, w *bufio.Writer) (bool, openai.CompletionUsage, error) {
	stream := client.Chat.Completions.NewStreaming(ctx, params)
	defer func() {
		if err := stream.Close(); err != nil {
			fiberlog.Debugf("Error closing upstream stream: %v", err)
		}
	}()

	var usage openai.CompletionUsage
	delivered := false

	buf := utils.Get()
	defer utils.Put(buf)

	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			usage = chunk.Usage
		}

		buf.Reset()
		buf.WriteString("data: ")
		buf.WriteString(chunk.RawJSON())
		buf.WriteString("\n\n")

		if _, err := w.Write(buf.Bytes()); err != nil {
			return delivered, usage, err
		}
		if err := w.Flush(); err != nil {
			return delivered, usage, err
		}
		delivered = true
	}

	if err := stream.Err(); err != nil {
		return delivered, usage, err
	}

	if _, err := w.WriteString("data: [DONE]\n\n"); err != nil {
		return delivered, usage, err
	}
	return delivered, usage, w.Flush()
}
