package api

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"

	"github.com/egile-labs/egile-marketing/internal/models"
	"github.com/egile-labs/egile-marketing/internal/services/chat"
)

// CompletionHandler handles chat completion HTTP requests.
type CompletionHandler struct {
	completionSvc *chat.CompletionService
}

// NewCompletionHandler wires up the completion handler.
func NewCompletionHandler(completionSvc *chat.CompletionService) *CompletionHandler {
	return &CompletionHandler{completionSvc: completionSvc}
}

// requestID returns the caller-supplied X-Request-ID or generates one.
func requestID(c *fiber.Ctx) string {
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

// ChatCompletion handles POST /v1/chat/completions, streaming or not.
func (h *CompletionHandler) ChatCompletion(c *fiber.Ctx) error {
	reqID := requestID(c)
	fiberlog.Infof("[%s] starting chat completion request", reqID)

	var req models.ChatCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, models.NewValidationError("invalid request body", err))
	}
	if len(req.Messages) == 0 {
		return writeError(c, models.NewValidationError("messages cannot be empty", nil))
	}

	if req.Stream {
		return h.streamCompletion(c, &req, reqID)
	}

	resp, err := h.completionSvc.Complete(c.UserContext(), &req, reqID)
	if err != nil {
		fiberlog.Errorf("[%s] chat completion failed: %v", reqID, err)
		return writeError(c, err)
	}

	fiberlog.Infof("[%s] chat completion succeeded", reqID)
	return c.JSON(resp)
}

func (h *CompletionHandler) streamCompletion(c *fiber.Ctx, req *models.ChatCompletionRequest, reqID string) error {
	ctx := c.UserContext()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		if err := h.completionSvc.StreamCompletion(ctx, req, reqID, w); err != nil {
			fiberlog.Errorf("[%s] stream failed: %v", reqID, err)
			// Emit a terminal SSE error event; headers are long gone.
			sanitized := models.SanitizeError(err)
			fmt.Fprintf(w, "data: {\"error\":{\"type\":%q,\"message\":%q}}\n\n", sanitized.Type, sanitized.Message)
			if err := w.Flush(); err != nil {
				fiberlog.Debugf("[%s] failed to flush error event: %v", reqID, err)
			}
			return
		}
		fiberlog.Infof("[%s] stream completed", reqID)
	}))

	return nil
}

// writeError maps an error into the sanitized JSON error envelope.
func writeError(c *fiber.Ctx, err error) error {
	sanitized := models.SanitizeError(err)
	return c.Status(sanitized.GetStatusCode()).JSON(fiber.Map{"error": sanitized})
}
