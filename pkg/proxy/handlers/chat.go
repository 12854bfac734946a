package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/middleware"
	"mercator-hq/relay/pkg/proxy/types"
)

// ChatHandler serves POST /v1/chat/completions, both buffered and
// streamed.
type ChatHandler struct {
	dispatcher Dispatcher
}

// NewChatHandler creates a new chat completion handler.
func NewChatHandler(d Dispatcher) *ChatHandler {
	return &ChatHandler{dispatcher: d}
}

// convertRequest converts an OpenAI wire request to the dispatch core's
// request shape.
func convertRequest(req *types.ChatCompletionRequest, requestID string) *providers.CompletionRequest {
	coreReq := &providers.CompletionRequest{
		Model:    req.Model,
		Messages: make([]providers.Message, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		coreReq.Messages = append(coreReq.Messages, providers.Message{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    msg.Name,
		})
	}

	if req.Temperature != nil {
		coreReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		coreReq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		coreReq.TopP = *req.TopP
	}
	if len(req.Stop) > 0 {
		coreReq.Stop = req.Stop
	}

	coreReq.Metadata = map[string]string{"request_id": requestID}
	if req.User != "" {
		coreReq.Metadata["user"] = req.User
	}

	return coreReq
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	startTime := time.Now()

	if r.Method != http.MethodPost {
		errResp := types.NewInvalidRequestError(
			fmt.Sprintf("Method %s not allowed. Use POST instead.", r.Method),
			"method",
			"method_not_allowed",
		)
		if err := proxy.WriteErrorResponse(w, errResp); err != nil {
			slog.ErrorContext(ctx, "failed to write error response", "error", err)
		}
		return
	}

	chatReq, err := proxy.ParseChatCompletionRequest(r)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse request",
			"request_id", requestID,
			"error", err,
		)

		errResp := proxy.HandleError(err)
		if err := proxy.WriteErrorResponse(w, errResp); err != nil {
			slog.ErrorContext(ctx, "failed to write error response", "error", err)
		}
		return
	}

	if chatReq.Stream {
		h.serveStream(w, r, chatReq)
		return
	}

	slog.InfoContext(ctx, "processing chat completion request",
		"request_id", requestID,
		"model", chatReq.Model,
		"messages", len(chatReq.Messages),
	)

	resp, err := h.dispatcher.Complete(ctx, convertRequest(chatReq, requestID))
	if err != nil {
		slog.ErrorContext(ctx, "completion failed",
			"request_id", requestID,
			"model", chatReq.Model,
			"kind", string(providers.Classify(err)),
			"error", err,
		)

		errResp := proxy.HandleError(err)
		if err := proxy.WriteErrorResponse(w, errResp); err != nil {
			slog.ErrorContext(ctx, "failed to write error response", "error", err)
		}
		return
	}

	slog.InfoContext(ctx, "chat completion successful",
		"request_id", requestID,
		"model", chatReq.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
		"latency_ms", time.Since(startTime).Milliseconds(),
	)

	if err := proxy.WriteJSONResponse(w, http.StatusOK, resp); err != nil {
		slog.ErrorContext(ctx, "failed to write response",
			"request_id", requestID,
			"error", err,
		)
	}
}

// serveStream serves a streaming completion as Server-Sent Events.
func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, chatReq *types.ChatCompletionRequest) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	startTime := time.Now()

	slog.InfoContext(ctx, "processing streaming chat completion request",
		"request_id", requestID,
		"model", chatReq.Model,
		"messages", len(chatReq.Messages),
	)

	chunks, err := h.dispatcher.CompleteStream(ctx, convertRequest(chatReq, requestID))
	if err != nil {
		// Nothing has been written yet; a plain error response is
		// still possible.
		slog.ErrorContext(ctx, "stream dispatch failed",
			"request_id", requestID,
			"model", chatReq.Model,
			"kind", string(providers.Classify(err)),
			"error", err,
		)

		errResp := proxy.HandleError(err)
		if err := proxy.WriteErrorResponse(w, errResp); err != nil {
			slog.ErrorContext(ctx, "failed to write error response", "error", err)
		}
		return
	}

	proxy.SetSSEHeaders(w)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	chunkCount := 0
	for chunk := range chunks {
		if chunk.Err != nil {
			slog.ErrorContext(ctx, "stream interrupted",
				"request_id", requestID,
				"model", chatReq.Model,
				"chunks", chunkCount,
				"error", chunk.Err,
			)

			if err := proxy.WriteSSEError(w, proxy.HandleError(chunk.Err)); err != nil {
				slog.ErrorContext(ctx, "failed to write SSE error", "error", err)
			}
			return
		}

		if err := proxy.WriteSSEChunk(w, chunk); err != nil {
			// Client is gone; drain via context cancellation upstream.
			slog.WarnContext(ctx, "failed to write SSE chunk",
				"request_id", requestID,
				"error", err,
			)
			return
		}
		chunkCount++
	}

	if err := proxy.WriteSSEDone(w); err != nil {
		slog.WarnContext(ctx, "failed to write SSE done marker", "error", err)
		return
	}

	slog.InfoContext(ctx, "streaming chat completion finished",
		"request_id", requestID,
		"model", chatReq.Model,
		"chunks", chunkCount,
		"latency_ms", time.Since(startTime).Milliseconds(),
	)
}
