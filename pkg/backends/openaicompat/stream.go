package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"mercator-hq/relay/pkg/providers"
)

// wireStreamChunk is one upstream SSE event payload.
type wireStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// CompleteStream opens an SSE stream against the upstream and converts
// its events into raw fragments. The returned channel closes when the
// upstream signals [DONE], the connection drops, or ctx is cancelled;
// a mid-stream failure arrives as a final fragment with Err set.
func (p *Provider) CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamFragment, error) {
	if err := p.limiter.Acquire(ctx, p.cfg.Name); err != nil {
		return nil, err
	}

	resp, err := p.doRequest(ctx, p.buildBody(req, true))
	if err != nil {
		return nil, err
	}

	out := make(chan *providers.StreamFragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var wire wireStreamChunk
			if err := json.Unmarshal([]byte(data), &wire); err != nil {
				p.send(ctx, out, &providers.StreamFragment{
					Err: &providers.BackendError{
						Backend: p.cfg.Name,
						Message: "malformed stream event",
						Cause:   err,
					},
				})
				return
			}
			if len(wire.Choices) == 0 {
				continue
			}

			frag := &providers.StreamFragment{
				Text: wire.Choices[0].Delta.Content,
			}
			if fr := wire.Choices[0].FinishReason; fr != nil && *fr != "" {
				frag.FinishReason = *fr
			}
			if wire.Usage != nil {
				frag.Usage = &providers.TokenUsage{
					PromptTokens:     wire.Usage.PromptTokens,
					CompletionTokens: wire.Usage.CompletionTokens,
					TotalTokens:      wire.Usage.TotalTokens,
				}
			}

			if !p.send(ctx, out, frag) {
				return
			}
			if frag.FinishReason != "" {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			p.send(ctx, out, &providers.StreamFragment{
				Err: &providers.BackendError{
					Backend: p.cfg.Name,
					Message: "stream read failed",
					Cause:   err,
				},
			})
		}
	}()

	return out, nil
}

// send pushes a fragment unless ctx is done. Reports delivery.
func (p *Provider) send(ctx context.Context, out chan<- *providers.StreamFragment, frag *providers.StreamFragment) bool {
	select {
	case out <- frag:
		return true
	case <-ctx.Done():
		return false
	}
}
