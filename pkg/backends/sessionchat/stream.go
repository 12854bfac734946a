package sessionchat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"

	"mercator-hq/relay/pkg/providers"
)

// streamEvent is one newline-delimited JSON event from the upstream
// stream. The service re-sends the full text generated so far in every
// event (cumulative framing); the router's normalizer reduces that to
// deltas. The final event carries done=true and the remaining balance.
type streamEvent struct {
	Text    string  `json:"text"`
	Done    bool    `json:"done"`
	Balance float64 `json:"balance"`
}

// CompleteStream opens a streaming completion. The credential feedback
// loop works the same as for buffered calls: auth rejections while
// opening the stream are reported and retried once with a fresh
// credential; the balance carried by the terminal event is reported when
// the stream ends cleanly.
func (p *Provider) CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamFragment, error) {
	if err := p.limiter.Acquire(ctx, p.cfg.Name); err != nil {
		return nil, err
	}

	out, err := p.streamOnce(ctx, req)

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		p.pool.ReportAuthFailure(authErr.Code)
		p.logger.Warn("credential rejected, retrying stream with a fresh one", "code", authErr.Code)
		out, err = p.streamOnce(ctx, req)
		if errors.As(err, &authErr) {
			p.pool.ReportAuthFailure(authErr.Code)
		}
	}

	return out, err
}

func (p *Provider) streamOnce(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamFragment, error) {
	cred, err := p.pool.GetValid(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, cred, &chatRequest{Messages: req.Messages, Stream: true})
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
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal(line, &event); err != nil {
				p.sendFragment(ctx, out, &providers.StreamFragment{
					Err: &providers.BackendError{
						Backend: p.cfg.Name,
						Message: "malformed stream event",
						Cause:   err,
					},
				})
				return
			}

			frag := &providers.StreamFragment{Text: event.Text, Cumulative: true}
			if event.Done {
				frag.FinishReason = providers.FinishReasonStop
			}
			if !p.sendFragment(ctx, out, frag) {
				return
			}
			if event.Done {
				p.pool.ReportBalance(cred.Code, event.Balance)
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			p.sendFragment(ctx, out, &providers.StreamFragment{
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

func (p *Provider) sendFragment(ctx context.Context, out chan<- *providers.StreamFragment, frag *providers.StreamFragment) bool {
	select {
	case out <- frag:
		return true
	case <-ctx.Done():
		return false
	}
}
