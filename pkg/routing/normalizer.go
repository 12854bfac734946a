package routing

import (
	"context"
	"strings"
	"time"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
)

// normalizer turns one backend's native incremental output into the
// canonical delta-chunk sequence. Backends frame partial text in two
// styles: incremental (each fragment carries only new text) and
// cumulative (each fragment re-sends everything generated so far). Each
// fragment declares its framing; the normalizer reduces cumulative
// fragments to deltas and passes incremental text through untouched, so
// every emitted chunk carries exactly the new text since the last
// emission, in arrival order, with empty fragments coalesced away.
//
// All chunks of one logical stream share the id and created values
// assigned when the normalizer is built.
type normalizer struct {
	id      string
	created int64
	model   string
	timeout time.Duration

	total     strings.Builder // everything emitted so far
	emitted   int             // chunks emitted
	finished  bool            // terminal chunk already emitted
	firstSent bool            // first delta carries the assistant role
}

func newNormalizer(model string, timeout time.Duration) *normalizer {
	return &normalizer{
		id:      NewCompletionID(),
		created: time.Now().Unix(),
		model:   model,
		timeout: timeout,
	}
}

// run pumps fragments from in to out until the backend stream ends, an
// error arrives, or ctx is done. It returns the number of chunks emitted.
//
// The single ctx deadline can fire at any suspension point, both while
// pulling from the backend and while pushing to a slow consumer.
func (n *normalizer) run(ctx context.Context, in <-chan *providers.StreamFragment, out chan<- *types.ChatCompletionStreamChunk) int {
	for {
		select {
		case <-ctx.Done():
			n.deliverInterrupt(ctx, out)
			return n.emitted

		case frag, ok := <-in:
			if !ok {
				// Backend stream ended without an explicit terminal
				// marker: synthesize the stop chunk.
				if !n.finished {
					n.deliver(ctx, out, n.stopChunk(providers.FinishReasonStop))
				}
				return n.emitted
			}

			if frag.Err != nil {
				// Propagate and emit nothing further.
				n.deliver(ctx, out, &types.ChatCompletionStreamChunk{
					ID:      n.id,
					Object:  "chat.completion.chunk",
					Created: n.created,
					Model:   n.model,
					Err:     frag.Err,
				})
				return n.emitted
			}

			delta := n.reconcile(frag)
			if delta != "" {
				if !n.deliver(ctx, out, n.deltaChunk(delta)) {
					return n.emitted
				}
			}

			if frag.FinishReason != "" {
				n.deliver(ctx, out, n.stopChunk(frag.FinishReason))
				n.finished = true
				return n.emitted
			}
		}
	}
}

// reconcile computes the new text a fragment contributes. Incremental
// text passes through unchanged. A cumulative fragment re-sends the full
// output so far; its contribution is the tail beyond what was already
// emitted, and a snapshot that does not extend the emitted text carries
// nothing new.
func (n *normalizer) reconcile(frag *providers.StreamFragment) string {
	text := frag.Text
	if text == "" {
		return ""
	}

	if !frag.Cumulative {
		n.total.WriteString(text)
		return text
	}

	sofar := n.total.String()
	if len(text) > len(sofar) && strings.HasPrefix(text, sofar) {
		n.total.Reset()
		n.total.WriteString(text)
		return text[len(sofar):]
	}
	return ""
}

func (n *normalizer) deltaChunk(delta string) *types.ChatCompletionStreamChunk {
	d := types.Delta{Content: delta}
	if !n.firstSent {
		d.Role = "assistant"
		n.firstSent = true
	}
	return &types.ChatCompletionStreamChunk{
		ID:      n.id,
		Object:  "chat.completion.chunk",
		Created: n.created,
		Model:   n.model,
		Choices: []types.StreamChoice{{Index: 0, Delta: d}},
	}
}

func (n *normalizer) stopChunk(reason string) *types.ChatCompletionStreamChunk {
	return &types.ChatCompletionStreamChunk{
		ID:      n.id,
		Object:  "chat.completion.chunk",
		Created: n.created,
		Model:   n.model,
		Choices: []types.StreamChoice{{Index: 0, Delta: types.Delta{}, FinishReason: &reason}},
	}
}

// deliver pushes a chunk, honoring cancellation while the consumer is
// slow. Reports whether the chunk was delivered.
func (n *normalizer) deliver(ctx context.Context, out chan<- *types.ChatCompletionStreamChunk, chunk *types.ChatCompletionStreamChunk) bool {
	select {
	case out <- chunk:
		n.emitted++
		return true
	case <-ctx.Done():
		return false
	}
}

// interruptGrace bounds how long a deadline interrupt waits for the
// consumer to take the error chunk. The consumer is usually only busy
// writing the previous chunk to the wire; one that stays away longer is
// treated as disconnected.
const interruptGrace = time.Second

// deliverInterrupt reports a mid-stream deadline to a consumer that is
// still listening. The consumer may be between receives (writing the
// previous chunk out), so delivery waits up to interruptGrace rather
// than closing the stream bare and letting truncation pass as a clean
// end. A consumer that disconnected (context cancelled on its side)
// simply stops receiving; nothing is owed to it.
func (n *normalizer) deliverInterrupt(ctx context.Context, out chan<- *types.ChatCompletionStreamChunk) {
	if ctx.Err() != context.DeadlineExceeded {
		return
	}
	chunk := &types.ChatCompletionStreamChunk{
		ID:      n.id,
		Object:  "chat.completion.chunk",
		Created: n.created,
		Model:   n.model,
		Err:     &providers.TimeoutError{Deadline: n.timeout},
	}
	grace := time.NewTimer(interruptGrace)
	defer grace.Stop()
	select {
	case out <- chunk:
		n.emitted++
	case <-grace.C:
	}
}
