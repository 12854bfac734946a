// Package routing implements the completion router: the component that
// takes a validated request, looks up the backends serving its model id,
// picks one uniformly at random, applies the per-request deadline, and
// shapes whatever the backend returns into the canonical OpenAI wire
// format.
//
// Failure handling follows a simple policy: transient backend failures
// are retried by re-selecting an alternate handle for the same model
// (never the handle that just failed, and never in a tight loop against
// one backend; per-backend retry/backoff is the adapter's own concern);
// credential rejections and elapsed deadlines are returned immediately.
// Every error leaving the router classifies to one of the four kinds in
// pkg/providers.
//
// Streaming responses pass through the stream normalizer, which converts
// arbitrary backend chunk framing into delta-only chunks sharing one
// id/created pair and always terminating with a finish_reason="stop"
// chunk or an error.
package routing
