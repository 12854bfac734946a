// Package providers defines the backend capability contract and the shared
// data model of the dispatch core: conversation messages, completion
// requests and results, raw stream fragments, model descriptors, and the
// error taxonomy every component reduces its failures to.
//
// A Provider is one live adapter against one specific upstream service,
// serving exactly one model id. Adapters normalize their upstream's native
// response shapes into CompletionResult and StreamFragment values; the
// router (pkg/routing) turns those into the outward OpenAI-compatible wire
// format.
//
// # Error taxonomy
//
// Every error leaving the core reduces to one of four kinds: model not
// found, backend failure, deadline elapsed, or credential pool exhausted.
// Classify determines the kind for an arbitrary error; the HTTP front door
// maps kinds to status codes. Rate limiting is never an error: the
// per-backend limiter absorbs it as a delay (see pkg/limits/ratelimit).
package providers
