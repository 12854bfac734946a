// Package types defines relay's outward wire format: the OpenAI Chat
// Completions request, response, streaming chunk, model catalog, and
// error shapes. Whatever a backend natively speaks, callers always see
// these shapes.
//
// The package has no dependencies and is imported by both the router
// (which produces the canonical shapes) and the HTTP front door (which
// serializes them).
package types
