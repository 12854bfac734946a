// Package openaicompat adapts OpenAI-compatible chat completion APIs
// (OpenAI, Ollama, vLLM, LM Studio, and most hosted aggregators) to the
// relay backend contract: buffered completions over JSON and streaming
// completions over SSE, authenticated with a static bearer key and
// throttled by the adapter's own token bucket.
package openaicompat
