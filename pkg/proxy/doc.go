// Package proxy contains the HTTP wire helpers of the front door:
// request parsing and validation, OpenAI-compatible response and error
// writing, and Server-Sent Events framing for streamed completions.
package proxy
