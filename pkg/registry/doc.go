// Package registry owns the process's backend adapters and the routing
// index from model id to the set of handles serving it.
//
// A Registry is constructed explicitly, populated with adapter factories
// via Register, and finalized with one Build call. Build instantiates
// every factory, skips (with a warning) any adapter that fails to
// construct or lacks a model id, merges duplicate model claims into a
// deduplicated catalog, and freezes the result: the index and catalog are
// immutable afterwards, so the router reads them without locks. There is
// no incremental add or remove; picking up changed configuration means
// building a fresh registry and swapping it in.
package registry
