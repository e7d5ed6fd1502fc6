// Package state composes the per-turn State snapshot from provider output.
//
// Composition is cached per message id for the lifetime of the runtime so
// that repeated calls within one turn (before action dispatch, again before
// evaluation) reuse provider output. Callers force additional providers with
// an include list; a filter list replaces the default provider selection.
//
// Providers of one call are fetched concurrently. Each sees the cached state
// from before the call, never the in-progress merge, and results are merged
// in position order independent of completion order.
package state
