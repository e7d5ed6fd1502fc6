// Package model maps model-type keys to ordered lists of handlers and invokes
// them on behalf of the runtime.
//
// Core goals:
//   - Append-only registration so plugins can contribute fallbacks
//   - Resolution through an explicit SelectionStrategy (FirstRegistered by default)
//   - An audit entry per invocation that records parameter names, never values
//
// Vendor adapters (openai, anthropic) live in sub-packages and ship as plugins
// that register handlers under the standard model types.
package model
