// Package core provides the foundational domain types and capability
// interfaces of plugmesh. It defines:
//
//   - Characters (agent identity, plugin manifest, knowledge, settings, secrets)
//   - Memories, entities, rooms and worlds persisted through a DatabaseAdapter
//   - The capability variants plugins contribute: Provider, Action, Evaluator,
//     ServiceDescriptor, ModelHandler, TaskWorker and Route
//   - State, the per-turn snapshot assembled from provider output
//   - Runtime, the narrow view of the engine handed to every capability
//
// The package keeps orchestration out of scope. Registries, the state composer
// and dispatchers live in their own packages and depend on these types only.
package core
