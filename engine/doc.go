// Package engine implements the agent runtime.
//
// An Engine is constructed from a Character and a set of plugins. It owns
// every registry a turn touches and hands itself to capabilities as the
// core.Runtime they run against.
//
// # Lifecycle
//
//	eng, err := engine.New(character, func(o *engine.Options) {
//	    o.Plugins = []core.Plugin{bootstrap.Plugin()}
//	    o.Adapter = memory.NewInMemoryStore()
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := eng.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer eng.Stop(context.Background())
//
// Initialize installs option plugins first, then the plugins the character
// names, resolved through the Catalog. It then bootstraps the agent's own
// entity, world and room, probes the embedding model to fix the storage
// embedding dimension, ingests the character's static knowledge and starts
// the task scheduler. Any failure is reported as a core.SetupError.
//
// # Plugin installation
//
// Install applies a plugin's parts in a fixed order: adapter (first bound
// wins), actions, evaluators and providers (appended without
// de-duplication), model handlers, routes, event handlers, services (started
// in parallel) and task workers. The plugin's config is validated against
// its ConfigSchema and Init runs last. Installation is not transactional:
// parts registered before a failure stay registered.
//
// # Settings
//
// GetSetting resolves a key from the character's secrets, its settings, the
// "secrets" map nested in settings and finally the process-wide
// SettingsSource. The strings "true" and "false" are returned as booleans
// and falsy values as nil.
//
// # Concurrency
//
// All methods are safe for concurrent use. Registries are guarded by their
// own locks; the capability slices are copied on read.
package engine
