package engine

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/internal/util"
)

// Install wires plugin into the runtime. A plugin name that is already
// installed is logged and not tracked twice, but its parts are applied
// again. Parts registered before a failing step stay registered.
func (e *Engine) Install(ctx context.Context, plugin core.Plugin) error {
	if plugin.Name == "" {
		return fmt.Errorf("plugin name is required")
	}

	e.mu.Lock()

	if _, ok := e.installed[plugin.Name]; ok {
		e.logger.Warn("plugin already installed", "plugin", plugin.Name)
	} else {
		e.installed[plugin.Name] = struct{}{}
		e.plugins = append(e.plugins, plugin.Name)
	}

	if plugin.Adapter != nil {
		if e.adapter == nil {
			e.adapter = plugin.Adapter
			e.logger.Debug("database adapter bound", "plugin", plugin.Name)
		} else {
			e.logger.Warn("database adapter already bound, dropping plugin adapter", "plugin", plugin.Name)
		}
	}

	e.actions = append(e.actions, plugin.Actions...)
	e.evaluators = append(e.evaluators, plugin.Evaluators...)
	e.providers = append(e.providers, plugin.Providers...)
	e.routes = append(e.routes, plugin.Routes...)

	e.mu.Unlock()

	for _, modelType := range sortedKeys(plugin.Models) {
		e.models.Register(modelType, plugin.Models[modelType])
	}

	for _, sub := range plugin.Events {
		e.events.On(sub.Event, sub.Handler)
	}

	if len(plugin.Services) > 0 {
		g, gctx := errgroup.WithContext(ctx)

		for _, d := range plugin.Services {
			d := d

			g.Go(func() error {
				return e.services.Register(gctx, e, d)
			})
		}

		if err := g.Wait(); err != nil {
			return fmt.Errorf("failed to register services of plugin %s: %w", plugin.Name, err)
		}
	}

	for _, w := range plugin.TaskWorkers {
		e.tasks.Register(w)
	}

	if err := util.ValidateConfig(plugin.Config, plugin.ConfigSchema); err != nil {
		return fmt.Errorf("invalid config for plugin %s: %w", plugin.Name, err)
	}

	if plugin.Init != nil {
		if err := plugin.Init(ctx, plugin.Config, e); err != nil {
			return &core.HandlerError{Kind: "plugin init", Name: plugin.Name, Err: err}
		}
	}

	e.logger.Info("plugin installed", "plugin", plugin.Name,
		"actions", len(plugin.Actions),
		"providers", len(plugin.Providers),
		"evaluators", len(plugin.Evaluators),
		"models", len(plugin.Models),
		"services", len(plugin.Services))

	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}
