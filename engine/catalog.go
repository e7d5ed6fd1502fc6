package engine

import (
	"sort"
	"sync"

	"github.com/hupe1980/plugmesh/core"
)

// PluginFactory builds a plugin on demand.
type PluginFactory func() core.Plugin

// Catalog resolves the plugin names listed by a character.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]PluginFactory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]PluginFactory)}
}

// Add registers factory under name, replacing any previous entry.
func (c *Catalog) Add(name string, factory PluginFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[name] = factory
}

// Lookup builds the plugin registered under name.
func (c *Catalog) Lookup(name string) (core.Plugin, bool) {
	c.mu.RLock()
	factory, ok := c.factories[name]
	c.mu.RUnlock()

	if !ok {
		return core.Plugin{}, false
	}

	return factory(), true
}

// Names returns the registered plugin names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
