// Package plugins collects the kv drivers the vault can open stores with.
package plugins

import (
	"fmt"

	"github.com/jrife/vault/storage/kv"
	"github.com/jrife/vault/storage/kv/plugins/bbolt"
)

// KVPluginManager finds kv drivers by name
type KVPluginManager struct {
	plugins []kv.Plugin
	byName  map[string]kv.Plugin
}

// NewKVPluginManager returns a KVPluginManager that knows
// the memory driver and every bbolt driver
func NewKVPluginManager() *KVPluginManager {
	pluginManager := &KVPluginManager{byName: map[string]kv.Plugin{}}

	for _, plugin := range append([]kv.Plugin{&kv.MemoryPlugin{}}, bbolt.Plugins()...) {
		pluginManager.plugins = append(pluginManager.plugins, plugin)
		pluginManager.byName[plugin.Name()] = plugin
	}

	return pluginManager
}

// Plugin returns the named driver or nil
func (pluginManager *KVPluginManager) Plugin(name string) kv.Plugin {
	return pluginManager.byName[name]
}

// Plugins lists every driver in registration order
func (pluginManager *KVPluginManager) Plugins() []kv.Plugin {
	return pluginManager.plugins
}

// MakeStore opens a store with the named driver
func (pluginManager *KVPluginManager) MakeStore(driver string, options kv.PluginOptions) (kv.Store, error) {
	plugin := pluginManager.Plugin(driver)

	if plugin == nil {
		return nil, fmt.Errorf("%s is not a valid driver", driver)
	}

	return plugin.NewStore(options)
}
