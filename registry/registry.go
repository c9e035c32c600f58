// Package registry hands out one vault per kind and key so that every
// caller asking for the same vault shares its dirty buffer and timer.
package registry

import (
	"sync"

	"github.com/jrife/vault/storage/backend"
	"github.com/jrife/vault/utils/log"
	"github.com/jrife/vault/vault"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config configures a registry
type Config struct {
	Logger *zap.Logger
}

type entry struct {
	engine *vault.Engine
	config vault.Config
}

// Registry maps vault identities to vaults
type Registry struct {
	mu      sync.Mutex
	logger  *zap.Logger
	engines map[string]entry
}

// New creates an empty registry
func New(config Config) *Registry {
	return &Registry{
		logger:  log.Component(config.Logger, "registry"),
		engines: map[string]entry{},
	}
}

// GetOrCreate returns the vault for kind and key, creating it from
// config the first time. config.Kind and config.Key are overridden by
// kind and key. Later calls get the existing vault even if their
// config differs; the difference is logged.
func (registry *Registry) GetOrCreate(kind backend.Kind, key string, config vault.Config) *vault.Engine {
	config.Kind = kind
	config.Key = key

	if config.Logger == nil {
		config.Logger = registry.logger
	}

	identity := vault.Identity(kind, key)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if existing, ok := registry.engines[identity]; ok {
		if conflicts := existing.config.Conflicts(config); len(conflicts) > 0 {
			registry.logger.Warn("vault already exists with a different configuration, keeping the existing one",
				zap.String("vault", identity),
				zap.Strings("conflicts", conflicts))
		}

		return existing.engine
	}

	engine := vault.New(config)
	registry.engines[identity] = entry{engine: engine, config: config}
	registry.logger.Debug("created vault", zap.String("vault", identity), zap.Stringer("kind", engine.Kind()))

	return engine
}

// Get returns the vault for kind and key if one was created
func (registry *Registry) Get(kind backend.Kind, key string) (*vault.Engine, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	existing, ok := registry.engines[vault.Identity(kind, key)]

	return existing.engine, ok
}

// Len returns the number of live vaults
func (registry *Registry) Len() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	return len(registry.engines)
}

// Dispose flushes and forgets the vault for kind and key. It returns
// false if there is no such vault. The vault's data is kept. Lookups
// for the same vault wait until the flush is done.
func (registry *Registry) Dispose(kind backend.Kind, key string) (bool, error) {
	identity := vault.Identity(kind, key)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	existing, ok := registry.engines[identity]

	if !ok {
		return false, nil
	}

	delete(registry.engines, identity)

	return true, existing.engine.Dispose()
}

// DisposeAll flushes and forgets every vault. Every vault is disposed
// even if some fail.
func (registry *Registry) DisposeAll() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	engines := registry.engines
	registry.engines = map[string]entry{}

	var err error

	for identity, existing := range engines {
		if disposeErr := existing.engine.Dispose(); disposeErr != nil {
			registry.logger.Warn("could not dispose vault", zap.String("vault", identity), zap.Error(disposeErr))
			err = multierr.Append(err, disposeErr)
		}
	}

	return err
}
