package backend

import (
	"os"
	"sync"
	"time"

	"github.com/jrife/vault/storage/kv"
	"github.com/jrife/vault/storage/kv/plugins"
	"github.com/jrife/vault/storage/kv/plugins/bbolt"
	"github.com/jrife/vault/utils/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// DefaultQuotaBytes is the capacity of persistent and session stores
	DefaultQuotaBytes = 5 * 1024 * 1024
	// DefaultOpenTimeout bounds how long binding a file backed store waits
	// for another process to release it
	DefaultOpenTimeout = time.Second
	// PersistentPathEnv names the process environment variable that
	// DefaultEnvironment reads its persistent store path from
	PersistentPathEnv = "VAULT_PERSISTENT_PATH"
)

// EnvironmentConfig describes the host stores
type EnvironmentConfig struct {
	// PersistentPath is the bbolt file backing persistent backends.
	// Empty means the environment has no persistent store.
	PersistentPath string
	// SessionDir is where the session store file is created.
	// Defaults to os.TempDir().
	SessionDir string
	// QuotaBytes caps the persistent and session stores.
	// Zero means DefaultQuotaBytes, negative means unlimited.
	QuotaBytes int64
	// MemoryQuotaBytes caps the ephemeral store. Zero or negative
	// means unlimited.
	MemoryQuotaBytes int64
	// OpenTimeout bounds file lock waits. Zero means DefaultOpenTimeout.
	OpenTimeout time.Duration
	// Notifier delivers unload notifications. Defaults to a
	// SignalNotifier.
	Notifier Notifier
	// PersistentStore and SessionStore replace the file backed stores.
	// They are still subject to QuotaBytes.
	PersistentStore kv.Store
	SessionStore    kv.Store
	Logger          *zap.Logger
}

// Environment is the host a backend binds to. It owns the physical
// stores and shares them between every backend created from it so that
// backends bound to the same kind observe each other's writes.
type Environment struct {
	mu            sync.Mutex
	config        EnvironmentConfig
	logger        *zap.Logger
	pluginManager *plugins.KVPluginManager
	persistent    kv.Store
	session       kv.Store
	memory        kv.Store
	// fallback holds one memory store per requested kind for backends
	// that could not bind their own store
	fallback map[Kind]kv.Store
	closed   bool
}

// NewEnvironment creates an environment. Stores are opened lazily the
// first time a backend binds to them.
func NewEnvironment(config EnvironmentConfig) *Environment {
	if config.SessionDir == "" {
		config.SessionDir = os.TempDir()
	}

	if config.QuotaBytes == 0 {
		config.QuotaBytes = DefaultQuotaBytes
	}

	if config.OpenTimeout == 0 {
		config.OpenTimeout = DefaultOpenTimeout
	}

	if config.Notifier == nil {
		config.Notifier = NewSignalNotifier()
	}

	return &Environment{
		config:        config,
		logger:        log.Component(config.Logger, "environment"),
		pluginManager: plugins.NewKVPluginManager(),
		memory:        kv.WithQuota(kv.NewMemoryStore(), config.MemoryQuotaBytes),
		fallback:      map[Kind]kv.Store{},
	}
}

var (
	defaultEnvironment     *Environment
	defaultEnvironmentOnce sync.Once
)

// DefaultEnvironment returns the process wide environment. Its persistent
// store path is read from the VAULT_PERSISTENT_PATH environment variable
// the first time it is called.
func DefaultEnvironment() *Environment {
	defaultEnvironmentOnce.Do(func() {
		defaultEnvironment = NewEnvironment(EnvironmentConfig{
			PersistentPath: os.Getenv(PersistentPathEnv),
		})
	})

	return defaultEnvironment
}

// Notifier returns the environment's unload notifier
func (env *Environment) Notifier() Notifier {
	return env.config.Notifier
}

// bind returns the store for kind. A nil store with a nil error means the
// environment does not provide that kind of store.
func (env *Environment) bind(kind Kind) (kv.Store, error) {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.closed {
		return nil, ErrClosed
	}

	switch kind {
	case Ephemeral:
		return env.memory, nil
	case Persistent:
		if env.persistent != nil {
			return env.persistent, nil
		}

		store := env.config.PersistentStore

		if store == nil {
			if env.config.PersistentPath == "" {
				return nil, nil
			}

			var err error
			store, err = env.pluginManager.MakeStore(bbolt.DriverName, kv.PluginOptions{
				"path":    env.config.PersistentPath,
				"timeout": env.config.OpenTimeout,
			})

			if err != nil {
				return nil, err
			}
		}

		env.persistent = kv.WithQuota(store, env.config.QuotaBytes)
		env.logger.Debug("bound persistent store", zap.String("path", env.config.PersistentPath))

		return env.persistent, nil
	case Session:
		if env.session != nil {
			return env.session, nil
		}

		store := env.config.SessionStore

		if store == nil {
			var err error
			path := bbolt.TempPath(env.config.SessionDir)
			store, err = env.pluginManager.MakeStore(bbolt.DriverName, kv.PluginOptions{
				"path":      path,
				"timeout":   env.config.OpenTimeout,
				"temporary": true,
			})

			if err != nil {
				return nil, err
			}

			env.logger.Debug("bound session store", zap.String("path", path))
		}

		env.session = kv.WithQuota(store, env.config.QuotaBytes)

		return env.session, nil
	}

	return nil, nil
}

// bindFallback returns the memory store standing in for requested.
// Ephemeral requests get the shared memory store. Every other kind gets
// its own so that a fallen back backend never shares keys with a real
// ephemeral one.
func (env *Environment) bindFallback(requested Kind) (kv.Store, error) {
	if requested == Ephemeral {
		return env.bind(Ephemeral)
	}

	env.mu.Lock()
	defer env.mu.Unlock()

	if env.closed {
		return nil, ErrClosed
	}

	store, ok := env.fallback[requested]

	if !ok {
		store = kv.WithQuota(kv.NewMemoryStore(), env.config.MemoryQuotaBytes)
		env.fallback[requested] = store
	}

	return store, nil
}

// Close closes every store opened by the environment. Session stores
// are discarded. Backends bound to a closed environment become unavailable.
func (env *Environment) Close() error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if env.closed {
		return nil
	}

	env.closed = true

	var err error

	stores := []kv.Store{env.persistent, env.session, env.memory}

	for _, store := range env.fallback {
		stores = append(stores, store)
	}

	for _, store := range stores {
		if store != nil {
			err = multierr.Append(err, store.Close())
		}
	}

	return err
}
