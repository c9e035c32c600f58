package backend

import (
	"sync"

	"github.com/jrife/vault/storage/kv"
	"github.com/jrife/vault/utils/log"
	"go.uber.org/zap"
)

// Options configures a backend
type Options struct {
	Logger *zap.Logger
	// DisableFallback makes a backend that cannot bind its requested
	// store unavailable instead of falling back to the ephemeral store
	DisableFallback bool
}

// Backend is the uniform read/write/remove contract a vault uses
// to reach one physical store. The kind is resolved once when the
// backend is created.
type Backend struct {
	mu             sync.Mutex
	logger         *zap.Logger
	env            *Environment
	store          kv.Store
	requested      Kind
	kind           Kind
	fallbackReason FallbackReason
	unloadHandler  func()
	cancelUnload   func()
}

// New binds a backend to the store of the requested kind in env. If
// the store cannot be bound the backend falls back to the ephemeral
// store. Falling back because env has no such store is silent; falling
// back because the store could not be opened is logged.
func New(env *Environment, kind Kind, options Options) *Backend {
	backend := &Backend{
		logger:    log.Component(options.Logger, "backend").With(zap.Stringer("requested", kind)),
		env:       env,
		requested: kind,
		kind:      Unavailable,
	}

	if env == nil || kind == Unavailable {
		return backend
	}

	store, err := env.bind(kind)

	switch {
	case err == nil && store != nil:
		backend.store = store
		backend.kind = kind

		return backend
	case err == nil:
		backend.fallbackReason = FallbackEnvironment
		backend.logger.Debug("environment has no store of the requested kind")
	default:
		backend.fallbackReason = FallbackAccessDenied
		backend.logger.Warn("could not bind store", zap.Error(err))
	}

	if options.DisableFallback {
		return backend
	}

	if store, err = env.bindFallback(kind); err != nil {
		backend.logger.Warn("could not bind ephemeral store", zap.Error(err))

		return backend
	}

	backend.store = store
	backend.kind = Ephemeral
	backend.logger.Debug("falling back to ephemeral store", zap.Stringer("reason", backend.fallbackReason))

	return backend
}

// Kind returns the kind of store the backend is bound to
func (backend *Backend) Kind() Kind {
	return backend.kind
}

// Requested returns the kind of store that was requested
func (backend *Backend) Requested() Kind {
	return backend.requested
}

// FallbackReason explains why Kind differs from Requested
func (backend *Backend) FallbackReason() FallbackReason {
	return backend.fallbackReason
}

// Available reports whether the backend is bound to a usable store
func (backend *Backend) Available() bool {
	if backend.store == nil {
		return false
	}

	backend.env.mu.Lock()
	defer backend.env.mu.Unlock()

	return !backend.env.closed
}

// Read reads key. ok is false if the key does not exist.
func (backend *Backend) Read(key string) (value string, ok bool, err error) {
	if !backend.Available() {
		return "", false, ErrUnavailable
	}

	raw, err := backend.store.Get(key)

	if err != nil {
		return "", false, wrapError("could not read from store", err)
	}

	if raw == nil {
		return "", false, nil
	}

	return string(raw), true, nil
}

// Write writes value under key. It returns ErrQuotaExceeded if the
// store is full.
func (backend *Backend) Write(key string, value string) error {
	if !backend.Available() {
		return ErrUnavailable
	}

	return wrapError("could not write to store", backend.store.Put(key, []byte(value)))
}

// Remove removes key. Removing a missing key is not an error.
func (backend *Backend) Remove(key string) error {
	if !backend.Available() {
		return ErrUnavailable
	}

	return wrapError("could not remove from store", backend.store.Delete(key))
}

// Usage returns the number of bytes held by the underlying store
func (backend *Backend) Usage() (int64, error) {
	if !backend.Available() {
		return 0, ErrUnavailable
	}

	size, err := backend.store.Size()

	return size, wrapError("could not measure store", err)
}

// RegisterUnloadHandler arranges for fn to run when the process is about
// to exit. Only one handler is active at a time: registering while one is
// active has no effect. Ephemeral backends ignore the call since nothing
// they hold survives the process anyway.
func (backend *Backend) RegisterUnloadHandler(fn func()) {
	if backend.kind == Ephemeral || backend.kind == Unavailable {
		return
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()

	if backend.unloadHandler != nil {
		return
	}

	backend.unloadHandler = fn
	backend.cancelUnload = backend.env.Notifier().Subscribe(fn)
}

// Cleanup removes the unload handler, if any
func (backend *Backend) Cleanup() {
	if backend.kind == Ephemeral || backend.kind == Unavailable {
		return
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()

	if backend.cancelUnload != nil {
		backend.cancelUnload()
	}

	backend.cancelUnload = nil
	backend.unloadHandler = nil
}
