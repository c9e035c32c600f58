package kv

import (
	"errors"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
	// ErrEmptyKey indicates that a caller passed an empty key
	ErrEmptyKey = errors.New("key must not be empty")
	// ErrQuotaExceeded indicates that a write would push the store
	// past its capacity. The store is unchanged when this is returned.
	ErrQuotaExceeded = errors.New("store quota exceeded")
)

// PluginOptions are driver specific options passed
// to Plugin.NewStore
type PluginOptions map[string]interface{}

// Plugin represents a kv storage plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// NewStore returns an instance of the plugin store
	NewStore(options PluginOptions) (Store, error)
	// NewTempStore returns an instance of the plugin store
	// initialized with some sane defaults. It is meant for
	// tests and session scoped storage that need an initialized
	// instance of the plugin's store without knowing how to
	// initialize it. Temp stores discard their contents on Close.
	NewTempStore() (Store, error)
}

// Store is a synchronous string-keyed store
type Store interface {
	// Get gets a key. It must return nil and no error if the
	// key does not exist. It must return ErrEmptyKey if the
	// key is empty and ErrClosed if the store was closed.
	Get(key string) ([]byte, error)
	// Put puts a key, overwriting any previous value. It must
	// return ErrEmptyKey if the key is empty.
	Put(key string, value []byte) error
	// Delete deletes a key. If the key doesn't exist it has no effect
	// and returns nil.
	Delete(key string) error
	// Size returns the number of bytes held by the store, counted as
	// the sum of the lengths of every key and value.
	Size() (int64, error)
	// Close closes the store. Calls made after Close returns
	// must return ErrClosed.
	Close() error
}

func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
