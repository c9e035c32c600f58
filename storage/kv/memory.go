package kv

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

const (
	// MemoryDriverName is the name of the in-process driver
	MemoryDriverName = "memory"
)

var _ Plugin = (*MemoryPlugin)(nil)

// MemoryPlugin creates in-process stores
type MemoryPlugin struct {
}

// Name implements Plugin.Name
func (plugin *MemoryPlugin) Name() string {
	return MemoryDriverName
}

// NewStore implements Plugin.NewStore. No options
// are recognized.
func (plugin *MemoryPlugin) NewStore(options PluginOptions) (Store, error) {
	return NewMemoryStore(), nil
}

// NewTempStore implements Plugin.NewTempStore
func (plugin *MemoryPlugin) NewTempStore() (Store, error) {
	return NewMemoryStore(), nil
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of
// the Store interface. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	m      *treemap.Map
	size   int64
	closed bool
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: treemap.NewWithStringComparator()}
}

// Get implements Store.Get
func (store *MemoryStore) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, ErrClosed
	}

	v, ok := store.m.Get(key)

	if !ok {
		return nil, nil
	}

	value := v.([]byte)
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Put implements Store.Put
func (store *MemoryStore) Put(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return ErrClosed
	}

	if old, ok := store.m.Get(key); ok {
		store.size -= entrySize(key, old.([]byte))
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	store.m.Put(key, stored)
	store.size += entrySize(key, stored)

	return nil
}

// Delete implements Store.Delete
func (store *MemoryStore) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return ErrClosed
	}

	if old, ok := store.m.Get(key); ok {
		store.size -= entrySize(key, old.([]byte))
		store.m.Remove(key)
	}

	return nil
}

// Size implements Store.Size
func (store *MemoryStore) Size() (int64, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return 0, ErrClosed
	}

	return store.size, nil
}

// Keys lists the keys in the store in ascending order
func (store *MemoryStore) Keys() []string {
	store.mu.RLock()
	defer store.mu.RUnlock()

	keys := make([]string, 0, store.m.Size())
	iter := store.m.Iterator()

	for iter.Next() {
		keys = append(keys, iter.Key().(string))
	}

	return keys
}

// Close implements Store.Close
func (store *MemoryStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true
	store.m.Clear()
	store.size = 0

	return nil
}
