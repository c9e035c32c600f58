package kv

import (
	"sync"
)

// WithQuota wraps store so that a Put whose result would make the store
// hold more than quotaBytes bytes fails with ErrQuotaExceeded. A
// quotaBytes <= 0 disables the limit and returns store unchanged.
func WithQuota(store Store, quotaBytes int64) Store {
	if quotaBytes <= 0 {
		return store
	}

	return &quotaStore{Store: store, quota: quotaBytes}
}

type quotaStore struct {
	Store
	// mu serializes size checks with the writes they guard
	mu    sync.Mutex
	quota int64
}

// Put implements Store.Put
func (store *quotaStore) Put(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	size, err := store.Store.Size()

	if err != nil {
		return err
	}

	old, err := store.Store.Get(key)

	if err != nil {
		return err
	}

	if old != nil {
		size -= entrySize(key, old)
	}

	if size+entrySize(key, value) > store.quota {
		return ErrQuotaExceeded
	}

	return store.Store.Put(key, value)
}

// Delete implements Store.Delete
func (store *quotaStore) Delete(key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.Store.Delete(key)
}

// Quota returns the configured capacity of a store wrapped by
// WithQuota. ok is false if the store has no quota.
func Quota(store Store) (quotaBytes int64, ok bool) {
	qs, ok := store.(*quotaStore)

	if !ok {
		return 0, false
	}

	return qs.quota, true
}
