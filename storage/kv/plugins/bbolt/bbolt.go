package bbolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrife/vault/storage/kv"
	"github.com/jrife/vault/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	// DriverName is the name of the bbolt driver
	DriverName = "bbolt"
)

var (
	rootBucket = []byte{0}
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BBoltPlugin{},
	}
}

var _ kv.Plugin = (*BBoltPlugin)(nil)

// BBoltPlugin creates stores backed by bbolt database files
type BBoltPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore. It recognizes the options
// "path" (string, required), "timeout" (time.Duration, optional) and
// "temporary" (bool, optional).
func (plugin *BBoltPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config BBoltStoreConfig

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	if timeout, ok := options["timeout"]; ok {
		if timeoutDuration, ok := timeout.(time.Duration); !ok {
			return nil, fmt.Errorf("\"timeout\" must be a time.Duration")
		} else {
			config.Timeout = timeoutDuration
		}
	}

	if temporary, ok := options["temporary"]; ok {
		if temporaryBool, ok := temporary.(bool); !ok {
			return nil, fmt.Errorf("\"temporary\" must be a bool")
		} else {
			config.Temporary = temporaryBool
		}
	}

	return New(config)
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *BBoltPlugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path":      TempPath(os.TempDir()),
		"temporary": true,
	})
}

// TempPath returns a unique database file path inside dir
func TempPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("bbolt-%s.db", uuid.MustUUID()))
}

// BBoltStoreConfig configures a bbolt store
type BBoltStoreConfig struct {
	// Path is the database file
	Path string
	// Timeout bounds how long New waits for the file lock.
	// Zero waits forever.
	Timeout time.Duration
	// Temporary stores remove their file on Close
	Temporary bool
}

var _ kv.Store = (*BBoltStore)(nil)

// BBoltStore is a kv.Store that keeps every key in
// a single bucket of a bbolt database
type BBoltStore struct {
	mu        sync.RWMutex
	db        *bolt.DB
	temporary bool
	closed    bool
}

// New opens or creates the bbolt database at config.Path
func New(config BBoltStoreConfig) (*BBoltStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("bbolt store path must not be empty")
	}

	db, err := bolt.Open(config.Path, 0600, &bolt.Options{Timeout: config.Timeout})

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %w", config.Path, err)
	}

	if err := db.Update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists(rootBucket)

		return err
	}); err != nil {
		db.Close()

		return nil, fmt.Errorf("could not ensure root bucket exists: %w", err)
	}

	return &BBoltStore{db: db, temporary: config.Temporary}, nil
}

// Path returns the database file path
func (store *BBoltStore) Path() string {
	return store.db.Path()
}

// Get implements kv.Store.Get
func (store *BBoltStore) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, kv.ErrEmptyKey
	}

	var value []byte

	err := store.view(func(bucket *bolt.Bucket) error {
		if v := bucket.Get([]byte(key)); v != nil {
			// v is only valid for the life of the transaction
			value = make([]byte, len(v))
			copy(value, v)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return value, nil
}

// Put implements kv.Store.Put
func (store *BBoltStore) Put(key string, value []byte) error {
	if key == "" {
		return kv.ErrEmptyKey
	}

	if value == nil {
		value = []byte{}
	}

	return store.update(func(bucket *bolt.Bucket) error {
		return bucket.Put([]byte(key), value)
	})
}

// Delete implements kv.Store.Delete
func (store *BBoltStore) Delete(key string) error {
	if key == "" {
		return kv.ErrEmptyKey
	}

	return store.update(func(bucket *bolt.Bucket) error {
		return bucket.Delete([]byte(key))
	})
}

// Size implements kv.Store.Size
func (store *BBoltStore) Size() (int64, error) {
	var size int64

	err := store.view(func(bucket *bolt.Bucket) error {
		return bucket.ForEach(func(key []byte, value []byte) error {
			size += int64(len(key) + len(value))

			return nil
		})
	})

	if err != nil {
		return 0, err
	}

	return size, nil
}

// Close implements kv.Store.Close. Temporary stores
// also remove their database file.
func (store *BBoltStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil
	}

	store.closed = true
	path := store.db.Path()

	if err := store.db.Close(); err != nil {
		return fmt.Errorf("could not close bbolt store: %w", err)
	}

	if store.temporary {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("could not remove path %s: %w", path, err)
		}
	}

	return nil
}

func (store *BBoltStore) view(fn func(bucket *bolt.Bucket) error) error {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return kv.ErrClosed
	}

	return wrapError(store.db.View(func(txn *bolt.Tx) error {
		return fn(txn.Bucket(rootBucket))
	}))
}

func (store *BBoltStore) update(fn func(bucket *bolt.Bucket) error) error {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return kv.ErrClosed
	}

	return wrapError(store.db.Update(func(txn *bolt.Tx) error {
		return fn(txn.Bucket(rootBucket))
	}))
}

func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return kv.ErrClosed
	}

	return fmt.Errorf("bbolt: %w", err)
}
