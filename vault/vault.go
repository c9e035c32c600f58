package vault

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrife/vault/storage/backend"
	"github.com/jrife/vault/transform"
	"github.com/jrife/vault/utils/log"
	"github.com/jrife/vault/utils/uuid"
	"go.uber.org/zap"
)

// Engine is a vault. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	config   Config
	identity string
	backend  *backend.Backend
	pipeline *transform.Pipeline
	clock    clock.Clock
	logger   *zap.Logger
	// dirty holds writes that have not been persisted yet.
	// nil means the backend is current.
	dirty RecordSet
	timer *clock.Timer
	// generation invalidates timer callbacks that
	// lost a race with Stop
	generation uint64
	cleaningUp bool
}

// New creates a vault and binds its backend. Nothing is read until
// the first operation. Unless the vault is ephemeral, buffered writes
// are flushed when the process is told to exit.
func New(config Config) *Engine {
	config = config.withDefaults()
	identity := Identity(config.Kind, config.Key)
	logger := log.Component(config.Logger, "vault").With(zap.String("vault", identity), zap.String("instance", uuid.ShortUUID()))

	engine := &Engine{
		config:   config,
		identity: identity,
		pipeline: config.Pipeline,
		clock:    config.Clock,
		logger:   logger,
		backend: backend.New(config.Environment, config.Kind, backend.Options{
			Logger:          logger,
			DisableFallback: config.DisableFallback,
		}),
	}

	engine.backend.RegisterUnloadHandler(engine.unload)

	return engine
}

// Identity returns "<kind>:<key>" using the requested kind
func (engine *Engine) Identity() string {
	return engine.identity
}

// Kind returns the kind of store the vault is bound to
func (engine *Engine) Kind() backend.Kind {
	return engine.backend.Kind()
}

// Available reports whether the vault can store anything
func (engine *Engine) Available() bool {
	return engine.backend.Available()
}

// MaxSizeBytes returns the soft size limit
func (engine *Engine) MaxSizeBytes() int {
	return engine.config.MaxSizeBytes
}

// Config returns the effective configuration
func (engine *Engine) Config() Config {
	return engine.config
}

// SetItem stores value under key with no expiry
func (engine *Engine) SetItem(key string, value interface{}) error {
	return engine.set(key, value, nil)
}

// SetItemWithTTL stores value under key so that it expires after ttl.
// A zero ttl removes key.
func (engine *Engine) SetItemWithTTL(key string, value interface{}, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("%w: ttl must not be negative, got %s", ErrInvalidTTL, ttl)
	}

	if ttl == 0 {
		_, err := engine.RemoveItem(key)

		return err
	}

	return engine.set(key, value, &ttl)
}

func (engine *Engine) set(key string, value interface{}, ttl *time.Duration) error {
	if err := engine.validate(key); err != nil {
		return err
	}

	raw, err := encodeValue(value)

	if err != nil {
		return err
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	record := Record{Value: raw}

	if ttl != nil {
		record.Expiry = expiryAt(engine.now() + ceilMillis(*ttl))
	}

	records := engine.load()
	records[key] = record

	return engine.save(records)
}

// GetItem decodes the value stored under key into v. It returns false
// if key is missing or expired. v may be nil to only test presence.
func (engine *Engine) GetItem(key string, v interface{}) (bool, error) {
	if err := engine.validate(key); err != nil {
		return false, err
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	record, ok := engine.live(key)

	if !ok {
		return false, nil
	}

	if v == nil {
		return true, nil
	}

	if err := json.Unmarshal(record.Value, v); err != nil {
		return true, fmt.Errorf("could not decode value of %q: %w", key, err)
	}

	return true, nil
}

// UpdateItem replaces the value stored under key and keeps its expiry.
// It returns false and stores nothing if key is missing or expired.
func (engine *Engine) UpdateItem(key string, value interface{}) (bool, error) {
	if err := engine.validate(key); err != nil {
		return false, err
	}

	raw, err := encodeValue(value)

	if err != nil {
		return false, err
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	records := engine.load()
	record, ok := engine.liveIn(records, key)

	if !ok {
		return false, nil
	}

	record.Value = raw
	records[key] = record

	return true, engine.save(records)
}

// ExtendTTL pushes the expiry of key back by delta. An item with no
// expiry gets one delta from now.
func (engine *Engine) ExtendTTL(key string, delta time.Duration) (bool, error) {
	if err := engine.validate(key); err != nil {
		return false, err
	}

	if delta <= 0 {
		return false, fmt.Errorf("%w: extension must be positive, got %s", ErrInvalidTTL, delta)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	records := engine.load()
	record, ok := engine.liveIn(records, key)

	if !ok {
		return false, nil
	}

	if record.Expiry == nil {
		record.Expiry = expiryAt(engine.now() + ceilMillis(delta))
	} else {
		record.Expiry = expiryAt(*record.Expiry + ceilMillis(delta))
	}

	records[key] = record

	return true, engine.save(records)
}

// RemoveItem removes key. It returns false if key was not stored.
func (engine *Engine) RemoveItem(key string) (bool, error) {
	if err := engine.validate(key); err != nil {
		return false, err
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	records := engine.load()

	if _, ok := records[key]; !ok {
		return false, nil
	}

	delete(records, key)

	return true, engine.save(records)
}

// HasItem reports whether key is stored and not expired
func (engine *Engine) HasItem(key string) (bool, error) {
	if err := engine.validate(key); err != nil {
		return false, err
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	_, ok := engine.live(key)

	return ok, nil
}

// GetRemainingTTL returns how long key has left. ok is false if key is
// missing, expired or never expires.
func (engine *Engine) GetRemainingTTL(key string) (remaining time.Duration, ok bool, err error) {
	if err := engine.validate(key); err != nil {
		return 0, false, err
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	record, ok := engine.live(key)

	if !ok || record.Expiry == nil {
		return 0, false, nil
	}

	return time.Duration(*record.Expiry-engine.clock.Now().UnixMilli()) * time.Millisecond, true, nil
}

// CleanupExpiredItems removes every expired item and persists the
// result immediately. It returns the number of items removed.
func (engine *Engine) CleanupExpiredItems() (int, error) {
	if !engine.Available() {
		return 0, ErrUnavailable
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	records := engine.load()
	removed := records.removeExpired(engine.now())

	if removed == 0 {
		return 0, nil
	}

	engine.logger.Debug("removed expired items", zap.Int("count", removed))

	return removed, engine.commit(records)
}

// GetAllKeys returns the keys of every live item in order
func (engine *Engine) GetAllKeys() ([]string, error) {
	if !engine.Available() {
		return nil, ErrUnavailable
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	now := engine.now()
	keys := []string{}

	for key, record := range engine.load() {
		if !record.expired(now) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// GetAll returns the encoded value of every live item
func (engine *Engine) GetAll() (map[string]json.RawMessage, error) {
	if !engine.Available() {
		return nil, ErrUnavailable
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	now := engine.now()
	values := map[string]json.RawMessage{}

	for key, record := range engine.load() {
		if !record.expired(now) {
			values[key] = record.Value
		}
	}

	return values, nil
}

// Records returns a copy of the record set, expired records included
func (engine *Engine) Records() (RecordSet, error) {
	if !engine.Available() {
		return nil, ErrUnavailable
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	return engine.load(), nil
}

// GetCurrentSize returns the length of the serialized record set
// before transformation. It returns 0 if it cannot be measured.
func (engine *Engine) GetCurrentSize() int {
	if !engine.Available() {
		return 0
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	encoded, err := json.Marshal(engine.load())

	if err != nil {
		return 0
	}

	return len(encoded)
}

// Clear drops pending writes and removes the record set
func (engine *Engine) Clear() error {
	if !engine.Available() {
		return ErrUnavailable
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()

	engine.cancelTimer()
	engine.dirty = nil

	return wrapError("could not clear record set", engine.backend.Remove(engine.config.Key))
}

// Dispose flushes pending writes and unregisters the unload handler.
// Disposing twice is harmless.
func (engine *Engine) Dispose() error {
	err := engine.Flush()
	engine.backend.Cleanup()

	return err
}

func (engine *Engine) unload() {
	if err := engine.Flush(); err != nil {
		engine.logger.Warn("could not flush on unload", zap.Error(err))
	}
}

func (engine *Engine) validate(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if !engine.Available() {
		return ErrUnavailable
	}

	return nil
}

func (engine *Engine) now() int64 {
	return engine.clock.Now().UnixMilli()
}

// live returns the record under key unless it is missing or expired.
// Expired records are purged.
func (engine *Engine) live(key string) (Record, bool) {
	return engine.liveIn(engine.load(), key)
}

func (engine *Engine) liveIn(records RecordSet, key string) (Record, bool) {
	record, ok := records[key]

	if !ok {
		return Record{}, false
	}

	if !record.expired(engine.now()) {
		return record, true
	}

	delete(records, key)

	if err := engine.save(records); err != nil {
		engine.logger.Warn("could not purge expired item", zap.String("key", key), zap.Error(err))
	}

	return Record{}, false
}
