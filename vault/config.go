package vault

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrife/vault/storage/backend"
	"github.com/jrife/vault/transform"
	"go.uber.org/zap"
)

const (
	// DefaultKey is the backend key a vault stores its record set under
	DefaultKey = "vault-store"
	// DefaultMaxSizeBytes is the serialized size above which writes are
	// logged as approaching the backend quota
	DefaultMaxSizeBytes = 4000000
	// DefaultMaxItemsInMemory caps the number of records an ephemeral vault keeps
	DefaultMaxItemsInMemory = 1000
	// DefaultDebounce is the write coalescing delay used by DefaultConfig
	DefaultDebounce = 100 * time.Millisecond
)

// Config configures a vault
type Config struct {
	// Kind is the backend kind requested. A vault whose backend
	// cannot be bound falls back to Ephemeral.
	Kind backend.Kind
	// Key is the backend key holding the record set
	Key string
	// MaxSizeBytes is a soft limit. Writes that exceed it succeed
	// but are logged.
	MaxSizeBytes int
	// MaxItemsInMemory caps ephemeral vaults. Records expiring
	// soonest are evicted first.
	MaxItemsInMemory int
	// Debounce is how long writes are coalesced before the record
	// set is persisted. The zero value writes through, so a Config
	// built by hand does not debounce. DefaultConfig sets DefaultDebounce.
	Debounce time.Duration
	// Pipeline transforms the serialized record set before it
	// reaches the backend.
	Pipeline *transform.Pipeline
	// Links builds the pipeline when Pipeline is nil
	Links []transform.Link
	// DisableFallback makes a vault whose backend cannot be bound
	// unavailable instead of ephemeral
	DisableFallback bool
	Logger          *zap.Logger
	Clock           clock.Clock
	// Environment defaults to backend.DefaultEnvironment()
	Environment *backend.Environment
}

// DefaultConfig returns a persistent vault configuration
// with every default filled in
func DefaultConfig() Config {
	return Config{
		Kind:             backend.Persistent,
		Key:              DefaultKey,
		MaxSizeBytes:     DefaultMaxSizeBytes,
		MaxItemsInMemory: DefaultMaxItemsInMemory,
		Debounce:         DefaultDebounce,
	}
}

func (config Config) withDefaults() Config {
	if config.Key == "" {
		config.Key = DefaultKey
	}

	if config.MaxSizeBytes <= 0 {
		config.MaxSizeBytes = DefaultMaxSizeBytes
	}

	if config.MaxItemsInMemory <= 0 {
		config.MaxItemsInMemory = DefaultMaxItemsInMemory
	}

	if config.Debounce < 0 {
		config.Debounce = 0
	}

	if config.Pipeline == nil {
		config.Pipeline = transform.New(config.Links...)
	}

	if config.Clock == nil {
		config.Clock = clock.New()
	}

	if config.Environment == nil {
		config.Environment = backend.DefaultEnvironment()
	}

	return config
}

// Conflicts lists the settings that differ between two configurations
// for the same vault. Loggers and clocks are not compared.
func (config Config) Conflicts(other Config) []string {
	a, b := config.withDefaults(), other.withDefaults()
	conflicts := []string{}

	if a.Kind != b.Kind {
		conflicts = append(conflicts, "kind")
	}

	if a.Key != b.Key {
		conflicts = append(conflicts, "key")
	}

	if a.MaxSizeBytes != b.MaxSizeBytes {
		conflicts = append(conflicts, "max_size_bytes")
	}

	if a.MaxItemsInMemory != b.MaxItemsInMemory {
		conflicts = append(conflicts, "max_items_in_memory")
	}

	if a.Debounce != b.Debounce {
		conflicts = append(conflicts, "debounce")
	}

	if a.Pipeline.Len() != b.Pipeline.Len() || (config.Pipeline != nil && other.Pipeline != nil && config.Pipeline != other.Pipeline) {
		conflicts = append(conflicts, "pipeline")
	}

	if a.DisableFallback != b.DisableFallback {
		conflicts = append(conflicts, "disable_fallback")
	}

	if a.Environment != b.Environment {
		conflicts = append(conflicts, "environment")
	}

	return conflicts
}

// Identity names the vault a kind and key pair refers to
func Identity(kind backend.Kind, key string) string {
	if key == "" {
		key = DefaultKey
	}

	return kind.String() + ":" + key
}
