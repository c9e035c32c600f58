package backend_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrife/vault/storage/backend"
	"github.com/jrife/vault/storage/kv"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func tempEnvironment(t *testing.T, config backend.EnvironmentConfig) *backend.Environment {
	if config.Notifier == nil {
		config.Notifier = backend.NewManualNotifier()
	}

	if config.SessionDir == "" {
		config.SessionDir = t.TempDir()
	}

	env := backend.NewEnvironment(config)

	t.Cleanup(func() { env.Close() })

	return env
}

func TestBind(t *testing.T) {
	testCases := map[string]struct {
		config         backend.EnvironmentConfig
		kind           backend.Kind
		expectedKind   backend.Kind
		expectedReason backend.FallbackReason
	}{
		"persistent": {
			config:       backend.EnvironmentConfig{PersistentPath: filepath.Join(os.TempDir(), "vault-backend-test-persistent.db")},
			kind:         backend.Persistent,
			expectedKind: backend.Persistent,
		},
		"persistent-missing": {
			kind:           backend.Persistent,
			expectedKind:   backend.Ephemeral,
			expectedReason: backend.FallbackEnvironment,
		},
		"persistent-denied": {
			config:         backend.EnvironmentConfig{PersistentPath: filepath.Join(os.TempDir(), "does", "not", "exist", "vault.db")},
			kind:           backend.Persistent,
			expectedKind:   backend.Ephemeral,
			expectedReason: backend.FallbackAccessDenied,
		},
		"session": {
			kind:         backend.Session,
			expectedKind: backend.Session,
		},
		"ephemeral": {
			kind:         backend.Ephemeral,
			expectedKind: backend.Ephemeral,
		},
		"unavailable": {
			kind:         backend.Unavailable,
			expectedKind: backend.Unavailable,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			if testCase.config.PersistentPath != "" {
				t.Cleanup(func() { os.Remove(testCase.config.PersistentPath) })
			}

			env := tempEnvironment(t, testCase.config)
			b := backend.New(env, testCase.kind, backend.Options{})

			if b.Kind() != testCase.expectedKind {
				t.Fatalf("expected kind %s, got %s", testCase.expectedKind, b.Kind())
			}

			if b.FallbackReason() != testCase.expectedReason {
				t.Fatalf("expected fallback reason %s, got %s", testCase.expectedReason, b.FallbackReason())
			}

			if b.Requested() != testCase.kind {
				t.Fatalf("expected requested kind %s, got %s", testCase.kind, b.Requested())
			}

			if b.Available() != (testCase.expectedKind != backend.Unavailable) {
				t.Fatalf("unexpected availability %t", b.Available())
			}
		})
	}
}

func TestFallbackLogging(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	env := tempEnvironment(t, backend.EnvironmentConfig{})
	backend.New(env, backend.Persistent, backend.Options{Logger: logger})

	if logs.Len() != 0 {
		t.Fatalf("expected a missing store to fall back silently, got %d warnings", logs.Len())
	}

	env = tempEnvironment(t, backend.EnvironmentConfig{PersistentPath: filepath.Join(t.TempDir(), "missing", "vault.db")})
	backend.New(env, backend.Persistent, backend.Options{Logger: logger})

	if logs.Len() != 1 {
		t.Fatalf("expected a store that could not be opened to be logged, got %d warnings", logs.Len())
	}
}

func TestDisableFallback(t *testing.T) {
	env := tempEnvironment(t, backend.EnvironmentConfig{})
	b := backend.New(env, backend.Persistent, backend.Options{DisableFallback: true})

	if b.Available() {
		t.Fatalf("expected backend to be unavailable")
	}

	if b.Kind() != backend.Unavailable {
		t.Fatalf("expected kind unavailable, got %s", b.Kind())
	}

	if _, _, err := b.Read("k"); !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %#v", err)
	}

	if err := b.Write("k", "v"); !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %#v", err)
	}

	if err := b.Remove("k"); !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %#v", err)
	}
}

func TestReadWriteRemove(t *testing.T) {
	for _, kind := range []backend.Kind{backend.Persistent, backend.Session, backend.Ephemeral} {
		kind := kind

		t.Run(kind.String(), func(t *testing.T) {
			env := tempEnvironment(t, backend.EnvironmentConfig{PersistentPath: filepath.Join(t.TempDir(), "vault.db")})
			b := backend.New(env, kind, backend.Options{})

			if _, ok, err := b.Read("k"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%t err=%#v", ok, err)
			}

			if err := b.Write("k", "v"); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			// A second backend of the same kind shares the store
			other := backend.New(env, kind, backend.Options{})

			if value, ok, err := other.Read("k"); err != nil || !ok || value != "v" {
				t.Fatalf("expected v, got %q ok=%t err=%#v", value, ok, err)
			}

			if err := b.Remove("k"); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if _, ok, _ := b.Read("k"); ok {
				t.Fatalf("expected key to be removed")
			}
		})
	}
}

func TestQuota(t *testing.T) {
	env := tempEnvironment(t, backend.EnvironmentConfig{PersistentStore: kv.NewMemoryStore(), QuotaBytes: 8})
	b := backend.New(env, backend.Persistent, backend.Options{})

	if err := b.Write("k", "1234567"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := b.Write("k", "12345678"); !errors.Is(err, backend.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %#v", err)
	}
}

func TestClosedEnvironment(t *testing.T) {
	env := tempEnvironment(t, backend.EnvironmentConfig{})
	b := backend.New(env, backend.Ephemeral, backend.Options{})

	if err := env.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if b.Available() {
		t.Fatalf("expected backend of a closed environment to be unavailable")
	}

	if err := b.Write("k", "v"); !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %#v", err)
	}

	if b := backend.New(env, backend.Ephemeral, backend.Options{}); b.Available() {
		t.Fatalf("expected binding to a closed environment to fail")
	}
}

func TestUnloadHandler(t *testing.T) {
	notifier := backend.NewManualNotifier()
	env := tempEnvironment(t, backend.EnvironmentConfig{Notifier: notifier})
	b := backend.New(env, backend.Session, backend.Options{})
	calls := 0

	b.RegisterUnloadHandler(func() { calls++ })
	b.RegisterUnloadHandler(func() { calls += 100 })

	if notifier.Subscribers() != 1 {
		t.Fatalf("expected exactly one subscription, got %d", notifier.Subscribers())
	}

	notifier.Notify()

	if calls != 1 {
		t.Fatalf("expected the first handler to run once, got %d", calls)
	}

	b.Cleanup()

	if notifier.Subscribers() != 0 {
		t.Fatalf("expected cleanup to cancel the subscription, got %d", notifier.Subscribers())
	}

	// A handler can be registered again after cleanup
	b.RegisterUnloadHandler(func() { calls++ })

	if notifier.Subscribers() != 1 {
		t.Fatalf("expected one subscription after re-registering, got %d", notifier.Subscribers())
	}
}

func TestEphemeralUnloadHandlerIsNoop(t *testing.T) {
	notifier := backend.NewManualNotifier()
	env := tempEnvironment(t, backend.EnvironmentConfig{Notifier: notifier})
	b := backend.New(env, backend.Ephemeral, backend.Options{})

	b.RegisterUnloadHandler(func() {})

	if notifier.Subscribers() != 0 {
		t.Fatalf("expected ephemeral backends not to subscribe, got %d", notifier.Subscribers())
	}

	b.Cleanup()
}

func TestParseKind(t *testing.T) {
	for _, kind := range []backend.Kind{backend.Persistent, backend.Session, backend.Ephemeral, backend.Unavailable} {
		parsed, err := backend.ParseKind(kind.String())

		if err != nil || parsed != kind {
			t.Fatalf("expected %s, got %s (%v)", kind, parsed, err)
		}
	}

	if _, err := backend.ParseKind("cloud"); err == nil {
		t.Fatalf("expected an error for an unknown kind")
	}
}

func TestFallbackStoresArePerKind(t *testing.T) {
	env := tempEnvironment(t, backend.EnvironmentConfig{})
	persistent := backend.New(env, backend.Persistent, backend.Options{})
	ephemeral := backend.New(env, backend.Ephemeral, backend.Options{})

	if persistent.Kind() != backend.Ephemeral {
		t.Fatalf("expected persistent to fall back, got %s", persistent.Kind())
	}

	if err := persistent.Write("k", "persistent"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, ok, _ := ephemeral.Read("k"); ok {
		t.Fatalf("expected a fallen back backend not to share the ephemeral store")
	}

	// backends falling back from the same kind still share
	again := backend.New(env, backend.Persistent, backend.Options{})

	if value, ok, err := again.Read("k"); err != nil || !ok || value != "persistent" {
		t.Fatalf("expected persistent, got %q ok=%t err=%#v", value, ok, err)
	}
}
