package links_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/jrife/vault/transform"
	"github.com/jrife/vault/transform/links"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sample = `{"greeting":{"value":"héllo wörld","expiry":null},"n":{"value":[1,2,3,4,5,6,7,8],"expiry":1700000000000}}`

func mustCipher(t *testing.T, passphrase string) transform.Link {
	link, err := links.NewCipher(links.KeyFromPassphrase(passphrase, []byte("vault-test-salt")))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return link
}

func TestRoundTrip(t *testing.T) {
	testCases := map[string]transform.Link{
		"snappy":   links.Snappy(),
		"base64":   links.Base64(),
		"checksum": links.Checksum(),
		"cipher":   mustCipher(t, "correct horse battery staple"),
		"logger":   links.Logger(zap.NewNop()),
	}

	for name, link := range testCases {
		link := link

		t.Run(name, func(t *testing.T) {
			for _, text := range []string{"", "a", sample, strings.Repeat(sample, 100)} {
				forward, err := link.Forward(text)

				if err != nil {
					t.Fatalf("expected err to be nil, got %#v", err)
				}

				backward, err := link.Backward(forward)

				if err != nil {
					t.Fatalf("expected err to be nil, got %#v", err)
				}

				if backward != text {
					t.Fatalf("expected %q, got %q", text, backward)
				}
			}
		})
	}
}

func TestComposedPipeline(t *testing.T) {
	pipeline := transform.New(links.Checksum(), links.Snappy(), mustCipher(t, "passphrase"), links.Base64())
	applied, err := pipeline.Apply(sample)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if strings.Contains(applied, "greeting") {
		t.Fatalf("expected the stored text to be opaque, got %q", applied)
	}

	reversed, err := pipeline.Reverse(applied)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if reversed != sample {
		t.Fatalf("expected %q, got %q", sample, reversed)
	}
}

func TestSnappyCompresses(t *testing.T) {
	text := strings.Repeat(sample, 100)
	compressed, _ := links.Snappy().Forward(text)

	if len(compressed) >= len(text) {
		t.Fatalf("expected compression, got %d >= %d", len(compressed), len(text))
	}
}

func TestCipherRejectsForeignText(t *testing.T) {
	sealed, err := mustCipher(t, "one").Forward(sample)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := mustCipher(t, "two").Backward(sealed); err == nil {
		t.Fatalf("expected decryption with the wrong key to fail")
	}

	if _, err := mustCipher(t, "one").Backward("c2hvcnQ="); !errors.Is(err, links.ErrCiphertextTooShort) {
		t.Fatalf("expected ErrCiphertextTooShort, got %#v", err)
	}

	again, _ := mustCipher(t, "one").Forward(sample)

	if again == sealed {
		t.Fatalf("expected a fresh nonce per write")
	}

	if _, err := links.NewCipher([]byte("short")); err == nil {
		t.Fatalf("expected a short key to be rejected")
	}
}

func TestChecksumDetectsTampering(t *testing.T) {
	link := links.Checksum()
	stored, _ := link.Forward(sample)

	if _, err := link.Backward(stored + " "); !errors.Is(err, links.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %#v", err)
	}

	if _, err := link.Backward("garbage"); !errors.Is(err, links.ErrMissingChecksum) {
		t.Fatalf("expected ErrMissingChecksum, got %#v", err)
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	pipeline := transform.New(links.Logger(zap.New(core)))

	applied, _ := pipeline.Apply("abc")
	reversed, _ := pipeline.Reverse(applied)

	if applied != "abc" || reversed != "abc" {
		t.Fatalf("expected logging to leave text unchanged")
	}

	if logs.Len() != 2 {
		t.Fatalf("expected 2 log entries, got %d", logs.Len())
	}

	if logs.All()[1].ContextMap()["direction"] != "backward" {
		t.Fatalf("expected backward entry, got %#v", logs.All()[1].ContextMap())
	}
}
