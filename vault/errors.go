package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jrife/vault/storage/backend"
)

var (
	// ErrInvalidKey indicates that a key is empty, only whitespace or reserved
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidTTL indicates that a TTL or TTL extension is out of range
	ErrInvalidTTL = errors.New("invalid ttl")
	// ErrUnavailable indicates that the vault's backend is not bound to a store
	ErrUnavailable = errors.New("vault storage is unavailable")
	// ErrQuotaExceeded indicates that the backend stayed full even after
	// expired items were removed
	ErrQuotaExceeded = errors.New("vault storage quota exceeded")
	// ErrCircularReference indicates that a value refers to itself and cannot
	// be serialized. Serialize such values before storing them.
	ErrCircularReference = errors.New("value contains a circular reference")
	// ErrUnserializable indicates that a value cannot be encoded as JSON
	ErrUnserializable = errors.New("value cannot be serialized")
	// ErrCorrupted is logged when a persisted record set is discarded. It is
	// never returned to callers.
	ErrCorrupted = errors.New("persisted record set is corrupted")
)

func wrapError(wrap string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backend.ErrUnavailable):
		return ErrUnavailable
	case errors.Is(err, backend.ErrQuotaExceeded):
		return ErrQuotaExceeded
	}

	return fmt.Errorf("%s: %w", wrap, err)
}

func encodeError(err error) error {
	var unsupported *json.UnsupportedValueError

	if errors.As(err, &unsupported) && strings.Contains(unsupported.Str, "cycle") {
		return fmt.Errorf("%w: %s; serialize the value before storing it", ErrCircularReference, unsupported.Str)
	}

	return fmt.Errorf("%w: %s", ErrUnserializable, err)
}
