package backend

import (
	"errors"
	"fmt"

	"github.com/jrife/vault/storage/kv"
)

var (
	// ErrUnavailable indicates that the backend is not bound to any store
	ErrUnavailable = errors.New("storage backend is unavailable")
	// ErrQuotaExceeded indicates that the store refused a write
	// because it is full
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrClosed indicates that the environment was closed
	ErrClosed = errors.New("storage environment was closed")
)

func wrapError(wrap string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrQuotaExceeded):
		return ErrQuotaExceeded
	case errors.Is(err, kv.ErrClosed):
		return ErrUnavailable
	}

	return fmt.Errorf("%s: %w", wrap, err)
}
