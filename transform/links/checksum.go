package links

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/jrife/vault/transform"
)

var (
	// ErrChecksumMismatch indicates that text was changed after it was written
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrMissingChecksum indicates that text carries no checksum
	ErrMissingChecksum = errors.New("missing checksum")
)

const checksumSeparator = ":"

// Checksum prefixes text with its xxhash64 digest and verifies the
// digest on the way back
func Checksum() transform.Link {
	return transform.LinkFuncs{
		Fwd: func(text string) (string, error) {
			return checksum(text) + checksumSeparator + text, nil
		},
		Bwd: func(text string) (string, error) {
			i := strings.Index(text, checksumSeparator)

			if i < 0 {
				return "", ErrMissingChecksum
			}

			digest, body := text[:i], text[i+len(checksumSeparator):]

			if digest != checksum(body) {
				return "", fmt.Errorf("%w: stored %s", ErrChecksumMismatch, digest)
			}

			return body, nil
		},
	}
}

func checksum(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}
