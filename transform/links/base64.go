package links

import (
	"encoding/base64"

	"github.com/jrife/vault/transform"
)

// Base64 encodes text as standard base64
func Base64() transform.Link {
	return transform.LinkFuncs{
		Fwd: func(text string) (string, error) {
			return base64.StdEncoding.EncodeToString([]byte(text)), nil
		},
		Bwd: func(text string) (string, error) {
			decoded, err := base64.StdEncoding.DecodeString(text)

			if err != nil {
				return "", err
			}

			return string(decoded), nil
		},
	}
}
