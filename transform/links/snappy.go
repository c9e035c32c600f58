package links

import (
	"encoding/base64"
	"fmt"

	"github.com/golang/snappy"
	"github.com/jrife/vault/transform"
)

// Snappy compresses text with snappy block compression and
// encodes the result as standard base64
func Snappy() transform.Link {
	return snappyLink{}
}

type snappyLink struct{}

func (snappyLink) Forward(text string) (string, error) {
	return base64.StdEncoding.EncodeToString(snappy.Encode(nil, []byte(text))), nil
}

func (snappyLink) Backward(text string) (string, error) {
	compressed, err := base64.StdEncoding.DecodeString(text)

	if err != nil {
		return "", fmt.Errorf("could not decode compressed text: %w", err)
	}

	decompressed, err := snappy.Decode(nil, compressed)

	if err != nil {
		return "", fmt.Errorf("could not decompress text: %w", err)
	}

	return string(decompressed), nil
}
