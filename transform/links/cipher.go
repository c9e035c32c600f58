package links

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/jrife/vault/transform"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length NewCipher expects
const KeySize = chacha20poly1305.KeySize

var (
	// ErrCiphertextTooShort indicates that the text cannot hold a nonce
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// KeyFromPassphrase derives a KeySize key from a passphrase with argon2id.
// The same passphrase and salt always produce the same key.
func KeyFromPassphrase(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 19*1024, 1, KeySize)
}

// NewCipher returns a link that seals text with XChaCha20-Poly1305.
// Every write uses a fresh random nonce which is stored in front of the
// ciphertext. The output is standard base64. Tampered or foreign text
// fails authentication on the way back.
func NewCipher(key []byte) (transform.Link, error) {
	aead, err := chacha20poly1305.NewX(key)

	if err != nil {
		return nil, fmt.Errorf("could not create cipher: %w", err)
	}

	return &cipherLink{aead: aead, random: rand.Reader}, nil
}

type cipherLink struct {
	aead   cipher.AEAD
	random io.Reader
}

func (link *cipherLink) Forward(text string) (string, error) {
	nonce := make([]byte, link.aead.NonceSize(), link.aead.NonceSize()+len(text)+link.aead.Overhead())

	if _, err := io.ReadFull(link.random, nonce); err != nil {
		return "", fmt.Errorf("could not generate nonce: %w", err)
	}

	sealed := link.aead.Seal(nonce, nonce, []byte(text), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (link *cipherLink) Backward(text string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(text)

	if err != nil {
		return "", fmt.Errorf("could not decode ciphertext: %w", err)
	}

	if len(sealed) < link.aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:link.aead.NonceSize()], sealed[link.aead.NonceSize():]
	plaintext, err := link.aead.Open(nil, nonce, ciphertext, nil)

	if err != nil {
		return "", fmt.Errorf("could not decrypt: %w", err)
	}

	return string(plaintext), nil
}
