package secretbox

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	SaltLen = 16
	KeyLen  = chacha20poly1305.KeySize

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 1
)

var ErrShortCiphertext = errors.New("ciphertext shorter than nonce")

func RandomBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("could not read random bytes: %w", err)
	}
	return data, nil
}

func NewSalt() ([]byte, error) {
	return RandomBytes(SaltLen)
}

// DeriveKey stretches a password into a key with argon2id.
func DeriveKey(password []byte, salt []byte) ([]byte, error) {
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("invalid salt length: %d", len(salt))
	}
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, KeyLen), nil
}

// Seal encrypts data with XChaCha20-Poly1305. The random nonce is prepended
// to the ciphertext.
func Seal(data []byte, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("could not create cipher: %w", err)
	}

	nonce, err := RandomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, data, nil), nil
}

func Open(data []byte, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("could not create cipher: %w", err)
	}

	if len(data) < aead.NonceSize() {
		return nil, ErrShortCiphertext
	}

	plaintext, err := aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt: %w", err)
	}
	return plaintext, nil
}
