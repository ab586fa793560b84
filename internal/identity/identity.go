package identity

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
	ECDHKeySize    = 32
)

type (
	PublicKey      = ed25519.PublicKey
	PrivateKey     = ed25519.PrivateKey
	ECDHPublicKey  = ecdh.PublicKey
	ECDHPrivateKey = ecdh.PrivateKey
)

var ErrInvalidHandshake = errors.New("invalid handshake info")

func Generate() (PublicKey, PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return publicKey, privateKey, nil
}

func Sign(privateKey PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}

func Verify(publicKey PublicKey, message []byte, signature []byte) bool {
	return len(publicKey) == PublicKeySize && ed25519.Verify(publicKey, message, signature)
}

func Public(privateKey PrivateKey) PublicKey {
	return privateKey.Public().(PublicKey)
}

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, errors.New("invalid public key size")
	}
	return PublicKey(b), nil
}

func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return PrivateKey(b), nil
}

func GenerateECDH() (*ECDHPrivateKey, error) {
	privateKey, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate x25519 key: %w", err)
	}
	return privateKey, nil
}

func ECDHPublicKeyFromBytes(b []byte) (*ECDHPublicKey, error) {
	return ecdh.X25519().NewPublicKey(b)
}

func ECDHPrivateKeyFromBytes(b []byte) (*ECDHPrivateKey, error) {
	return ecdh.X25519().NewPrivateKey(b)
}

func SharedSecret(privateKey *ECDHPrivateKey, publicKey *ECDHPublicKey) ([]byte, error) {
	secret, err := privateKey.ECDH(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive shared secret: %w", err)
	}
	return secret, nil
}

// Handshake is what two peers exchange out of band to start a secret chat.
// AccountPublicKey is the sender's directory identity; PublicIdentityKey is
// the key generated for this chat.
type Handshake struct {
	AccountPublicKey  PublicKey
	PublicIdentityKey PublicKey
	ECDHPublicKey     *ECDHPublicKey
}

// String encodes the handshake as hex(account key || identity key || x25519 key).
func (h Handshake) String() string {
	return hex.EncodeToString(h.AccountPublicKey) + hex.EncodeToString(h.PublicIdentityKey) + hex.EncodeToString(h.ECDHPublicKey.Bytes())
}

func ParseHandshake(s string) (Handshake, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Handshake{}, fmt.Errorf("%w: %w", ErrInvalidHandshake, err)
	}

	if len(b) != 2*PublicKeySize+ECDHKeySize {
		return Handshake{}, fmt.Errorf("%w: length %d", ErrInvalidHandshake, len(b))
	}

	ecdhPublicKey, err := ECDHPublicKeyFromBytes(b[2*PublicKeySize:])
	if err != nil {
		return Handshake{}, fmt.Errorf("%w: %w", ErrInvalidHandshake, err)
	}

	return Handshake{
		AccountPublicKey:  PublicKey(b[:PublicKeySize]),
		PublicIdentityKey: PublicKey(b[PublicKeySize : 2*PublicKeySize]),
		ECDHPublicKey:     ecdhPublicKey,
	}, nil
}
