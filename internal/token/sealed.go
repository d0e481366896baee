package token

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrSealKeySize = fmt.Errorf("seal key must be %d bytes", chacha20poly1305.KeySize)

// SealedBackend encrypts token values before handing them to the inner
// backend. A value that fails to open reads as absent.
type SealedBackend struct {
	inner Backend
	aead  cipher.AEAD
}

func NewSealedBackend(inner Backend, key []byte) (*SealedBackend, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrSealKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &SealedBackend{inner: inner, aead: aead}, nil
}

func (b *SealedBackend) Name() string { return b.inner.Name() + "+sealed" }

// additionalData binds a ciphertext to the slot it was written to.
func additionalData(clientID string, key Key) []byte {
	return []byte(clientID + "\x00" + string(key))
}

func (b *SealedBackend) seal(clientID string, key Key, value string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(value)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(value), additionalData(clientID, key))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (b *SealedBackend) open(clientID string, key Key, stored string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(stored)
	if err != nil {
		return "", err
	}
	if len(raw) < b.aead.NonceSize()+b.aead.Overhead() {
		return "", errors.New("sealed value too short")
	}
	nonce, ciphertext := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plain, err := b.aead.Open(nil, nonce, ciphertext, additionalData(clientID, key))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (b *SealedBackend) Get(ctx context.Context, clientID string, key Key) (string, error) {
	stored, err := b.inner.Get(ctx, clientID, key)
	if err != nil {
		return "", err
	}
	value, err := b.open(clientID, key, stored)
	if err != nil {
		return "", fmt.Errorf("open sealed %s: %w", key, err)
	}
	return value, nil
}

func (b *SealedBackend) Set(ctx context.Context, clientID string, key Key, value string) error {
	sealed, err := b.seal(clientID, key, value)
	if err != nil {
		return err
	}
	return b.inner.Set(ctx, clientID, key, sealed)
}

func (b *SealedBackend) Delete(ctx context.Context, clientID string, key Key) error {
	return b.inner.Delete(ctx, clientID, key)
}

func (b *SealedBackend) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}
