// Package session provides an optional in-memory passphrase cache. The
// passphrase is held AES-GCM encrypted under a random per-session key, so a
// casual heap inspection does not reveal it in the clear. The sharing core
// only ever reads this cache; ownership of the passphrase lifecycle stays
// with the embedding application.
package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"
)

type Cache struct {
	mu         sync.Mutex
	key        []byte
	nonce      []byte
	ciphertext []byte
}

// NewCache generates a fresh 256-bit session key.
func NewCache() (*Cache, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return &Cache{key: key}, nil
}

// Store remembers the passphrase for the rest of the session. The input
// slice is not retained; callers may wipe it after the call.
func (c *Cache) Store(passphrase []byte) error {
	gcm, err := c.aead()
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce = nonce
	c.ciphertext = gcm.Seal(nil, nonce, passphrase, nil)
	return nil
}

// Passphrase returns a fresh copy of the cached passphrase, or false when
// nothing is stored. The caller owns the returned slice and should wipe it.
func (c *Cache) Passphrase(ctx context.Context) ([]byte, bool) {
	c.mu.Lock()
	nonce, ciphertext := c.nonce, c.ciphertext
	c.mu.Unlock()

	if ciphertext == nil {
		return nil, false
	}

	gcm, err := c.aead()
	if err != nil {
		return nil, false
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, false
	}
	return plain, true
}

// Forget drops the cached passphrase.
func (c *Cache) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce = nil
	c.ciphertext = nil
}

func (c *Cache) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return gcm, nil
}
