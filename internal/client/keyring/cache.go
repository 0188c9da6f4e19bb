// Package keyring maintains the local cache of OpenPGP keys: public keys of
// other users, the device owner's private key, and the watermark of the last
// directory sync. A Cache is constructed once per account/session and passed
// by reference to collaborators; there is no package-level state.
package keyring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/teamvault/sharecore/internal/client/api"
	"github.com/teamvault/sharecore/internal/client/pgp"
	"github.com/teamvault/sharecore/internal/client/repositories/keys"
	"github.com/teamvault/sharecore/internal/common"
	"github.com/teamvault/sharecore/internal/logging"
)

// Directory is the remote key directory the cache synchronizes with.
// api.Client satisfies it.
type Directory interface {
	GPGKeysModifiedAfter(ctx context.Context, since time.Time) ([]api.GPGKey, time.Time, error)
}

// Cache is the in-memory and persisted keyring. Parsed keys are memoized so
// repeated lookups during a bulk operation do not re-parse armored text.
type Cache struct {
	repo keys.Repository
	dir  Directory
	log  logging.Logger

	mu      sync.RWMutex
	public  map[string]*crypto.Key
	private *crypto.Key // parsed, still locked

	sf singleflight.Group
}

func New(repo keys.Repository, dir Directory, log logging.Logger) *Cache {
	return &Cache{
		repo:   repo,
		dir:    dir,
		log:    log.With("component", "keyring"),
		public: make(map[string]*crypto.Key),
	}
}

// ImportPublic validates and stores a public key for userID, overwriting any
// existing entry. Importing identical input twice leaves the cache in the
// same observable state as importing it once.
func (c *Cache) ImportPublic(ctx context.Context, armored, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("user id %q is not a valid identifier: %w", userID, common.ErrInvalidIdentifier)
	}

	key, err := pgp.ParsePublicKey(armored)
	if err != nil {
		return fmt.Errorf("importing key for user %s: %w", userID, err)
	}

	info := pgp.Info(key)
	rec := &keys.Record{
		UserID:      userID,
		Armored:     armored,
		Fingerprint: info.Fingerprint,
		KeyID:       info.KeyID,
		Algorithm:   info.Algorithm,
		CreatedAt:   info.CreatedAt,
		ExpiresAt:   info.ExpiresAt,
	}
	if err := c.repo.Put(ctx, rec); err != nil {
		return fmt.Errorf("persisting key for user %s: %w", userID, err)
	}

	c.mu.Lock()
	c.public[userID] = key
	c.mu.Unlock()

	c.log.Debug(ctx, "imported public key", "user_id", userID, "fingerprint", info.Fingerprint)
	return nil
}

// ImportPrivate validates and stores the device private key, replacing any
// existing one. The key is never unlocked here.
func (c *Cache) ImportPrivate(ctx context.Context, armored string) error {
	key, err := pgp.ParsePrivateKey(armored)
	if err != nil {
		return err
	}

	if err := c.repo.SetPrivate(ctx, armored); err != nil {
		return fmt.Errorf("persisting private key: %w", err)
	}

	c.mu.Lock()
	c.private = key
	c.mu.Unlock()

	c.log.Debug(ctx, "imported private key", "fingerprint", key.GetFingerprint())
	return nil
}

// FindPublic returns the public key stored for userID, or (nil, nil) when no
// key is cached. Absence is a normal condition callers must handle.
func (c *Cache) FindPublic(ctx context.Context, userID string) (*crypto.Key, error) {
	c.mu.RLock()
	key, ok := c.public[userID]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	rec, err := c.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	key, err = pgp.ParsePublicKey(rec.Armored)
	if err != nil {
		return nil, fmt.Errorf("stored key for user %s: %w", userID, err)
	}

	c.mu.Lock()
	c.public[userID] = key
	c.mu.Unlock()
	return key, nil
}

// FindPrivate returns the device private key, still locked, or (nil, nil)
// when none has been imported.
func (c *Cache) FindPrivate(ctx context.Context) (*crypto.Key, error) {
	c.mu.RLock()
	key := c.private
	c.mu.RUnlock()
	if key != nil {
		return key, nil
	}

	armored, err := c.repo.GetPrivate(ctx)
	if err != nil {
		return nil, err
	}
	if armored == "" {
		return nil, nil
	}

	key, err = pgp.ParsePrivateKey(armored)
	if err != nil {
		return nil, fmt.Errorf("stored private key: %w", err)
	}

	c.mu.Lock()
	c.private = key
	c.mu.Unlock()
	return key, nil
}

// Sync fetches public keys modified after the last sync watermark, imports
// each, and advances the watermark to the server-provided timestamp. Safe to
// call repeatedly; any failure leaves the watermark untouched so the next
// sync retries the same window. Concurrent calls are coalesced into one
// request.
func (c *Cache) Sync(ctx context.Context) (int, error) {
	n, err, _ := c.sf.Do("sync", func() (any, error) {
		return c.syncOnce(ctx)
	})
	if err != nil {
		return 0, err
	}
	return n.(int), nil
}

func (c *Cache) syncOnce(ctx context.Context) (int, error) {
	since, err := c.repo.GetWatermark(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading sync watermark: %w", err)
	}

	rows, serverTime, err := c.dir.GPGKeysModifiedAfter(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("fetching directory keys: %w", err)
	}

	for _, row := range rows {
		if err := c.ImportPublic(ctx, row.Armored, row.UserID); err != nil {
			return 0, err
		}
	}

	// The watermark only moves forward.
	if serverTime.After(since) {
		if err := c.repo.SetWatermark(ctx, serverTime); err != nil {
			return 0, fmt.Errorf("advancing sync watermark: %w", err)
		}
	}

	c.log.Info(ctx, "keyring synced", "imported", len(rows), "watermark", serverTime)
	return len(rows), nil
}

// Clear flushes every cached key and the watermark, in memory and on disk.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.repo.Clear(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.public = make(map[string]*crypto.Key)
	c.private = nil
	c.mu.Unlock()
	return nil
}
