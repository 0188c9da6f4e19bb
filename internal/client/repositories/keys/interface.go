// Package keys persists the local keyring cache: public keys by user id,
// the single device private-key slot, and the directory sync watermark.
package keys

import (
	"context"
	"time"
)

// Record is one persisted public-key entry. Timestamps are stored as unix
// seconds; a zero ExpiresAt means the key does not expire.
type Record struct {
	UserID      string
	Armored     string
	Fingerprint string
	KeyID       string
	Algorithm   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Repository is the persistence contract for the keyring cache. Absence is
// signalled by zero values, not errors: Get returns (nil, nil), GetPrivate
// returns ("", nil) and GetWatermark returns a zero time when nothing is
// stored.
type Repository interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	List(ctx context.Context) ([]*Record, error)

	GetPrivate(ctx context.Context) (string, error)
	SetPrivate(ctx context.Context, armored string) error

	GetWatermark(ctx context.Context) (time.Time, error)
	SetWatermark(ctx context.Context, ts time.Time) error

	Clear(ctx context.Context) error
}
