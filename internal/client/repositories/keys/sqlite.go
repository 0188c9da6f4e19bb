package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/teamvault/sharecore/internal/dbx"
)

const (
	settingPrivateKey = "private_key"
	settingWatermark  = "last_synced"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, userID string) (*Record, error) {
	var rec Record
	var createdAt, expiresAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, armored, fingerprint, key_id, algorithm, created_at, expires_at
		FROM keys WHERE user_id = ?
	`, userID).Scan(&rec.UserID, &rec.Armored, &rec.Fingerprint, &rec.KeyID, &rec.Algorithm, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key[%s]: %w", userID, err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	if expiresAt != 0 {
		rec.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	}
	return &rec, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, rec *Record) error {
	var expiresAt int64
	if !rec.ExpiresAt.IsZero() {
		expiresAt = rec.ExpiresAt.Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO keys (user_id, armored, fingerprint, key_id, algorithm, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			armored = excluded.armored,
			fingerprint = excluded.fingerprint,
			key_id = excluded.key_id,
			algorithm = excluded.algorithm,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, rec.UserID, rec.Armored, rec.Fingerprint, rec.KeyID, rec.Algorithm, rec.CreatedAt.Unix(), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to put key[%s]: %w", rec.UserID, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, armored, fingerprint, key_id, algorithm, created_at, expires_at
		FROM keys ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		var rec Record
		var createdAt, expiresAt int64
		if err := rows.Scan(&rec.UserID, &rec.Armored, &rec.Fingerprint, &rec.KeyID, &rec.Algorithm, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		if expiresAt != 0 {
			rec.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		}
		result = append(result, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetPrivate(ctx context.Context) (string, error) {
	value, err := r.getSetting(ctx, settingPrivateKey)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (r *SQLiteRepository) SetPrivate(ctx context.Context, armored string) error {
	return r.setSetting(ctx, settingPrivateKey, []byte(armored))
}

func (r *SQLiteRepository) GetWatermark(ctx context.Context) (time.Time, error) {
	value, err := r.getSetting(ctx, settingWatermark)
	if err != nil {
		return time.Time{}, err
	}
	if value == nil {
		return time.Time{}, nil
	}
	unix, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse watermark %q: %w", value, err)
	}
	return time.Unix(unix, 0).UTC(), nil
}

func (r *SQLiteRepository) SetWatermark(ctx context.Context, ts time.Time) error {
	return r.setSetting(ctx, settingWatermark, []byte(strconv.FormatInt(ts.Unix(), 10)))
}

// Clear flushes both tables. When the repository holds a *sql.DB the flush
// runs in one transaction, so a failure cannot leave keys without their
// watermark or vice versa.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return clearAll(ctx, tx)
		})
	}
	return clearAll(ctx, r.db)
}

func clearAll(ctx context.Context, db dbx.DBTX) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM keys`); err != nil {
		return fmt.Errorf("failed to clear keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) getSetting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) setSetting(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting[%s]: %w", key, err)
	}
	return nil
}
