// Package sqlite persists the console session in a local SQLite file. Values
// are sealed with AES-GCM before they are written, so the file alone does not
// leak tokens.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
	_ "modernc.org/sqlite"
)

// Store implements authsdk.Persister on top of SQLite.
type Store struct {
	db     *sql.DB
	sealer *cryptox.Sealer
	now    func() time.Time
}

// Ensure Store implements authsdk.Persister at compile time.
var _ authsdk.Persister = (*Store)(nil)

// NewStore opens the database at dsn. Call ApplyMigrations before use.
func NewStore(dsn string, sealer *cryptox.Sealer) (*Store, error) {
	if sealer == nil {
		return nil, errors.New("sqlite: sealer is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One connection keeps ":memory:" databases shared and writes serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, sealer: sealer, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the unsealed value for key. A value that no longer opens, for
// example after the store key changed, is reported as an error rather than
// silently treated as absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_keys WHERE key = ?`, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get %s: %w", key, err)
	}

	plain, err := s.sealer.Open(sealed)
	if err != nil {
		return "", false, fmt.Errorf("sqlite: open %s: %w", key, err)
	}
	return string(plain), true, nil
}

// Set seals value and upserts it under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("sqlite: seal %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_keys (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, sealed, s.now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in one transaction.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_keys WHERE key = ?`, key); err != nil {
				return fmt.Errorf("sqlite: delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// UpdatedAt reports when key was last written, zero if it is absent.
func (s *Store) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var unix int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM session_keys WHERE key = ?`, key).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: updated_at %s: %w", key, err)
	}
	return time.Unix(unix, 0).UTC(), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
