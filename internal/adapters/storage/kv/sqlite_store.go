package kv

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"crmpilates/internal/adapters/storage"
)

// KeySize is the length of the sealing key.
const KeySize = chacha20poly1305.KeySize

// ErrEmptyScope is returned for operations without a scope.
var ErrEmptyScope = errors.New("kv scope cannot be empty")

// SQLiteStore implements Store using SQLite. Values are sealed with
// XChaCha20-Poly1305; scope and key are bound as additional data so a
// sealed value cannot be replayed under another session.
type SQLiteStore struct {
	db   storage.SQLDB
	aead cipher.AEAD
	now  func() time.Time
}

// NewSQLiteStore creates a store sealing values with key.
// PRE: len(key) == KeySize
// POST: Returns a ready store or an error for a bad key
func NewSQLiteStore(db storage.SQLDB, key []byte) (*SQLiteStore, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("kv: new xchacha20 cipher: %w", err)
	}
	return &SQLiteStore{db: db, aead: aead, now: time.Now}, nil
}

// GenerateKey returns a random sealing key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("kv: generate key: %w", err)
	}
	return key, nil
}

func additionalData(scope, key string) []byte {
	return []byte(scope + "\x00" + key)
}

func (s *SQLiteStore) seal(scope, key, value string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("kv: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(value), additionalData(scope, key)), nil
}

func (s *SQLiteStore) open(scope, key string, sealed []byte) (string, error) {
	if len(sealed) < s.aead.NonceSize() {
		return "", errors.New("kv: sealed value too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, additionalData(scope, key))
	if err != nil {
		return "", fmt.Errorf("kv: open %s: %w", key, err)
	}
	return string(plain), nil
}

// Get returns the value under (scope, key).
// PRE: scope is non-empty
// POST: ok is false when nothing is stored
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	if scope == "" {
		return "", false, ErrEmptyScope
	}
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE scope = ? AND key = ?`, scope, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	value, err := s.open(scope, key, sealed)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts the value under (scope, key).
// PRE: scope is non-empty
// POST: value is persisted sealed; updated_at is now
func (s *SQLiteStore) Set(ctx context.Context, scope, key, value string) error {
	if scope == "" {
		return ErrEmptyScope
	}
	sealed, err := s.seal(scope, key, value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, scope, key, sealed, s.now().UTC().Format(time.RFC3339))
	return err
}

// Delete removes (scope, key); deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, scope, key string) error {
	if scope == "" {
		return ErrEmptyScope
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE scope = ? AND key = ?`, scope, key)
	return err
}

// DeleteScope removes every key of scope.
func (s *SQLiteStore) DeleteScope(ctx context.Context, scope string) error {
	if scope == "" {
		return ErrEmptyScope
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE scope = ?`, scope)
	return err
}

// PurgeOlderThan deletes entries not written since cutoff.
// POST: Returns the number of deleted rows
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE updated_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
