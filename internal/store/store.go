// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gptstir/stir-tui/internal/model"
)

const (
	dbFileName     = "credentials.db"
	secretFileName = "store.key"

	keySessionToken = "session_token"
	keyUserProfile  = "user_profile"
)

// CredentialStore is an encrypted key-value store backed by SQLite. The
// session token and user profile are written and cleared together: a
// half-persisted pair would verify as one user and render as another.
type CredentialStore struct {
	db     *sql.DB
	cipher *valueCipher
}

// Open opens (or creates) the store under dir. The directory is created
// 0700; the database and secret file live inside it.
func Open(dir string) (*CredentialStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	cipher, err := loadOrCreateCipher(filepath.Join(dir, secretFileName))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open credential db: %w", err)
	}

	// modernc.org/sqlite serializes writers; one connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &CredentialStore{db: db, cipher: cipher}, nil
}

// Close closes the underlying database.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}

// SaveCredentials persists the token and user profile in one transaction.
func (s *CredentialStore) SaveCredentials(token string, user model.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	sealedToken, err := s.cipher.Seal([]byte(token))
	if err != nil {
		return err
	}
	sealedUser, err := s.cipher.Seal(userJSON)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	upsert := `INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
	           ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := tx.Exec(upsert, keySessionToken, sealedToken, now); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if _, err := tx.Exec(upsert, keyUserProfile, sealedUser, now); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return tx.Commit()
}

// LoadCredentials returns the persisted pair. ok is false when no complete
// pair exists; an unreadable pair (missing half, undecryptable value) is
// treated the same so a fresh login can overwrite it.
func (s *CredentialStore) LoadCredentials() (token string, user model.User, ok bool, err error) {
	rawToken, found, err := s.get(keySessionToken)
	if err != nil || !found {
		return "", model.User{}, false, err
	}
	rawUser, found, err := s.get(keyUserProfile)
	if err != nil || !found {
		return "", model.User{}, false, err
	}

	tokenBytes, err := s.cipher.Open(rawToken)
	if err != nil {
		if errors.Is(err, ErrDecryptionFailed) {
			return "", model.User{}, false, nil
		}
		return "", model.User{}, false, err
	}
	userBytes, err := s.cipher.Open(rawUser)
	if err != nil {
		if errors.Is(err, ErrDecryptionFailed) {
			return "", model.User{}, false, nil
		}
		return "", model.User{}, false, err
	}

	if err := json.Unmarshal(userBytes, &user); err != nil {
		return "", model.User{}, false, nil
	}
	if len(tokenBytes) == 0 {
		return "", model.User{}, false, nil
	}

	token = string(tokenBytes)
	ZeroBytes(tokenBytes)
	return token, user, true, nil
}

// ClearCredentials removes the pair in one transaction. Clearing an empty
// store is not an error.
func (s *CredentialStore) ClearCredentials() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM credentials WHERE key IN (?, ?)", keySessionToken, keyUserProfile); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return tx.Commit()
}

func (s *CredentialStore) get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM credentials WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}
