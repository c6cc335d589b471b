package credentials

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists tokens across process restarts. Expired rows are
// deleted on read.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

const createTokensTable = `
CREATE TABLE IF NOT EXISTS tokens (
	key          TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	expires_in   INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
)`

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}
	if _, err := db.Exec(createTokensTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token database: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(key string) (Token, bool) {
	var token Token
	var createdAt int64
	err := s.db.QueryRow(
		"SELECT access_token, expires_in, created_at FROM tokens WHERE key = ?", key,
	).Scan(&token.AccessToken, &token.ExpiresIn, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, false
	}
	if err != nil {
		return Token{}, false
	}

	token.CreatedAt = time.Unix(createdAt, 0)
	if token.Expired(s.now()) {
		_, _ = s.db.Exec("DELETE FROM tokens WHERE key = ?", key)
		return Token{}, false
	}
	return token, true
}

func (s *SQLiteStore) Put(key string, token Token) error {
	_, err := s.db.Exec(
		`INSERT INTO tokens (key, access_token, expires_in, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET access_token = excluded.access_token,
		 expires_in = excluded.expires_in, created_at = excluded.created_at`,
		key, token.AccessToken, token.ExpiresIn, token.CreatedAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM tokens WHERE key = ?", key)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
