package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite"
)

// ErrInvalidID reports an identifier that does not match the 24-hex-character
// convention. Callers should reject the request before touching the store.
var ErrInvalidID = errors.New("invalid id format")

// User is one stored record. ImageURL is empty when the record carries no image.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Fields is a partial update: nil pointers are fields the caller did not
// submit and must be left untouched.
type Fields struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	ImageURL *string `json:"imageUrl"`
}

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ValidID reports whether id matches the 24-hex-character identifier convention.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NewID returns a fresh 24-hex-character identifier.
func NewID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("store: read random id: %v", err))
	}
	return hex.EncodeToString(b[:])
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	image_url  TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store persists user records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the SQLite store at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// FindAll returns every stored record, oldest first.
func (s *Store) FindAll(ctx context.Context) ([]User, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, email, image_url FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: query users: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.ImageURL); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate users: %w", err)
	}
	return out, nil
}

// Insert stores u under a freshly assigned identifier and returns the stored
// record. The ID field of the argument is ignored.
func (s *Store) Insert(ctx context.Context, u User) (User, error) {
	u.ID = NewID()
	now := s.now().UTC().UnixMilli()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, name, email, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.ImageURL, now, now)
	if err != nil {
		return User{}, fmt.Errorf("store: insert user: %w", err)
	}
	return u, nil
}

// UpdateFields applies the submitted fields of f to the record with the given
// id, leaving omitted fields untouched. Returns the number of rows matched
// (0 when id is unknown — not an error, mirroring a conditional update).
func (s *Store) UpdateFields(ctx context.Context, id string, f Fields) (int64, error) {
	if !ValidID(id) {
		return 0, ErrInvalidID
	}

	set := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if f.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *f.Name)
	}
	if f.Email != nil {
		set = append(set, "email = ?")
		args = append(args, *f.Email)
	}
	if f.ImageURL != nil {
		set = append(set, "image_url = ?")
		args = append(args, *f.ImageURL)
	}
	if len(set) == 0 {
		// Nothing submitted — a no-op patch still "matches" if the row exists.
		var n int64
		err := s.sqlDB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("store: check user: %w", err)
		}
		return n, nil
	}

	set = append(set, "updated_at = ?")
	args = append(args, s.now().UTC().UnixMilli(), id)

	query := "UPDATE users SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE id = ?"

	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: update user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return n, nil
}

// DeleteByID removes the record with the given id and returns the number of
// rows deleted (0 when id is unknown — not an error).
func (s *Store) DeleteByID(ctx context.Context, id string) (int64, error) {
	if !ValidID(id) {
		return 0, ErrInvalidID
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("store: delete user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return n, nil
}
