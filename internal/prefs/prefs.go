// Package prefs persists small per-user preferences locally in SQLite:
// the vault PIN and the theme choice. Nothing here is synced to the
// remote store.
package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// ErrNotFound is returned when no value is stored for a key.
var ErrNotFound = errors.New("preference not set")

// DB is a local preference store.
type DB struct {
	conn *sql.DB
}

// Open opens (and if needed creates) the preference database at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode allows simultaneous readers and writers.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		conn.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Get returns the stored value for key, or ErrNotFound.
func (d *DB) Get(key string) (string, error) {
	var value string
	err := d.conn.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set upserts a value.
func (d *DB) Set(key, value string) error {
	_, err := d.conn.Exec("INSERT OR REPLACE INTO prefs (key, value) VALUES (?, ?)", key, value)
	return err
}

// Delete removes a key. Deleting an absent key is a no-op.
func (d *DB) Delete(key string) error {
	_, err := d.conn.Exec("DELETE FROM prefs WHERE key = ?", key)
	return err
}

func vaultPinKey(userID string) string { return "vaultPin_" + userID }

// VaultPIN returns the stored vault PIN for a user, or ErrNotFound when
// none has been set yet.
func (d *DB) VaultPIN(userID string) (string, error) {
	return d.Get(vaultPinKey(userID))
}

// SetVaultPIN stores a user's vault PIN.
func (d *DB) SetVaultPIN(userID, pin string) error {
	return d.Set(vaultPinKey(userID), pin)
}

// ClearVaultPIN removes a user's vault PIN.
func (d *DB) ClearVaultPIN(userID string) error {
	return d.Delete(vaultPinKey(userID))
}

// Theme returns the stored theme name, defaulting to "light".
func (d *DB) Theme() string {
	v, err := d.Get("theme")
	if err != nil {
		return "light"
	}
	return v
}

// SetTheme stores the theme name.
func (d *DB) SetTheme(name string) error {
	if name != "light" && name != "dark" {
		return fmt.Errorf("unknown theme %q", name)
	}
	return d.Set("theme", name)
}
