package prefs

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetSetDelete(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key: got %v, want ErrNotFound", err)
	}

	if err := db.Set("k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := db.Get("k"); err != nil || v != "v1" {
		t.Errorf("get = %q, %v", v, err)
	}

	if err := db.Set("k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _ := db.Get("k"); v != "v2" {
		t.Errorf("overwrite not applied: %q", v)
	}

	if err := db.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted key: got %v, want ErrNotFound", err)
	}
	if err := db.Delete("k"); err != nil {
		t.Errorf("delete absent key: %v", err)
	}
}

func TestVaultPINPerUser(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.VaultPIN("u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unset pin: got %v, want ErrNotFound", err)
	}

	if err := db.SetVaultPIN("u1", "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if pin, _ := db.VaultPIN("u1"); pin != "1234" {
		t.Errorf("pin = %q", pin)
	}
	if _, err := db.VaultPIN("u2"); !errors.Is(err, ErrNotFound) {
		t.Error("pin leaked across users")
	}

	if err := db.ClearVaultPIN("u1"); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	if _, err := db.VaultPIN("u1"); !errors.Is(err, ErrNotFound) {
		t.Error("pin survived clear")
	}
}

func TestTheme(t *testing.T) {
	db := openTestDB(t)

	if got := db.Theme(); got != "light" {
		t.Errorf("default theme = %q", got)
	}
	if err := db.SetTheme("dark"); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if got := db.Theme(); got != "dark" {
		t.Errorf("theme = %q", got)
	}
	if err := db.SetTheme("solarized"); err == nil {
		t.Error("unknown theme accepted")
	}
}
