package ui

import (
	"errors"
	"sync"

	"github.com/skydrive/skydrive/internal/prefs"
)

var (
	// ErrInvalidPIN rejects PINs that are not at least four digits.
	ErrInvalidPIN = errors.New("pin must be at least 4 digits")

	// ErrWrongPIN is returned for a failed unlock attempt.
	ErrWrongPIN = errors.New("incorrect pin")

	// ErrPINAlreadySet is returned when setting a PIN over an existing
	// one; use Reset first.
	ErrPINAlreadySet = errors.New("pin already set")
)

// VaultGate controls access to the vault view. The PIN lives in local
// preferences keyed by user id; it gates the client only and is not a
// security mechanism.
type VaultGate struct {
	prefs *prefs.DB

	mu       sync.Mutex
	unlocked map[string]bool
}

// NewVaultGate creates a gate over the given preference store.
func NewVaultGate(p *prefs.DB) *VaultGate {
	return &VaultGate{prefs: p, unlocked: make(map[string]bool)}
}

func validPIN(pin string) bool {
	if len(pin) < 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// HasPIN reports whether the user has set a vault PIN.
func (g *VaultGate) HasPIN(userID string) (bool, error) {
	_, err := g.prefs.VaultPIN(userID)
	if errors.Is(err, prefs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetPIN stores a first-time PIN and unlocks the vault. An existing PIN
// is never silently overwritten.
func (g *VaultGate) SetPIN(userID, pin string) error {
	if !validPIN(pin) {
		return ErrInvalidPIN
	}
	has, err := g.HasPIN(userID)
	if err != nil {
		return err
	}
	if has {
		return ErrPINAlreadySet
	}
	if err := g.prefs.SetVaultPIN(userID, pin); err != nil {
		return err
	}

	g.mu.Lock()
	g.unlocked[userID] = true
	g.mu.Unlock()
	return nil
}

// Unlock checks the PIN and opens the vault for this session.
func (g *VaultGate) Unlock(userID, pin string) error {
	stored, err := g.prefs.VaultPIN(userID)
	if err != nil {
		return err
	}
	if pin != stored {
		return ErrWrongPIN
	}

	g.mu.Lock()
	g.unlocked[userID] = true
	g.mu.Unlock()
	return nil
}

// Unlocked reports whether the vault is open for the user.
func (g *VaultGate) Unlocked(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked[userID]
}

// Lock closes the vault for the user without touching the PIN.
func (g *VaultGate) Lock(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.unlocked, userID)
}

// Reset removes the user's PIN and locks the vault.
func (g *VaultGate) Reset(userID string) error {
	if err := g.prefs.ClearVaultPIN(userID); err != nil {
		return err
	}
	g.Lock(userID)
	return nil
}
