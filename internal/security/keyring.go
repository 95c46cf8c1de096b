// Package security stores SSH key passphrases in the operating
// system's credential store, so an encrypted key never requires a
// prompt twice.
package security

import (
	"errors"

	"github.com/zalando/go-keyring"

	"skillshub/internal/faults"
)

const keyringService = "skillshub"

// ErrNotFound reports that no passphrase is stored for a key.
var ErrNotFound = errors.New("passphrase not stored")

// Passphrases is a thin wrapper over the OS keyring, keyed by the SSH
// key's path.
type Passphrases struct{}

// NewPassphrases returns the passphrase store.
func NewPassphrases() *Passphrases { return &Passphrases{} }

// Set stores the passphrase for the key at keyPath.
func (p *Passphrases) Set(keyPath, passphrase string) error {
	if keyPath == "" {
		return faults.New(faults.Validation, "empty key path")
	}
	if err := keyring.Set(keyringService, keyPath, passphrase); err != nil {
		return faults.Wrap(faults.NotAvailable, err, "store passphrase in system keyring")
	}
	return nil
}

// Get retrieves the passphrase for the key at keyPath. A missing entry
// is ErrNotFound; the caller falls back to prompting.
func (p *Passphrases) Get(keyPath string) (string, error) {
	val, err := keyring.Get(keyringService, keyPath)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", faults.Wrap(faults.NotAvailable, err, "read passphrase from system keyring")
	}
	return val, nil
}

// Delete removes the stored passphrase for keyPath. Deleting an absent
// entry is not an error.
func (p *Passphrases) Delete(keyPath string) error {
	err := keyring.Delete(keyringService, keyPath)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return faults.Wrap(faults.NotAvailable, err, "delete passphrase from system keyring")
	}
	return nil
}

// MaskKey returns a display-safe form of a secret.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
