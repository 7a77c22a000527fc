// Package keystore implements an at-rest, password-protected store of
// secret key material: Argon2id-derived AES-256-GCM encryption, a write-time
// password policy, and a sliding-window lockout against online brute force.
package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

const (
	// MaxFailedAttempts is the number of failures tolerated within the
	// lockout window before further get_account calls are refused.
	MaxFailedAttempts = 5
	// LockoutWindow is the sliding window over which failures are
	// counted. Lockout state is in-memory only and does not survive a
	// process restart.
	LockoutWindow = 5 * time.Minute
)

// document is the on-disk JSON shape: a version tag plus the account list.
type document struct {
	Version  int                          `json:"version"`
	Accounts []apextypes.EncryptedAccount `json:"accounts"`
}

// AccountMetadata is what list_accounts exposes — never secrets.
type AccountMetadata struct {
	Name        string
	AccountType apextypes.AccountType
	Address     string
	CreatedAt   time.Time
}

// Keystore holds the decrypted-on-demand account collection and the
// per-account failed-attempt windows used for lockout.
type Keystore struct {
	mu       sync.Mutex
	accounts map[string]apextypes.EncryptedAccount
	order    []string

	failedMu sync.Mutex
	failures map[string][]time.Time
}

// New returns an empty keystore.
func New() *Keystore {
	return &Keystore{
		accounts: make(map[string]apextypes.EncryptedAccount),
		failures: make(map[string][]time.Time),
	}
}

// Load reads and decodes a keystore file. A future, unrecognized version is
// rejected rather than silently misread.
func Load(path string) (*Keystore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apexerr.Other(err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apexerr.Serialization(fmt.Sprintf("malformed keystore file: %v", err))
	}
	if doc.Version > KeystoreVersion {
		return nil, apexerr.Config(fmt.Sprintf("keystore file version %d is newer than supported version %d", doc.Version, KeystoreVersion))
	}

	ks := New()
	for _, acc := range doc.Accounts {
		ks.accounts[acc.Name] = acc
		ks.order = append(ks.order, acc.Name)
	}
	return ks, nil
}

// AddAccount validates the password policy, rejects a duplicate name, and
// stores the secret encrypted under a freshly generated salt and nonce.
func (k *Keystore) AddAccount(name string, kind apextypes.AccountType, address string, secret []byte, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.accounts[name]; exists {
		return apexerr.Config(fmt.Sprintf("account %q already exists in keystore", name))
	}

	salt, err := newSalt()
	if err != nil {
		return err
	}
	nonce, err := newNonce()
	if err != nil {
		return err
	}
	ciphertext, err := encrypt(password, salt, nonce, secret)
	if err != nil {
		return err
	}

	k.accounts[name] = apextypes.EncryptedAccount{
		Name:              name,
		AccountType:       kind,
		Address:           address,
		EncryptedData:     ciphertext,
		Nonce:             nonce,
		Salt:              salt,
		CreatedAt:         time.Now(),
		EncryptionVersion: KeystoreVersion,
	}
	k.order = append(k.order, name)
	return nil
}

// GetAccount decrypts and returns the named secret. It is rate-limited: once
// MaxFailedAttempts failures have landed within LockoutWindow, further calls
// fail with a Lockout error even if the password supplied is now correct,
// until the oldest failure ages out of the window.
func (k *Keystore) GetAccount(name, password string) ([]byte, error) {
	if locked, remaining := k.isLockedOut(name); locked {
		return nil, apexerr.Lockout(fmt.Sprintf("account %q is locked out for %s", name, remaining.Round(time.Second)))
	}

	k.mu.Lock()
	acc, ok := k.accounts[name]
	k.mu.Unlock()
	if !ok {
		return nil, apexerr.Config(fmt.Sprintf("account %q not found in keystore", name))
	}

	secret, err := decrypt(password, acc.Salt, acc.Nonce, acc.EncryptedData)
	if err != nil {
		k.recordFailure(name)
		return nil, err
	}
	k.clearFailures(name)
	return secret, nil
}

// RemainingAttempts reports how many more failures the named account
// tolerates before lockout engages.
func (k *Keystore) RemainingAttempts(name string) int {
	k.failedMu.Lock()
	defer k.failedMu.Unlock()
	recent := pruneExpired(k.failures[name], time.Now())
	remaining := MaxFailedAttempts - len(recent)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (k *Keystore) isLockedOut(name string) (bool, time.Duration) {
	k.failedMu.Lock()
	defer k.failedMu.Unlock()

	now := time.Now()
	recent := pruneExpired(k.failures[name], now)
	k.failures[name] = recent
	if len(recent) < MaxFailedAttempts {
		return false, 0
	}
	oldest := recent[0]
	remaining := LockoutWindow - now.Sub(oldest)
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

func (k *Keystore) recordFailure(name string) {
	k.failedMu.Lock()
	defer k.failedMu.Unlock()
	now := time.Now()
	recent := pruneExpired(k.failures[name], now)
	k.failures[name] = append(recent, now)
}

func (k *Keystore) clearFailures(name string) {
	k.failedMu.Lock()
	defer k.failedMu.Unlock()
	delete(k.failures, name)
}

func pruneExpired(attempts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-LockoutWindow)
	out := attempts[:0:0]
	for _, t := range attempts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// ListAccounts returns metadata only, in insertion order.
func (k *Keystore) ListAccounts() []AccountMetadata {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]AccountMetadata, 0, len(k.order))
	for _, name := range k.order {
		acc, ok := k.accounts[name]
		if !ok {
			continue
		}
		out = append(out, AccountMetadata{
			Name:        acc.Name,
			AccountType: acc.AccountType,
			Address:     acc.Address,
			CreatedAt:   acc.CreatedAt,
		})
	}
	return out
}

// HasAccount reports whether name exists in the keystore.
func (k *Keystore) HasAccount(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.accounts[name]
	return ok
}

// RemoveAccount deletes the named entry. Removing a name that does not
// exist is an error (not a silent no-op).
func (k *Keystore) RemoveAccount(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.accounts[name]; !ok {
		return apexerr.Config(fmt.Sprintf("account %q not found in keystore", name))
	}
	delete(k.accounts, name)
	for i, n := range k.order {
		if n == name {
			k.order = append(k.order[:i], k.order[i+1:]...)
			break
		}
	}
	return nil
}

// Save atomically writes the keystore to path: write to a temp file in the
// same directory, then rename over the destination, so a crash mid-write
// never corrupts the existing file. The final file is mode 0600.
func (k *Keystore) Save(path string) error {
	k.mu.Lock()
	doc := document{Version: KeystoreVersion}
	for _, name := range k.order {
		if acc, ok := k.accounts[name]; ok {
			doc.Accounts = append(doc.Accounts, acc)
		}
	}
	k.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return apexerr.Other(err)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apexerr.Serialization(err.Error())
	}

	tmp, err := os.CreateTemp(dir, ".keystore-*.tmp")
	if err != nil {
		return apexerr.Other(err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apexerr.Other(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apexerr.Other(err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return apexerr.Other(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return apexerr.Other(err)
	}
	return nil
}
