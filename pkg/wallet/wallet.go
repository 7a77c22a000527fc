// Package wallet holds in-memory key material and signing primitives for
// both ecosystems behind one small capability interface.
package wallet

import (
	"fmt"
	"sync"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// Signer is the capability every wallet dialect satisfies: sign an
// already-encoded transaction and report the signer's address.
type Signer interface {
	SignTransaction(encodedTx []byte) ([]byte, error)
	Address() apextypes.Address
}

// Manager holds an ordered collection of wallets with an "active" index.
// Operations target the active wallet unless an explicit index is given.
type Manager struct {
	mu      sync.RWMutex
	wallets []Signer
	active  int
}

// NewManager returns an empty wallet manager.
func NewManager() *Manager {
	return &Manager{active: -1}
}

// AddWallet appends a wallet and, if it is the first one added, makes it
// active.
func (m *Manager) AddWallet(w Signer) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets = append(m.wallets, w)
	idx := len(m.wallets) - 1
	if m.active < 0 {
		m.active = idx
	}
	return idx
}

// ActiveWallet returns the currently active wallet.
func (m *Manager) ActiveWallet() (Signer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active < 0 || m.active >= len(m.wallets) {
		return nil, apexerr.Config("no active wallet configured")
	}
	return m.wallets[m.active], nil
}

// Wallet returns the wallet at a specific index.
func (m *Manager) Wallet(index int) (Signer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.wallets) {
		return nil, apexerr.Config(fmt.Sprintf("wallet index %d out of range", index))
	}
	return m.wallets[index], nil
}

// SetActive changes which wallet subsequent operations target.
func (m *Manager) SetActive(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.wallets) {
		return apexerr.Config(fmt.Sprintf("wallet index %d out of range", index))
	}
	m.active = index
	return nil
}

// WalletCount reports how many wallets are managed.
func (m *Manager) WalletCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.wallets)
}

// ListAddresses returns every managed wallet's address, in insertion order.
func (m *Manager) ListAddresses() []apextypes.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]apextypes.Address, len(m.wallets))
	for i, w := range m.wallets {
		out[i] = w.Address()
	}
	return out
}
