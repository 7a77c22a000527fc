// Package nonce implements the per-account nonce cache: query the chain
// once, then increment locally under a per-account critical section.
package nonce

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// ChainNonceSource is the capability the manager needs from a provider: the
// chain's view of an account's next nonce.
type ChainNonceSource interface {
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
}

type accountState struct {
	mu      sync.Mutex
	known   bool
	next    uint64
}

// Manager hands out strictly monotonic nonces per account. Concurrent
// requests for the same account are serialized so consecutive nonces never
// collide and never gap.
type Manager struct {
	source ChainNonceSource

	mu       sync.Mutex
	accounts map[string]*accountState

	logger *log.Logger
}

// NewManager builds a nonce manager over a chain nonce source.
func NewManager(source ChainNonceSource) *Manager {
	return &Manager{
		source:   source,
		accounts: make(map[string]*accountState),
		logger:   log.New(log.Writer(), "[nonce] ", log.LstdFlags),
	}
}

func (m *Manager) stateFor(address string) *accountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[address]
	if !ok {
		st = &accountState{}
		m.accounts[address] = st
	}
	return st
}

// Next returns the next nonce for address, querying the chain on first use
// and incrementing a local cache thereafter.
func (m *Manager) Next(ctx context.Context, address string) (uint64, error) {
	st := m.stateFor(address)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.known {
		chainNonce, err := m.source.GetTransactionCount(ctx, address)
		if err != nil {
			return 0, err
		}
		st.next = chainNonce
		st.known = true
		m.logger.Printf("seeded nonce for %s at %d", address, chainNonce)
	}

	n := st.next
	st.next++
	return n, nil
}

// Reconcile re-queries the chain for address and resets the local cache,
// returning the nonce the caller's retried broadcast should consume. Like
// Next, it leaves the cache positioned one past the returned value so the
// next Next() or Reconcile() never hands out this nonce again.
func (m *Manager) Reconcile(ctx context.Context, address string) (uint64, error) {
	st := m.stateFor(address)
	st.mu.Lock()
	defer st.mu.Unlock()

	chainNonce, err := m.source.GetTransactionCount(ctx, address)
	if err != nil {
		return 0, err
	}
	st.next = chainNonce + 1
	st.known = true
	m.logger.Printf("reconciled nonce for %s to %d", address, chainNonce)
	return chainNonce, nil
}

// Peek returns the next nonce the manager would hand out without consuming
// it. It errors if the account has not been seeded yet.
func (m *Manager) Peek(address string) (uint64, error) {
	st := m.stateFor(address)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.known {
		return 0, apexerr.Config(fmt.Sprintf("nonce for %s has not been queried yet", address))
	}
	return st.next, nil
}
