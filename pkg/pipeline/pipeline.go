// Package pipeline drives a transaction through the
// Prepared → Signed → Broadcast → Confirming → Terminal state machine,
// orchestrating the wallet, fee, nonce, broadcast, and receipt packages.
package pipeline

import (
	"context"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// State names the transaction pipeline's position per §4.10.
type State int

const (
	StatePrepared State = iota
	StateSigned
	StateBroadcast
	StateConfirming
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StateSigned:
		return "signed"
	case StateBroadcast:
		return "broadcast"
	case StateConfirming:
		return "confirming"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// DefaultMaxRetries bounds the Broadcast transition's retry loop.
const DefaultMaxRetries = 3

// DefaultBackoffBase is the initial sleep between broadcast retries;
// it doubles per attempt.
const DefaultBackoffBase = 2 * time.Second

// Config tunes the retry and confirmation behavior both ecosystem
// pipelines share.
type Config struct {
	MaxRetries           int
	BackoffBase          time.Duration
	Jitter               bool
	ConfirmationStrategy apextypes.ConfirmationStrategy
}

// DefaultConfig matches §4.10 and §3: 3 retries, 2s initial backoff,
// wait-for-inclusion confirmation.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           DefaultMaxRetries,
		BackoffBase:          DefaultBackoffBase,
		ConfirmationStrategy: apextypes.DefaultConfirmationStrategy,
	}
}

// StateObserver receives a notification on every transition, with the time
// spent in the state being left. pkg/metrics implements this to satisfy
// §4.10's "every transition increments a metric counter" observability
// requirement; nil observers are fine; callers that don't care pass nil.
type StateObserver interface {
	OnTransition(from State, elapsed time.Duration)
}

// observe reports a transition if obs is non-nil, guarding callers from
// needing a nil check at every call site.
func observe(obs StateObserver, from State, since time.Time) {
	if obs == nil {
		return
	}
	obs.OnTransition(from, time.Since(since))
}

// Pipeline is the capability both ecosystem state machines satisfy.
type Pipeline interface {
	Execute(ctx context.Context, tx *apextypes.Transaction) (apextypes.TransactionResult, error)
}
