// Package receipt implements the driver loop that converges on a terminal
// status for a broadcast transaction hash.
package receipt

import (
	"context"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// MaxBlockSearchDepth bounds how far back history reconstruction walks when
// no subscription state is available.
const MaxBlockSearchDepth = 100

// FinalizationThreshold is how many blocks of depth a substrate block needs
// under the finalized head before it counts as Finalized rather than merely
// Confirmed.
const FinalizationThreshold = 10

// DefaultTimeout is the hard overall wait before a watch gives up.
const DefaultTimeout = 60 * time.Second

// pollSchedule returns the EVM poll interval schedule: 2s initial,
// exponential growth capped at 12s.
func pollSchedule() func() time.Duration {
	interval := 2 * time.Second
	const maxInterval = 12 * time.Second
	return func() time.Duration {
		current := interval
		if interval < maxInterval {
			interval *= 2
			if interval > maxInterval {
				interval = maxInterval
			}
		}
		return current
	}
}

// Watcher is the capability both ecosystem watchers satisfy.
type Watcher interface {
	Watch(ctx context.Context, txHash string, strategy apextypes.ConfirmationStrategy) (apextypes.TransactionStatus, error)
}
