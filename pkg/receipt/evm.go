package receipt

import (
	"context"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
	"github.com/apex-sdk/apex-sdk-go/pkg/provider"
)

// EvmReceiptSource is the capability the EVM watcher needs.
type EvmReceiptSource interface {
	GetTransactionReceipt(ctx context.Context, txHash string) (*provider.Receipt, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
}

// EvmWatcher polls for a receipt with the 2s-to-12s exponential backoff
// schedule, then applies the confirmation-blocks rule for WaitForFinality.
type EvmWatcher struct {
	source             EvmReceiptSource
	confirmationBlocks uint64
	timeout            time.Duration
}

// NewEvmWatcher builds a watcher requiring confirmationBlocks depth
// (default 1) before treating a status=1 receipt as Finalized.
func NewEvmWatcher(source EvmReceiptSource, confirmationBlocks uint64) *EvmWatcher {
	if confirmationBlocks == 0 {
		confirmationBlocks = 1
	}
	return &EvmWatcher{source: source, confirmationBlocks: confirmationBlocks, timeout: DefaultTimeout}
}

// WithTimeout overrides the default 60s overall wait.
func (w *EvmWatcher) WithTimeout(d time.Duration) *EvmWatcher {
	w.timeout = d
	return w
}

// Watch polls until the transaction reaches the status required by
// strategy, or the overall timeout elapses.
func (w *EvmWatcher) Watch(ctx context.Context, txHash string, strategy apextypes.ConfirmationStrategy) (apextypes.TransactionStatus, error) {
	if strategy == apextypes.ImmediateConfirmation {
		return apextypes.Pending(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	nextInterval := pollSchedule()
	for {
		status, err := w.poll(ctx, txHash, strategy)
		if err != nil {
			return apextypes.TransactionStatus{}, err
		}
		if status.Kind != apextypes.TxPending && status.Kind != apextypes.TxInMempool {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return apextypes.Unknown(), apexerr.Timeout("receipt watch deadline exceeded")
		case <-time.After(nextInterval()):
		}
	}
}

func (w *EvmWatcher) poll(ctx context.Context, txHash string, strategy apextypes.ConfirmationStrategy) (apextypes.TransactionStatus, error) {
	receipt, err := w.source.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return apextypes.TransactionStatus{}, err
	}
	if !receipt.Found {
		return apextypes.Pending(), nil
	}

	if receipt.Status == 0 {
		return apextypes.Failed("reverted"), nil
	}

	blockNumber := receipt.BlockNumber
	if strategy == apextypes.WaitForFinalityConfirmation {
		current, err := w.source.GetBlockNumber(ctx)
		if err != nil {
			return apextypes.TransactionStatus{}, err
		}
		if current < blockNumber || current-blockNumber < w.confirmationBlocks {
			// Not yet finalized. WaitForFinality must never surface
			// Confirmed, so report InMempool to keep the watch loop
			// polling rather than returning early.
			return apextypes.InMempool(), nil
		}
		return apextypes.Finalized(receipt.BlockHash, blockNumber), nil
	}

	return apextypes.Confirmed(receipt.BlockHash, &blockNumber), nil
}
