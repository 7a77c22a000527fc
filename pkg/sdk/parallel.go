package sdk

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// TransactionBatch collects transactions to be executed together by a
// ParallelExecutor. Ordering within the batch has no bearing on execution
// order once submitted: transactions run concurrently up to the executor's
// concurrency limit.
type TransactionBatch struct {
	ID           uuid.UUID
	transactions []apextypes.Transaction
}

// NewTransactionBatch builds an empty, uniquely-tagged batch.
func NewTransactionBatch() *TransactionBatch {
	return &TransactionBatch{ID: uuid.New()}
}

// Add appends a transaction to the batch.
func (b *TransactionBatch) Add(tx apextypes.Transaction) {
	b.transactions = append(b.transactions, tx)
}

// Len reports how many transactions are queued.
func (b *TransactionBatch) Len() int {
	return len(b.transactions)
}

// IsEmpty reports whether the batch has no transactions.
func (b *TransactionBatch) IsEmpty() bool {
	return len(b.transactions) == 0
}

// txFailure pairs a failed transaction with the error that rejected it.
type txFailure struct {
	Transaction apextypes.Transaction
	Err         error
}

// BatchExecutionResult reports every transaction's outcome and the wall
// time the whole batch took.
type BatchExecutionResult struct {
	BatchID       uuid.UUID
	Successes     []apextypes.TransactionResult
	Failures      []txFailure
	ExecutionTime time.Duration
}

// Total returns successes plus failures.
func (r BatchExecutionResult) Total() int {
	return len(r.Successes) + len(r.Failures)
}

// SuccessCount returns the number of transactions that executed cleanly.
func (r BatchExecutionResult) SuccessCount() int {
	return len(r.Successes)
}

// FailureCount returns the number of transactions that errored.
func (r BatchExecutionResult) FailureCount() int {
	return len(r.Failures)
}

// SuccessRate returns successes as a percentage of Total, or 0 for an
// empty result.
func (r BatchExecutionResult) SuccessRate() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.SuccessCount()) / float64(r.Total()) * 100
}

// ParallelExecutor runs a TransactionBatch's transactions concurrently
// through an SDK, bounded by a semaphore so a large batch never opens more
// than concurrency connections to the underlying chains at once.
type ParallelExecutor struct {
	sdk         *SDK
	concurrency int
}

// NewParallelExecutor builds an executor over sdk with the given
// concurrency limit. A limit of 0 or less is treated as 1, matching the
// source project's "never block forever on a zero-permit semaphore" rule.
func NewParallelExecutor(sdk *SDK, concurrency int) *ParallelExecutor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ParallelExecutor{sdk: sdk, concurrency: concurrency}
}

// ExecuteBatch runs every transaction in batch through the SDK's dispatch
// layer, gated by the executor's concurrency limit, and collects successes
// and failures independently: one transaction's failure never blocks or
// cancels the others.
func (e *ParallelExecutor) ExecuteBatch(ctx context.Context, batch *TransactionBatch) BatchExecutionResult {
	start := time.Now()

	if batch.IsEmpty() {
		return BatchExecutionResult{BatchID: batch.ID}
	}

	sem := make(chan struct{}, e.concurrency)
	var mu sync.Mutex
	var successes []apextypes.TransactionResult
	var failures []txFailure

	var wg sync.WaitGroup
	for _, tx := range batch.transactions {
		tx := tx
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := e.sdk.Execute(ctx, tx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, txFailure{Transaction: tx, Err: err})
				return
			}
			successes = append(successes, result)
		}()
	}
	wg.Wait()

	return BatchExecutionResult{
		BatchID:       batch.ID,
		Successes:     successes,
		Failures:      failures,
		ExecutionTime: time.Since(start),
	}
}
