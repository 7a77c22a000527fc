package sdk

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// stubPipeline returns a fixed result or error without touching a network.
type stubPipeline struct {
	result apextypes.TransactionResult
	err    error
	delay  time.Duration
	calls  int32
}

func (p *stubPipeline) Execute(ctx context.Context, tx *apextypes.Transaction) (apextypes.TransactionResult, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return apextypes.TransactionResult{}, p.err
	}
	return p.result, nil
}

// stubWatcher returns a fixed status/error sequence, one entry per call,
// repeating the last entry once exhausted.
type stubWatcher struct {
	statuses []apextypes.TransactionStatus
	errs     []error
	calls    int
}

func (w *stubWatcher) Watch(ctx context.Context, txHash string, strategy apextypes.ConfirmationStrategy) (apextypes.TransactionStatus, error) {
	idx := w.calls
	if idx >= len(w.statuses) {
		idx = len(w.statuses) - 1
	}
	w.calls++
	var err error
	if idx < len(w.errs) {
		err = w.errs[idx]
	}
	return w.statuses[idx], err
}

func evmAddr(s string) apextypes.Address { return apextypes.Evm(s) }
func subAddr(s string) apextypes.Address { return apextypes.Substrate(s) }

func TestExecuteRoutesToEvmPipeline(t *testing.T) {
	evmPipe := &stubPipeline{result: apextypes.TransactionResult{SourceTxHash: "0xabc", Status: apextypes.ResultSuccess}}
	s := &SDK{evm: &ChainAdapter{Pipeline: evmPipe}}

	tx := apextypes.Transaction{From: evmAddr("0xfrom"), To: evmAddr("0xto"), Amount: big.NewInt(1)}
	result, err := s.Execute(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SourceTxHash != "0xabc" {
		t.Fatalf("source tx hash = %q, want 0xabc", result.SourceTxHash)
	}
	if atomic.LoadInt32(&evmPipe.calls) != 1 {
		t.Fatalf("evm pipeline calls = %d, want 1", evmPipe.calls)
	}
}

func TestExecuteRoutesToSubstratePipeline(t *testing.T) {
	subPipe := &stubPipeline{result: apextypes.TransactionResult{SourceTxHash: "0xdef", Status: apextypes.ResultSuccess}}
	s := &SDK{substrate: &ChainAdapter{Pipeline: subPipe}}

	tx := apextypes.Transaction{From: subAddr("5From"), To: subAddr("5To"), Amount: big.NewInt(1)}
	result, err := s.Execute(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SourceTxHash != "0xdef" {
		t.Fatalf("source tx hash = %q, want 0xdef", result.SourceTxHash)
	}
}

func TestExecuteUnsupportedChainReturnsError(t *testing.T) {
	s := &SDK{evm: &ChainAdapter{Pipeline: &stubPipeline{}}}

	tx := apextypes.Transaction{From: subAddr("5From"), To: subAddr("5To"), Amount: big.NewInt(1)}
	_, err := s.Execute(context.Background(), tx)
	if err == nil {
		t.Fatal("expected error for unsupported substrate chain, got nil")
	}
}

func TestGetTransactionStatusHybridFallsBackToEvm(t *testing.T) {
	subWatcher := &stubWatcher{
		statuses: []apextypes.TransactionStatus{{}},
		errs:     []error{errors.New("not found on substrate")},
	}
	evmWatcher := &stubWatcher{
		statuses: []apextypes.TransactionStatus{apextypes.Confirmed("0xblock", nil)},
	}
	s := &SDK{
		substrate: &ChainAdapter{Watcher: subWatcher},
		evm:       &ChainAdapter{Watcher: evmWatcher},
	}

	status, err := s.GetTransactionStatus(context.Background(), "0xhash", apextypes.ChainTypeHybrid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Kind != apextypes.TxConfirmed {
		t.Fatalf("status kind = %v, want confirmed", status.Kind)
	}
}

func TestGetTransactionStatusHybridUsesSubstrateWhenItSucceeds(t *testing.T) {
	subWatcher := &stubWatcher{statuses: []apextypes.TransactionStatus{apextypes.Finalized("0xblock", 10)}}
	evmWatcher := &stubWatcher{statuses: []apextypes.TransactionStatus{apextypes.Confirmed("0xother", nil)}}
	s := &SDK{
		substrate: &ChainAdapter{Watcher: subWatcher},
		evm:       &ChainAdapter{Watcher: evmWatcher},
	}

	status, err := s.GetTransactionStatus(context.Background(), "0xhash", apextypes.ChainTypeHybrid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Kind != apextypes.TxFinalized {
		t.Fatalf("status kind = %v, want finalized (substrate should win when it succeeds)", status.Kind)
	}
}

func TestIsChainSupported(t *testing.T) {
	s := &SDK{evm: &ChainAdapter{}}
	if !s.IsChainSupported(apextypes.ChainTypeEvm) {
		t.Fatal("expected evm to be supported")
	}
	if s.IsChainSupported(apextypes.ChainTypeSubstrate) {
		t.Fatal("expected substrate to be unsupported")
	}
	if !s.IsChainSupported(apextypes.ChainTypeHybrid) {
		t.Fatal("expected hybrid to be supported when either adapter is configured")
	}
}

func TestWaitForConfirmationReturnsOnFinalized(t *testing.T) {
	watcher := &stubWatcher{statuses: []apextypes.TransactionStatus{
		apextypes.Pending(),
		apextypes.Finalized("0xblock", 5),
	}}
	s := &SDK{evm: &ChainAdapter{Watcher: watcher}}

	err := s.WaitForConfirmation(context.Background(), "0xhash", apextypes.ChainTypeEvm, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if watcher.calls < 2 {
		t.Fatalf("expected at least 2 polls, got %d", watcher.calls)
	}
}

func TestWaitForConfirmationReturnsErrorOnFailed(t *testing.T) {
	watcher := &stubWatcher{statuses: []apextypes.TransactionStatus{apextypes.Failed("reverted")}}
	s := &SDK{evm: &ChainAdapter{Watcher: watcher}}

	err := s.WaitForConfirmation(context.Background(), "0xhash", apextypes.ChainTypeEvm, 5*time.Second)
	if err == nil {
		t.Fatal("expected error for failed transaction")
	}
}

func TestWaitForConfirmationTimesOut(t *testing.T) {
	watcher := &stubWatcher{statuses: []apextypes.TransactionStatus{apextypes.Pending()}}
	s := &SDK{evm: &ChainAdapter{Watcher: watcher}}

	err := s.WaitForConfirmation(context.Background(), "0xhash", apextypes.ChainTypeEvm, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestParallelExecutorSplitsSuccessAndFailure(t *testing.T) {
	evmPipe := &countingConditionalPipeline{failEveryThird: true}
	s := &SDK{evm: &ChainAdapter{Pipeline: evmPipe}}

	batch := NewTransactionBatch()
	for i := 0; i < 10; i++ {
		batch.Add(apextypes.Transaction{From: evmAddr("0xfrom"), To: evmAddr("0xto"), Amount: big.NewInt(1)})
	}

	executor := NewParallelExecutor(s, 3)
	result := executor.ExecuteBatch(context.Background(), batch)

	if result.Total() != 10 {
		t.Fatalf("total = %d, want 10", result.Total())
	}
	if result.SuccessCount() != 7 || result.FailureCount() != 3 {
		t.Fatalf("got %d successes / %d failures, want 7/3", result.SuccessCount(), result.FailureCount())
	}
}

func TestParallelExecutorRespectsConcurrencyLimit(t *testing.T) {
	const perTxLatency = 30 * time.Millisecond
	evmPipe := &stubPipeline{result: apextypes.TransactionResult{SourceTxHash: "0xok"}, delay: perTxLatency}
	s := &SDK{evm: &ChainAdapter{Pipeline: evmPipe}}

	batch := NewTransactionBatch()
	for i := 0; i < 10; i++ {
		batch.Add(apextypes.Transaction{From: evmAddr("0xfrom"), To: evmAddr("0xto"), Amount: big.NewInt(1)})
	}

	executor := NewParallelExecutor(s, 3)
	result := executor.ExecuteBatch(context.Background(), batch)

	minExpected := 4 * perTxLatency // ceil(10/3) == 4
	if result.ExecutionTime < minExpected {
		t.Fatalf("execution time = %v, want at least %v (concurrency limit of 3 over 10 txs)", result.ExecutionTime, minExpected)
	}
}

func TestParallelExecutorEmptyBatch(t *testing.T) {
	s := &SDK{evm: &ChainAdapter{Pipeline: &stubPipeline{}}}
	executor := NewParallelExecutor(s, 3)
	result := executor.ExecuteBatch(context.Background(), NewTransactionBatch())

	if result.Total() != 0 {
		t.Fatalf("total = %d, want 0 for an empty batch", result.Total())
	}
}

func TestParallelExecutorZeroConcurrencyTreatedAsOne(t *testing.T) {
	executor := NewParallelExecutor(&SDK{}, 0)
	if executor.concurrency != 1 {
		t.Fatalf("concurrency = %d, want 1", executor.concurrency)
	}
}

// countingConditionalPipeline fails every third call (1-indexed), matching
// the spec's 7-success/3-failure batch scenario deterministically.
type countingConditionalPipeline struct {
	failEveryThird bool
	count          int32
}

func (p *countingConditionalPipeline) Execute(ctx context.Context, tx *apextypes.Transaction) (apextypes.TransactionResult, error) {
	n := atomic.AddInt32(&p.count, 1)
	if p.failEveryThird && n%3 == 0 {
		return apextypes.TransactionResult{}, errors.New("simulated failure")
	}
	return apextypes.TransactionResult{SourceTxHash: "0xok", Status: apextypes.ResultSuccess}, nil
}

func TestTransactionBuilderRequiresFromToAmount(t *testing.T) {
	_, err := NewTransactionBuilder().To(evmAddr("0xto")).Amount(big.NewInt(1)).Build()
	if err == nil {
		t.Fatal("expected error for missing from address")
	}

	_, err = NewTransactionBuilder().From(evmAddr("0xfrom")).Amount(big.NewInt(1)).Build()
	if err == nil {
		t.Fatal("expected error for missing to address")
	}

	_, err = NewTransactionBuilder().From(evmAddr("0xfrom")).To(evmAddr("0xto")).Build()
	if err == nil {
		t.Fatal("expected error for missing amount")
	}
}

func TestTransactionBuilderBuildsCompleteTransaction(t *testing.T) {
	tx, err := NewTransactionBuilder().
		From(evmAddr("0xfrom")).
		To(evmAddr("0xto")).
		Amount(big.NewInt(1000)).
		GasLimit(21000).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.GasLimit == nil || *tx.GasLimit != 21000 {
		t.Fatalf("gas limit = %v, want 21000", tx.GasLimit)
	}
}

// stubEndpointPool fakes the pooled providers' add/remove surface without
// dialing a real endpoint.
type stubEndpointPool struct {
	endpoints []string
	addErr    error
	removeErr error
}

func (p *stubEndpointPool) AddEndpoint(ctx context.Context, endpoint string) error {
	if p.addErr != nil {
		return p.addErr
	}
	p.endpoints = append(p.endpoints, endpoint)
	return nil
}

func (p *stubEndpointPool) RemoveEndpoint(endpoint string) error {
	if p.removeErr != nil {
		return p.removeErr
	}
	for i, e := range p.endpoints {
		if e == endpoint {
			p.endpoints = append(p.endpoints[:i], p.endpoints[i+1:]...)
			return nil
		}
	}
	return errors.New("endpoint not found")
}

func TestChainAdapterAddRemoveEndpointRequiresPool(t *testing.T) {
	a := &ChainAdapter{}
	if err := a.AddEndpoint(context.Background(), "wss://new.example"); err == nil {
		t.Fatal("expected error adding an endpoint to an adapter with no pool")
	}
	if err := a.RemoveEndpoint("wss://new.example"); err == nil {
		t.Fatal("expected error removing an endpoint from an adapter with no pool")
	}
}

func TestChainAdapterAddRemoveEndpointDelegatesToPool(t *testing.T) {
	stub := &stubEndpointPool{endpoints: []string{"wss://a.example"}}
	a := &ChainAdapter{pool: stub}

	if err := a.AddEndpoint(context.Background(), "wss://b.example"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.endpoints) != 2 {
		t.Fatalf("endpoint count = %d, want 2 after AddEndpoint", len(stub.endpoints))
	}

	if err := a.RemoveEndpoint("wss://a.example"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.endpoints) != 1 || stub.endpoints[0] != "wss://b.example" {
		t.Fatalf("unexpected endpoints after removal: %v", stub.endpoints)
	}
}
