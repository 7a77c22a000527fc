package pipeline

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
	"github.com/apex-sdk/apex-sdk-go/pkg/broadcast"
	"github.com/apex-sdk/apex-sdk-go/pkg/fee"
	"github.com/apex-sdk/apex-sdk-go/pkg/nonce"
)

// --- EVM stubs ---

type stubEvmWallet struct {
	addr apextypes.Address
}

func (w *stubEvmWallet) Address() apextypes.Address { return w.addr }

func (w *stubEvmWallet) SignHash(hash []byte) ([]byte, error) {
	sig := make([]byte, 65)
	sig[31] = 1
	sig[63] = 1
	return sig, nil
}

type stubEvmFeeSource struct{}

func (s *stubEvmFeeSource) GetGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (s *stubEvmFeeSource) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	return 21000, nil
}
func (s *stubEvmFeeSource) LatestBaseFee(ctx context.Context) (*big.Int, bool, error) {
	return nil, false, nil
}

type stubNonceSource struct{ n uint64 }

func (s *stubNonceSource) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	return s.n, nil
}

type stubSender struct {
	failCount int
	attempts  int
	hash      string
}

func (s *stubSender) SendTransaction(ctx context.Context, encoded []byte) (string, error) {
	s.attempts++
	if s.attempts <= s.failCount {
		return "", apexerr.Transaction("nonce too low").WithRetryable(true)
	}
	return s.hash, nil
}

type stubFatalSender struct{ attempts int }

func (s *stubFatalSender) SendTransaction(ctx context.Context, encoded []byte) (string, error) {
	s.attempts++
	return "", apexerr.Transaction("insufficient funds")
}

type stubWatcher struct {
	status apextypes.TransactionStatus
}

func (w *stubWatcher) Watch(ctx context.Context, txHash string, strategy apextypes.ConfirmationStrategy) (apextypes.TransactionStatus, error) {
	return w.status, nil
}

func newEvmPipelineHarness(t *testing.T, sender *stubSender) *EvmPipeline {
	t.Helper()
	estimator := fee.NewEvmEstimator(&stubEvmFeeSource{})
	nonces := nonce.NewManager(&stubNonceSource{n: 5})
	b := broadcast.New(sender)
	watcher := &stubWatcher{status: apextypes.Confirmed("0xblock", uint64Ptr(100))}
	cfg := DefaultConfig()
	cfg.BackoffBase = 0 // no real sleeping in tests
	return NewEvmPipeline(&stubEvmWallet{addr: apextypes.Evm("0x0000000000000000000000000000000000000001")}, estimator, nonces, b, watcher, 1, cfg)
}

func uint64Ptr(v uint64) *uint64 { return &v }

func TestEvmPipelineRetryBoundedProperty(t *testing.T) {
	const maxRetries = 3
	cases := []struct {
		failures    int
		wantSuccess bool
		wantAttempt int
	}{
		{failures: 0, wantSuccess: true, wantAttempt: 1},
		{failures: 1, wantSuccess: true, wantAttempt: 2},
		{failures: 2, wantSuccess: true, wantAttempt: 3},
		{failures: 3, wantSuccess: false, wantAttempt: maxRetries},
	}
	for _, c := range cases {
		sender := &stubSender{failCount: c.failures, hash: "0xabc"}
		p := newEvmPipelineHarness(t, sender)
		p.cfg.MaxRetries = maxRetries

		_, err := p.Execute(context.Background(), &apextypes.Transaction{
			From:   p.wallet.Address(),
			To:     apextypes.Evm("0x0000000000000000000000000000000000000002"),
			Amount: big.NewInt(100),
		})

		if c.wantSuccess && err != nil {
			t.Errorf("failures=%d: expected success, got error %v", c.failures, err)
		}
		if !c.wantSuccess && err == nil {
			t.Errorf("failures=%d: expected failure (k=max_retries must not succeed)", c.failures)
		}
		if sender.attempts != c.wantAttempt {
			t.Errorf("failures=%d: attempt count = %d, want %d", c.failures, sender.attempts, c.wantAttempt)
		}
	}
}

func TestEvmPipelineAbortsImmediatelyOnFatalError(t *testing.T) {
	sender := &stubFatalSender{}
	estimator := fee.NewEvmEstimator(&stubEvmFeeSource{})
	nonces := nonce.NewManager(&stubNonceSource{n: 5})
	b := broadcast.New(sender)
	watcher := &stubWatcher{status: apextypes.Confirmed("0xblock", uint64Ptr(100))}
	cfg := DefaultConfig()
	cfg.BackoffBase = 0
	p := NewEvmPipeline(&stubEvmWallet{addr: apextypes.Evm("0x0000000000000000000000000000000000000001")}, estimator, nonces, b, watcher, 1, cfg)

	_, err := p.Execute(context.Background(), &apextypes.Transaction{
		From:   p.wallet.Address(),
		To:     apextypes.Evm("0x0000000000000000000000000000000000000002"),
		Amount: big.NewInt(100),
	})
	if err == nil {
		t.Fatalf("expected fatal broadcast error to abort")
	}
	if sender.attempts != 1 {
		t.Fatalf("fatal error should not be retried, got %d attempts", sender.attempts)
	}
}

func TestEvmPipelineImmediateStrategyNeverCallsWatcherPoll(t *testing.T) {
	sender := &stubSender{hash: "0xabc"}
	estimator := fee.NewEvmEstimator(&stubEvmFeeSource{})
	nonces := nonce.NewManager(&stubNonceSource{n: 5})
	b := broadcast.New(sender)
	watcher := &stubWatcher{status: apextypes.Pending()}
	cfg := DefaultConfig()
	cfg.BackoffBase = 0
	cfg.ConfirmationStrategy = apextypes.ImmediateConfirmation
	p := NewEvmPipeline(&stubEvmWallet{addr: apextypes.Evm("0x0000000000000000000000000000000000000001")}, estimator, nonces, b, watcher, 1, cfg)

	result, err := p.Execute(context.Background(), &apextypes.Transaction{
		From:   p.wallet.Address(),
		To:     apextypes.Evm("0x0000000000000000000000000000000000000002"),
		Amount: big.NewInt(100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != apextypes.ResultPending {
		t.Fatalf("got %v, want Pending for Immediate strategy", result.Status)
	}
}

// --- substrate stubs ---

type stubSubstrateWallet struct {
	addr apextypes.Address
}

func (w *stubSubstrateWallet) Address() apextypes.Address { return w.addr }

func (w *stubSubstrateWallet) SignHash(payload []byte) ([]byte, error) {
	return make([]byte, 64), nil
}

type stubSubstrateFeeSource struct{}

func (s *stubSubstrateFeeSource) PaymentQueryInfo(ctx context.Context, encodedExtrinsic string) (json.RawMessage, error) {
	return json.RawMessage(`{"partialFee":"100"}`), nil
}

func substrateAddressFixture(seedByte byte) apextypes.Address {
	pubkey := make([]byte, 32)
	for i := range pubkey {
		pubkey[i] = seedByte
	}
	encoded, _ := apextypes.EncodeSS58(42, pubkey)
	return apextypes.Substrate(encoded)
}

func newSubstratePipelineHarness(sender *stubSender) *SubstratePipeline {
	estimator := fee.NewSubstrateEstimator(&stubSubstrateFeeSource{})
	nonces := nonce.NewManager(&stubNonceSource{n: 3})
	b := broadcast.New(sender)
	watcher := &stubWatcher{status: apextypes.Confirmed("0xblock", uint64Ptr(50))}
	cfg := DefaultConfig()
	cfg.BackoffBase = 0
	params := SubstrateChainParams{SpecVersion: 9000, TransactionVersion: 1, BalancesPalletIndex: 5, TransferCallIndex: 0}
	return NewSubstratePipeline(&stubSubstrateWallet{addr: substrateAddressFixture(1)}, estimator, nonces, b, watcher, params, cfg)
}

func TestSubstratePipelineRejectsCallData(t *testing.T) {
	sender := &stubSender{hash: "0xabc"}
	p := newSubstratePipelineHarness(sender)

	_, err := p.Execute(context.Background(), &apextypes.Transaction{
		From:   p.wallet.Address(),
		To:     substrateAddressFixture(2),
		Amount: big.NewInt(100),
		Data:   []byte{0x01},
	})
	if err == nil {
		t.Fatalf("expected substrate pipeline to reject a transaction carrying call data")
	}
	ae, ok := err.(*apexerr.Error)
	if !ok || ae.Kind != apexerr.KindConfig {
		t.Fatalf("expected a Config error, got %v", err)
	}
}

func TestSubstratePipelineSucceedsOnPlainTransfer(t *testing.T) {
	sender := &stubSender{hash: "0xabc"}
	p := newSubstratePipelineHarness(sender)

	result, err := p.Execute(context.Background(), &apextypes.Transaction{
		From:   p.wallet.Address(),
		To:     substrateAddressFixture(2),
		Amount: big.NewInt(100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SourceTxHash != "0xabc" {
		t.Fatalf("got hash %q, want 0xabc", result.SourceTxHash)
	}
	if result.Status != apextypes.ResultSuccess {
		t.Fatalf("got %v, want Success (mapped from Confirmed)", result.Status)
	}
}

func TestSubstratePipelineRetriesOnRetryableBroadcastError(t *testing.T) {
	sender := &stubSender{failCount: 1, hash: "0xabc"}
	p := newSubstratePipelineHarness(sender)

	_, err := p.Execute(context.Background(), &apextypes.Transaction{
		From:   p.wallet.Address(),
		To:     substrateAddressFixture(2),
		Amount: big.NewInt(100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.attempts != 2 {
		t.Fatalf("attempts = %d, want 2", sender.attempts)
	}
}
