package provider

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/pool"
)

// stubEvmConn is a minimal evmPoolConn double so PooledEvmProvider can be
// exercised without dialing a real JSON-RPC endpoint.
type stubEvmConn struct {
	endpoint  string
	failNext  bool
	chainID   uint64
	blockNum  uint64
	balance   *big.Int
	healthErr error
	calls     int
}

func (s *stubEvmConn) Endpoint() string { return s.endpoint }

func (s *stubEvmConn) HealthCheck(ctx context.Context) error { return s.healthErr }

func (s *stubEvmConn) GetChainID(ctx context.Context) (uint64, error) {
	s.calls++
	if s.failNext {
		return 0, errors.New("boom")
	}
	return s.chainID, nil
}

func (s *stubEvmConn) GetBlockNumber(ctx context.Context) (uint64, error) {
	return s.blockNum, nil
}

func (s *stubEvmConn) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	return 0, nil
}

func (s *stubEvmConn) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return s.balance, nil
}

func (s *stubEvmConn) GetGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (s *stubEvmConn) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	return 21000, nil
}

func (s *stubEvmConn) SendTransaction(ctx context.Context, encoded []byte) (string, error) {
	return "0xhash", nil
}

func (s *stubEvmConn) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	return &Receipt{TxHash: txHash, Found: true}, nil
}

func (s *stubEvmConn) LatestBaseFee(ctx context.Context) (*big.Int, bool, error) {
	return big.NewInt(100), true, nil
}

func TestPooledEvmProviderRoutesCallsAndMarksHealth(t *testing.T) {
	good := &stubEvmConn{endpoint: "good", chainID: 5}
	bad := &stubEvmConn{endpoint: "bad", failNext: true}

	p, err := newPooledEvmProvider([]pool.Connection{good, bad})
	if err != nil {
		t.Fatalf("newPooledEvmProvider: %v", err)
	}

	// Drive enough calls to exercise both round-robin slots.
	for i := 0; i < 4; i++ {
		p.GetChainID(context.Background())
	}

	if good.calls == 0 || bad.calls == 0 {
		t.Fatalf("expected round-robin to hit both connections, good=%d bad=%d", good.calls, bad.calls)
	}

	if _, ok := p.pool.Health(bad); !ok {
		t.Fatal("expected bad connection to have a health entry")
	}
}

func TestPooledEvmProviderRemoveEndpointDropsFromRotation(t *testing.T) {
	good := &stubEvmConn{endpoint: "good", chainID: 5}
	other := &stubEvmConn{endpoint: "other", chainID: 7}

	p, err := newPooledEvmProvider([]pool.Connection{good, other})
	if err != nil {
		t.Fatalf("newPooledEvmProvider: %v", err)
	}

	if err := p.RemoveEndpoint("other"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.pool.EndpointCount() != 1 {
		t.Fatalf("endpoint count = %d, want 1 after RemoveEndpoint", p.pool.EndpointCount())
	}

	for i := 0; i < 5; i++ {
		p.GetChainID(context.Background())
	}
	if other.calls != 0 {
		t.Fatal("removed endpoint should never receive calls again")
	}
}

func TestPooledEvmProviderRemoveEndpointRejectsLast(t *testing.T) {
	good := &stubEvmConn{endpoint: "good", chainID: 5}

	p, err := newPooledEvmProvider([]pool.Connection{good})
	if err != nil {
		t.Fatalf("newPooledEvmProvider: %v", err)
	}

	if err := p.RemoveEndpoint("good"); err == nil {
		t.Fatal("expected error removing the last remaining endpoint")
	}
}

func TestPooledEvmProviderFailoverAfterMaxFailures(t *testing.T) {
	flaky := &stubEvmConn{endpoint: "flaky", failNext: true}
	solid := &stubEvmConn{endpoint: "solid", chainID: 1}

	pl, err := pool.NewWithConfig([]pool.Connection{flaky, solid}, pool.Config{
		MaxFailures:         1,
		UnhealthyRetryDelay: time.Hour,
		HealthCheckInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("pool.NewWithConfig: %v", err)
	}
	p := &PooledEvmProvider{pool: pl}

	// First call may land on either connection; keep calling until the
	// flaky one has failed at least once and been marked unhealthy.
	for i := 0; i < 10; i++ {
		p.GetChainID(context.Background())
		if h, ok := pl.Health(flaky); ok && !h.IsHealthy {
			break
		}
	}

	health, ok := pl.Health(flaky)
	if !ok || health.IsHealthy {
		t.Fatalf("expected flaky connection to be marked unhealthy, got %+v", health)
	}

	// Subsequent Get calls should now prefer the solid connection.
	for i := 0; i < 4; i++ {
		p.GetChainID(context.Background())
	}
	if solid.calls == 0 {
		t.Fatal("expected solid connection to absorb traffic once flaky was marked unhealthy")
	}
}

type stubSubstrateConn struct {
	endpoint string
	balance  *big.Int
}

func (s *stubSubstrateConn) Endpoint() string                              { return s.endpoint }
func (s *stubSubstrateConn) HealthCheck(ctx context.Context) error         { return nil }
func (s *stubSubstrateConn) GetChainID(ctx context.Context) (uint64, error) { return 0, nil }
func (s *stubSubstrateConn) GetBlockNumber(ctx context.Context) (uint64, error) {
	return 42, nil
}
func (s *stubSubstrateConn) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	return 3, nil
}
func (s *stubSubstrateConn) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return s.balance, nil
}
func (s *stubSubstrateConn) SendTransaction(ctx context.Context, encoded []byte) (string, error) {
	return "0xabc", nil
}
func (s *stubSubstrateConn) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	return &Receipt{TxHash: txHash, Found: false}, nil
}
func (s *stubSubstrateConn) PaymentQueryInfo(ctx context.Context, encodedExtrinsic string) (json.RawMessage, error) {
	return json.RawMessage(`{"partialFee":"100"}`), nil
}
func (s *stubSubstrateConn) GetFinalizedHead(ctx context.Context) (string, error) {
	return "0xfinalized", nil
}
func (s *stubSubstrateConn) GetBlockHash(ctx context.Context, number uint64) (string, error) {
	return "0xblock", nil
}
func (s *stubSubstrateConn) GetBlock(ctx context.Context, blockHash string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func TestPooledSubstrateProviderDelegates(t *testing.T) {
	conn := &stubSubstrateConn{endpoint: "only", balance: big.NewInt(7)}
	p, err := newPooledSubstrateProvider([]pool.Connection{conn})
	if err != nil {
		t.Fatalf("newPooledSubstrateProvider: %v", err)
	}

	bal, err := p.GetBalance(context.Background(), "addr")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("expected balance 7, got %s", bal)
	}

	head, err := p.GetFinalizedHead(context.Background())
	if err != nil || head != "0xfinalized" {
		t.Fatalf("GetFinalizedHead: %v %q", err, head)
	}
}

func TestPooledSubstrateProviderRemoveEndpointRejectsLast(t *testing.T) {
	conn := &stubSubstrateConn{endpoint: "only", balance: big.NewInt(7)}
	p, err := newPooledSubstrateProvider([]pool.Connection{conn})
	if err != nil {
		t.Fatalf("newPooledSubstrateProvider: %v", err)
	}

	if err := p.RemoveEndpoint("only"); err == nil {
		t.Fatal("expected error removing the last remaining endpoint")
	}
}

func TestPooledSubstrateProviderRemoveEndpointDropsFromRotation(t *testing.T) {
	a := &stubSubstrateConn{endpoint: "a", balance: big.NewInt(1)}
	b := &stubSubstrateConn{endpoint: "b", balance: big.NewInt(2)}
	p, err := newPooledSubstrateProvider([]pool.Connection{a, b})
	if err != nil {
		t.Fatalf("newPooledSubstrateProvider: %v", err)
	}

	if err := p.RemoveEndpoint("b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.pool.EndpointCount() != 1 {
		t.Fatalf("endpoint count = %d, want 1 after RemoveEndpoint", p.pool.EndpointCount())
	}
}
