package provider

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/pool"
)

// PooledEvmProvider round-robins every call across a set of EVM endpoints,
// marking each healthy or unhealthy based on whether the call errored, so a
// single failing RPC endpoint doesn't fail every subsequent call until its
// retry delay elapses. It implements the same capability interfaces a bare
// *EvmProvider does, so it is a drop-in substitute wherever one endpoint
// wasn't enough.
type PooledEvmProvider struct {
	pool *pool.Pool
}

// evmPoolConn is what a pooled connection must provide: both the pool's own
// health-check capability and every RPC an EvmProvider exposes. *EvmProvider
// satisfies it, and so can a test double.
type evmPoolConn interface {
	pool.Connection
	EvmClient
}

// NewPooledEvmProvider connects to every endpoint and wraps the resulting
// providers in a round-robin pool.
func NewPooledEvmProvider(ctx context.Context, endpoints []string) (*PooledEvmProvider, error) {
	if len(endpoints) == 0 {
		return nil, apexerr.Config("at least one evm endpoint is required")
	}
	conns := make([]pool.Connection, 0, len(endpoints))
	for _, ep := range endpoints {
		p, err := NewEvmProvider(ctx, ep)
		if err != nil {
			return nil, err
		}
		conns = append(conns, p)
	}
	return newPooledEvmProvider(conns)
}

func newPooledEvmProvider(conns []pool.Connection) (*PooledEvmProvider, error) {
	pl, err := pool.New(conns)
	if err != nil {
		return nil, err
	}
	return &PooledEvmProvider{pool: pl}, nil
}

// StartHealthChecker runs background health checks until ctx is canceled.
func (p *PooledEvmProvider) StartHealthChecker(ctx context.Context) {
	p.pool.StartHealthChecker(ctx)
}

// AddEndpoint connects to a new evm endpoint and adds it to the pool,
// available for round-robin selection immediately.
func (p *PooledEvmProvider) AddEndpoint(ctx context.Context, endpoint string) error {
	conn, err := NewEvmProvider(ctx, endpoint)
	if err != nil {
		return err
	}
	p.pool.AddEndpoint(conn)
	return nil
}

// RemoveEndpoint drops the endpoint matching the given URL from the pool.
// Removing the last remaining endpoint is rejected.
func (p *PooledEvmProvider) RemoveEndpoint(endpoint string) error {
	return p.pool.RemoveEndpointByURL(endpoint)
}

func (p *PooledEvmProvider) current() evmPoolConn {
	return p.pool.Get().(evmPoolConn)
}

func (p *PooledEvmProvider) call(ctx context.Context, fn func(evmPoolConn) error) error {
	conn := p.current()
	start := time.Now()
	err := fn(conn)
	if err != nil {
		p.pool.MarkUnhealthy(conn)
		return err
	}
	p.pool.MarkHealthy(conn, time.Since(start))
	return nil
}

func (p *PooledEvmProvider) GetChainID(ctx context.Context) (uint64, error) {
	var out uint64
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.GetChainID(ctx)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) GetBlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.GetBlockNumber(ctx)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	var out uint64
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.GetTransactionCount(ctx, address)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var out *big.Int
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.GetBalance(ctx, address)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) GetGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.GetGasPrice(ctx)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	var out uint64
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.EstimateGas(ctx, from, to, value, data)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) SendTransaction(ctx context.Context, encoded []byte) (string, error) {
	var out string
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.SendTransaction(ctx, encoded)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var out *Receipt
	err := p.call(ctx, func(c evmPoolConn) error {
		v, err := c.GetTransactionReceipt(ctx, txHash)
		out = v
		return err
	})
	return out, err
}

func (p *PooledEvmProvider) LatestBaseFee(ctx context.Context) (*big.Int, bool, error) {
	var fee *big.Int
	var activated bool
	err := p.call(ctx, func(c evmPoolConn) error {
		f, a, err := c.LatestBaseFee(ctx)
		fee, activated = f, a
		return err
	})
	return fee, activated, err
}

// PooledSubstrateProvider is the substrate analogue of PooledEvmProvider.
type PooledSubstrateProvider struct {
	pool *pool.Pool
}

// substratePoolConn is what a pooled connection must provide: the pool's
// health-check capability plus every RPC a SubstrateProvider exposes.
// *SubstrateProvider satisfies it, and so can a test double.
type substratePoolConn interface {
	pool.Connection
	SubstrateClient
}

// NewPooledSubstrateProvider connects to every endpoint and wraps the
// resulting providers in a round-robin pool.
func NewPooledSubstrateProvider(ctx context.Context, endpoints []string) (*PooledSubstrateProvider, error) {
	if len(endpoints) == 0 {
		return nil, apexerr.Config("at least one substrate endpoint is required")
	}
	conns := make([]pool.Connection, 0, len(endpoints))
	for _, ep := range endpoints {
		p, err := NewSubstrateProvider(ctx, ep)
		if err != nil {
			return nil, err
		}
		conns = append(conns, p)
	}
	return newPooledSubstrateProvider(conns)
}

func newPooledSubstrateProvider(conns []pool.Connection) (*PooledSubstrateProvider, error) {
	pl, err := pool.New(conns)
	if err != nil {
		return nil, err
	}
	return &PooledSubstrateProvider{pool: pl}, nil
}

// StartHealthChecker runs background health checks until ctx is canceled.
func (p *PooledSubstrateProvider) StartHealthChecker(ctx context.Context) {
	p.pool.StartHealthChecker(ctx)
}

// AddEndpoint connects to a new substrate endpoint and adds it to the pool,
// available for round-robin selection immediately.
func (p *PooledSubstrateProvider) AddEndpoint(ctx context.Context, endpoint string) error {
	conn, err := NewSubstrateProvider(ctx, endpoint)
	if err != nil {
		return err
	}
	p.pool.AddEndpoint(conn)
	return nil
}

// RemoveEndpoint drops the endpoint matching the given URL from the pool.
// Removing the last remaining endpoint is rejected.
func (p *PooledSubstrateProvider) RemoveEndpoint(endpoint string) error {
	return p.pool.RemoveEndpointByURL(endpoint)
}

func (p *PooledSubstrateProvider) current() substratePoolConn {
	return p.pool.Get().(substratePoolConn)
}

func (p *PooledSubstrateProvider) call(ctx context.Context, fn func(substratePoolConn) error) error {
	conn := p.current()
	start := time.Now()
	err := fn(conn)
	if err != nil {
		p.pool.MarkUnhealthy(conn)
		return err
	}
	p.pool.MarkHealthy(conn, time.Since(start))
	return nil
}

func (p *PooledSubstrateProvider) GetChainID(ctx context.Context) (uint64, error) {
	var out uint64
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetChainID(ctx)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) GetBlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetBlockNumber(ctx)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	var out uint64
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetTransactionCount(ctx, address)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var out *big.Int
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetBalance(ctx, address)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) SendTransaction(ctx context.Context, encoded []byte) (string, error) {
	var out string
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.SendTransaction(ctx, encoded)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var out *Receipt
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetTransactionReceipt(ctx, txHash)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) PaymentQueryInfo(ctx context.Context, encodedExtrinsic string) (json.RawMessage, error) {
	var out json.RawMessage
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.PaymentQueryInfo(ctx, encodedExtrinsic)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) GetFinalizedHead(ctx context.Context) (string, error) {
	var out string
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetFinalizedHead(ctx)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) GetBlockHash(ctx context.Context, number uint64) (string, error) {
	var out string
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetBlockHash(ctx, number)
		out = v
		return err
	})
	return out, err
}

func (p *PooledSubstrateProvider) GetBlock(ctx context.Context, blockHash string) (json.RawMessage, error) {
	var out json.RawMessage
	err := p.call(ctx, func(c substratePoolConn) error {
		v, err := c.GetBlock(ctx, blockHash)
		out = v
		return err
	})
	return out, err
}
