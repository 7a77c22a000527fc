package provider

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/apex-sdk/apex-sdk-go/pkg/cache"
)

// EvmClient is every method an EVM provider exposes, satisfied by both
// *EvmProvider and *PooledEvmProvider. CachingEvmProvider wraps either one.
type EvmClient interface {
	GetChainID(ctx context.Context) (uint64, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error)
	SendTransaction(ctx context.Context, encoded []byte) (string, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	LatestBaseFee(ctx context.Context) (*big.Int, bool, error)
}

// CachingEvmProvider layers balance_ttl caching (§4.12-style named cache)
// over any EvmClient, short-circuiting repeat GetBalance calls for the
// same address within the TTL instead of re-querying the chain. Every
// other method passes straight through.
type CachingEvmProvider struct {
	EvmClient
	cache *cache.Cache
}

// NewCachingEvmProvider wraps client with c's balance cache.
func NewCachingEvmProvider(client EvmClient, c *cache.Cache) *CachingEvmProvider {
	return &CachingEvmProvider{EvmClient: client, cache: c}
}

func (p *CachingEvmProvider) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if v, ok := p.cache.GetBalance(address); ok {
		return v, nil
	}
	v, err := p.EvmClient.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	p.cache.PutBalance(address, v)
	return v, nil
}

// SubstrateClient is every method a substrate provider exposes, satisfied
// by both *SubstrateProvider and *PooledSubstrateProvider.
type SubstrateClient interface {
	GetChainID(ctx context.Context) (uint64, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	SendTransaction(ctx context.Context, encoded []byte) (string, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	PaymentQueryInfo(ctx context.Context, encodedExtrinsic string) (json.RawMessage, error)
	GetFinalizedHead(ctx context.Context) (string, error)
	GetBlockHash(ctx context.Context, number uint64) (string, error)
	GetBlock(ctx context.Context, blockHash string) (json.RawMessage, error)
}

// CachingSubstrateProvider is the substrate analogue of CachingEvmProvider.
type CachingSubstrateProvider struct {
	SubstrateClient
	cache *cache.Cache
}

// NewCachingSubstrateProvider wraps client with c's balance cache.
func NewCachingSubstrateProvider(client SubstrateClient, c *cache.Cache) *CachingSubstrateProvider {
	return &CachingSubstrateProvider{SubstrateClient: client, cache: c}
}

func (p *CachingSubstrateProvider) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if v, ok := p.cache.GetBalance(address); ok {
		return v, nil
	}
	v, err := p.SubstrateClient.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	p.cache.PutBalance(address, v)
	return v, nil
}
