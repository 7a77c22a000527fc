// Package provider implements thin, read-mostly RPC clients per ecosystem.
package provider

import (
	"context"
	"math/big"
)

// Provider is the capability both ecosystem clients satisfy. Every call may
// fail with a Connection or Transaction-kind apexerr.Error.
type Provider interface {
	GetChainID(ctx context.Context) (uint64, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error)
	SendTransaction(ctx context.Context, encoded []byte) (string, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	HealthCheck(ctx context.Context) error
}

// Receipt is the provider-neutral shape the receipt watcher consumes.
type Receipt struct {
	TxHash      string
	BlockHash   string
	BlockNumber uint64
	Status      uint64 // 1 = success, 0 = failure (EVM convention)
	GasUsed     uint64
	Found       bool
}
