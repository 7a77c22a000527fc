package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// EvmProvider wraps an ethclient.Client with one thin method per RPC the
// SDK needs.
type EvmProvider struct {
	client *ethclient.Client
	url    string
}

// NewEvmProvider dials an EVM JSON-RPC endpoint (HTTP or WS).
func NewEvmProvider(ctx context.Context, url string) (*EvmProvider, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, apexerr.Connection(fmt.Sprintf("failed to connect to %s: %v", url, err))
	}
	return &EvmProvider{client: client, url: url}, nil
}

func (p *EvmProvider) GetChainID(ctx context.Context) (uint64, error) {
	id, err := p.client.ChainID(ctx)
	if err != nil {
		return 0, apexerr.Connection(fmt.Sprintf("eth_chainId failed: %v", err))
	}
	return id.Uint64(), nil
}

func (p *EvmProvider) GetBlockNumber(ctx context.Context) (uint64, error) {
	n, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, apexerr.Connection(fmt.Sprintf("eth_blockNumber failed: %v", err))
	}
	return n, nil
}

func (p *EvmProvider) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	n, err := p.client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, apexerr.Connection(fmt.Sprintf("eth_getTransactionCount failed: %v", err))
	}
	return n, nil
}

func (p *EvmProvider) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	bal, err := p.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, apexerr.Connection(fmt.Sprintf("eth_getBalance failed: %v", err))
	}
	return bal, nil
}

func (p *EvmProvider) GetGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apexerr.Connection(fmt.Sprintf("eth_gasPrice failed: %v", err))
	}
	return price, nil
}

func (p *EvmProvider) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	toAddr := common.HexToAddress(to)
	msg := ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &toAddr,
		Value: value,
		Data:  data,
	}
	gas, err := p.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, apexerr.Transaction(fmt.Sprintf("eth_estimateGas failed: %v", err))
	}
	return gas, nil
}

// SendTransaction submits an already-signed RLP-encoded transaction.
func (p *EvmProvider) SendTransaction(ctx context.Context, encoded []byte) (string, error) {
	tx, err := decodeSignedTx(encoded)
	if err != nil {
		return "", apexerr.Serialization(fmt.Sprintf("failed to decode signed transaction: %v", err))
	}
	if err := p.client.SendTransaction(ctx, tx); err != nil {
		return "", classifyBroadcastError(err)
	}
	return tx.Hash().Hex(), nil
}

func (p *EvmProvider) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := p.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if err.Error() == "not found" {
			return &Receipt{TxHash: txHash, Found: false}, nil
		}
		return nil, apexerr.Connection(fmt.Sprintf("eth_getTransactionReceipt failed: %v", err))
	}
	return &Receipt{
		TxHash:      txHash,
		BlockHash:   receipt.BlockHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Status:      receipt.Status,
		GasUsed:     receipt.GasUsed,
		Found:       true,
	}, nil
}

func (p *EvmProvider) HealthCheck(ctx context.Context) error {
	_, err := p.GetBlockNumber(ctx)
	return err
}

// LatestBaseFee returns the latest block's EIP-1559 base fee, if the chain
// has activated the London fee market.
func (p *EvmProvider) LatestBaseFee(ctx context.Context) (*big.Int, bool, error) {
	header, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, false, apexerr.Connection(fmt.Sprintf("eth_getBlockByNumber failed: %v", err))
	}
	if header.BaseFee == nil {
		return nil, false, nil
	}
	return header.BaseFee, true, nil
}

// URL returns the endpoint this provider was constructed against.
func (p *EvmProvider) URL() string {
	return p.url
}

// Endpoint satisfies pool.Connection.
func (p *EvmProvider) Endpoint() string {
	return p.url
}
