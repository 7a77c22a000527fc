package pipeline

import (
	"context"
	"math/big"
	"math/rand"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
	"github.com/apex-sdk/apex-sdk-go/pkg/broadcast"
	"github.com/apex-sdk/apex-sdk-go/pkg/fee"
	"github.com/apex-sdk/apex-sdk-go/pkg/nonce"
	"github.com/apex-sdk/apex-sdk-go/pkg/receipt"
)

// EvmSigner is the capability the EVM pipeline needs from a wallet: a
// 32-byte digest signature and the address that produces it.
type EvmSigner interface {
	Address() apextypes.Address
	SignHash(hash []byte) ([]byte, error)
}

// EvmPipeline drives a single EVM transfer or contract call through
// Prepared → Signed → Broadcast → Confirming → Terminal.
type EvmPipeline struct {
	wallet      EvmSigner
	estimator   *fee.EvmEstimator
	nonces      *nonce.Manager
	broadcaster *broadcast.Broadcaster
	watcher     receipt.Watcher
	chainID     uint64
	cfg         Config
	observer    StateObserver
}

// NewEvmPipeline wires the five EVM-arm dependencies into one pipeline.
func NewEvmPipeline(wallet EvmSigner, estimator *fee.EvmEstimator, nonces *nonce.Manager, broadcaster *broadcast.Broadcaster, watcher receipt.Watcher, chainID uint64, cfg Config) *EvmPipeline {
	return &EvmPipeline{
		wallet:      wallet,
		estimator:   estimator,
		nonces:      nonces,
		broadcaster: broadcaster,
		watcher:     watcher,
		chainID:     chainID,
		cfg:         cfg,
	}
}

// WithObserver attaches a transition observer (e.g. pkg/metrics).
func (p *EvmPipeline) WithObserver(obs StateObserver) *EvmPipeline {
	p.observer = obs
	return p
}

// Execute runs tx through the full state machine and returns its terminal
// result under the pipeline's configured confirmation strategy.
func (p *EvmPipeline) Execute(ctx context.Context, tx *apextypes.Transaction) (apextypes.TransactionResult, error) {
	if p.wallet == nil {
		return apextypes.TransactionResult{}, apexerr.Config("evm wallet not configured; executing a transaction requires a signer")
	}

	from := p.wallet.Address()
	toAddr := common.HexToAddress(tx.To.String())

	state := StatePrepared
	since := time.Now()

	est, err := p.estimator.EstimateFeeCtx(ctx, from.String(), tx.To.String(), tx.Amount, tx.Data)
	if err != nil {
		return apextypes.TransactionResult{}, err
	}

	txNonce, err := p.nonces.Next(ctx, from.String())
	if err != nil {
		return apextypes.TransactionResult{}, err
	}

	observe(p.observer, state, since)
	state, since = StateSigned, time.Now()

	var hash string
	var signErr error
	attempt := 0
	for {
		attempt++
		var encoded []byte
		encoded, signErr = p.buildSigned(toAddr, tx, txNonce, est, attempt)
		if signErr != nil {
			return apextypes.TransactionResult{}, signErr
		}

		if attempt == 1 {
			observe(p.observer, state, since)
			state, since = StateBroadcast, time.Now()
		}

		h, broadcastErr := p.broadcaster.Broadcast(ctx, encoded)
		if broadcastErr == nil {
			hash = h
			break
		}

		if !broadcast.IsRetryable(broadcastErr) || attempt >= p.cfg.maxRetries() {
			return apextypes.TransactionResult{}, broadcastErr
		}

		// Idempotent resubmission keeps (chain, from, nonce) fixed unless
		// a nonce-too-low/too-high error means the chain's view moved, in
		// which case reconcile before the next attempt.
		if msg := strings.ToLower(broadcastErr.Error()); strings.Contains(msg, "nonce too low") || strings.Contains(msg, "nonce too high") {
			if fresh, reconcileErr := p.nonces.Reconcile(ctx, from.String()); reconcileErr == nil {
				txNonce = fresh
			}
		}

		select {
		case <-ctx.Done():
			return apextypes.TransactionResult{}, apexerr.Timeout("pipeline deadline exceeded during broadcast retry")
		case <-time.After(p.backoff(attempt)):
		}
	}

	observe(p.observer, state, since)
	state, since = StateConfirming, time.Now()

	status, watchErr := p.watcher.Watch(ctx, hash, p.cfg.ConfirmationStrategy)
	observe(p.observer, state, since)

	result := toResult(hash, status)
	if watchErr != nil && status.Kind != apextypes.TxUnknown {
		return result, nil
	}
	return result, watchErr
}

func (p *EvmPipeline) buildSigned(to common.Address, tx *apextypes.Transaction, txNonce uint64, est fee.Estimate, attempt int) ([]byte, error) {
	gasLimit := est.GasLimit
	if tx.GasLimit != nil {
		gasLimit = *tx.GasLimit
	}

	var ethTx *types.Transaction
	if est.IsEip1559 {
		tip := broadcast.EscalateGasPrice(est.MaxPriorityFee, attempt)
		feeCap := broadcast.EscalateGasPrice(est.MaxFeePerGas, attempt)
		ethTx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(p.chainID),
			Nonce:     txNonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &to,
			Value:     tx.Amount,
			Data:      tx.Data,
		})
	} else {
		price := broadcast.ApplyGasFloor(broadcast.EscalateGasPrice(est.EffectivePrice, attempt))
		ethTx = types.NewTx(&types.LegacyTx{
			Nonce:    txNonce,
			GasPrice: price,
			Gas:      gasLimit,
			To:       &to,
			Value:    tx.Amount,
			Data:     tx.Data,
		})
	}

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(p.chainID))
	h := signer.Hash(ethTx)
	sig, err := p.wallet.SignHash(h[:])
	if err != nil {
		return nil, err
	}
	signedTx, err := ethTx.WithSignature(signer, sig)
	if err != nil {
		return nil, apexerr.Signer("failed to attach signature to transaction")
	}
	return signedTx.MarshalBinary()
}

func (p *EvmPipeline) backoff(attempt int) time.Duration {
	base := p.cfg.BackoffBase
	if base == 0 {
		base = DefaultBackoffBase
	}
	d := base << uint(attempt-1)
	if p.cfg.Jitter {
		d += time.Duration(rand.Int63n(int64(base)))
	}
	return d
}

func (c Config) maxRetries() int {
	if c.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

func toResult(hash string, status apextypes.TransactionStatus) apextypes.TransactionResult {
	result := apextypes.TransactionResult{SourceTxHash: hash, BlockNumber: status.BlockNumber}
	switch status.Kind {
	case apextypes.TxFailed:
		result.Status = apextypes.ResultFailed
	case apextypes.TxFinalized:
		result.Status = apextypes.ResultFinalized
	case apextypes.TxConfirmed:
		result.Status = apextypes.ResultSuccess
	case apextypes.TxUnknown:
		result.Status = apextypes.ResultUnknown
	default:
		result.Status = apextypes.ResultPending
	}
	return result
}
