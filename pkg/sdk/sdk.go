// Package sdk provides the unified entry point that dispatches a
// Transaction to the correct ecosystem pipeline by its destination chain
// type, exposes transaction-status and wait-for-confirmation helpers, and
// hosts the parallel batch executor.
package sdk

import (
	"context"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
	"github.com/apex-sdk/apex-sdk-go/pkg/pipeline"
	"github.com/apex-sdk/apex-sdk-go/pkg/receipt"
)

// endpointPool is the subset of the pooled providers' endpoint-management
// API a ChainAdapter needs to expose runtime add/remove through the SDK.
// Only *provider.PooledSubstrateProvider and *provider.PooledEvmProvider
// implement it; a ChainAdapter built over a single endpoint leaves this nil.
type endpointPool interface {
	AddEndpoint(ctx context.Context, endpoint string) error
	RemoveEndpoint(endpoint string) error
}

// pollInterval is how often WaitForConfirmation re-checks status while a
// transaction sits in a non-terminal state.
const pollInterval = 2 * time.Second

// DefaultTimeout bounds WaitForConfirmation when the caller passes 0.
const DefaultTimeout = 60 * time.Second

// Config tunes SDK-wide behavior that isn't owned by a single pipeline.
type Config struct {
	ConfirmationStrategy apextypes.ConfirmationStrategy
	ConfirmationBlocks   uint32
	Timeout              time.Duration
}

// DefaultConfig matches the pipeline package's own defaults: wait for
// inclusion, one confirmation block, a 60s overall timeout.
func DefaultConfig() Config {
	return Config{
		ConfirmationStrategy: apextypes.DefaultConfirmationStrategy,
		ConfirmationBlocks:   1,
		Timeout:              DefaultTimeout,
	}
}

// ChainAdapter is the capability each ecosystem arm exposes to the SDK:
// the pipeline that executes a transaction and the watcher that reports a
// submitted transaction's status by hash, independent of whether that
// transaction went through this process.
type ChainAdapter struct {
	Pipeline pipeline.Pipeline
	Watcher  receipt.Watcher

	// pool is non-nil when this adapter was built over multiple endpoints
	// (Builder.WithSubstrateEndpoints / WithEvmEndpoints), enabling
	// runtime AddEndpoint/RemoveEndpoint through the SDK.
	pool endpointPool
}

// AddEndpoint connects to a new endpoint and adds it to this adapter's
// round-robin pool. It errors if the adapter was built over a single
// endpoint, since there is no pool to add to.
func (a *ChainAdapter) AddEndpoint(ctx context.Context, endpoint string) error {
	if a.pool == nil {
		return apexerr.Config("this adapter was not built with a connection pool; configure multiple endpoints via the builder to enable runtime endpoint management")
	}
	return a.pool.AddEndpoint(ctx, endpoint)
}

// RemoveEndpoint drops endpoint from this adapter's round-robin pool.
// Removing the last remaining pooled endpoint is rejected.
func (a *ChainAdapter) RemoveEndpoint(endpoint string) error {
	if a.pool == nil {
		return apexerr.Config("this adapter was not built with a connection pool; configure multiple endpoints via the builder to enable runtime endpoint management")
	}
	return a.pool.RemoveEndpoint(endpoint)
}

// SDK is the unified dispatch surface over a configured substrate adapter,
// EVM adapter, or both. At least one must be present; Builder.Build
// enforces this.
type SDK struct {
	substrate *ChainAdapter
	evm       *ChainAdapter

	timeout time.Duration
	cfg     Config
}

// Execute routes tx to the pipeline matching its destination chain type.
// A Hybrid destination with both adapters configured prefers EVM, matching
// apextypes.ChainTypeHybrid's documented default.
func (s *SDK) Execute(ctx context.Context, tx apextypes.Transaction) (apextypes.TransactionResult, error) {
	chainType := tx.DestinationChainType()
	adapter, err := s.adapterFor(chainType)
	if err != nil {
		return apextypes.TransactionResult{}, err
	}
	return adapter.Pipeline.Execute(ctx, &tx)
}

// GetTransactionStatus reports a previously-submitted transaction's status.
// A Hybrid chain type checks substrate first and falls back to EVM if the
// substrate adapter can't find the hash, matching the source SDK's hybrid
// dispatch in get_transaction_status.
func (s *SDK) GetTransactionStatus(ctx context.Context, txHash string, chainType apextypes.ChainType) (apextypes.TransactionStatus, error) {
	switch chainType {
	case apextypes.ChainTypeSubstrate:
		if s.substrate == nil {
			return apextypes.TransactionStatus{}, apexerr.UnsupportedChain("substrate adapter not configured")
		}
		return s.substrate.Watcher.Watch(ctx, txHash, apextypes.ImmediateConfirmation)

	case apextypes.ChainTypeEvm:
		if s.evm == nil {
			return apextypes.TransactionStatus{}, apexerr.UnsupportedChain("evm adapter not configured")
		}
		return s.evm.Watcher.Watch(ctx, txHash, apextypes.ImmediateConfirmation)

	case apextypes.ChainTypeHybrid:
		if s.substrate != nil {
			status, err := s.substrate.Watcher.Watch(ctx, txHash, apextypes.ImmediateConfirmation)
			if err == nil {
				return status, nil
			}
			if s.evm == nil {
				return apextypes.TransactionStatus{}, apexerr.Transaction("no evm adapter available for hybrid chain fallback")
			}
			return s.evm.Watcher.Watch(ctx, txHash, apextypes.ImmediateConfirmation)
		}
		if s.evm != nil {
			return s.evm.Watcher.Watch(ctx, txHash, apextypes.ImmediateConfirmation)
		}
		return apextypes.TransactionStatus{}, apexerr.UnsupportedChain("no adapter configured for hybrid chain")

	default:
		return apextypes.TransactionStatus{}, apexerr.UnsupportedChain("chain type not recognized")
	}
}

// IsChainSupported reports whether an adapter is configured for chainType.
func (s *SDK) IsChainSupported(chainType apextypes.ChainType) bool {
	switch chainType {
	case apextypes.ChainTypeSubstrate:
		return s.substrate != nil
	case apextypes.ChainTypeEvm:
		return s.evm != nil
	case apextypes.ChainTypeHybrid:
		return s.substrate != nil || s.evm != nil
	default:
		return false
	}
}

// Substrate returns the configured substrate adapter, or an error if none
// was built.
func (s *SDK) Substrate() (*ChainAdapter, error) {
	if s.substrate == nil {
		return nil, apexerr.Config("substrate adapter not configured")
	}
	return s.substrate, nil
}

// Evm returns the configured EVM adapter, or an error if none was built.
func (s *SDK) Evm() (*ChainAdapter, error) {
	if s.evm == nil {
		return nil, apexerr.Config("evm adapter not configured")
	}
	return s.evm, nil
}

// Timeout returns the SDK's configured default operation timeout.
func (s *SDK) Timeout() time.Duration {
	return s.timeout
}

// WaitForConfirmation polls GetTransactionStatus every 2 seconds until the
// transaction reaches Confirmed or Finalized (success) or Failed (error), or maxWait
// elapses. maxWait of 0 uses DefaultTimeout.
func (s *SDK) WaitForConfirmation(ctx context.Context, txHash string, chainType apextypes.ChainType, maxWait time.Duration) error {
	if maxWait == 0 {
		maxWait = DefaultTimeout
	}
	deadline := time.Now().Add(maxWait)

	for {
		if time.Now().After(deadline) {
			return apexerr.Timeout("timed out waiting for transaction " + txHash + " confirmation")
		}

		status, err := s.GetTransactionStatus(ctx, txHash, chainType)
		if err == nil {
			switch status.Kind {
			case apextypes.TxConfirmed, apextypes.TxFinalized:
				return nil
			case apextypes.TxFailed:
				return apexerr.Transaction("transaction " + txHash + " failed: " + status.Error)
			}
		}

		select {
		case <-ctx.Done():
			return apexerr.Timeout("context canceled while waiting for transaction " + txHash + " confirmation")
		case <-time.After(pollInterval):
		}
	}
}

func (s *SDK) adapterFor(chainType apextypes.ChainType) (*ChainAdapter, error) {
	switch chainType {
	case apextypes.ChainTypeSubstrate:
		if s.substrate == nil {
			return nil, apexerr.UnsupportedChain("substrate adapter not configured")
		}
		return s.substrate, nil

	case apextypes.ChainTypeEvm:
		if s.evm == nil {
			return nil, apexerr.UnsupportedChain("evm adapter not configured")
		}
		return s.evm, nil

	case apextypes.ChainTypeHybrid:
		if s.evm != nil {
			return s.evm, nil
		}
		if s.substrate != nil {
			return s.substrate, nil
		}
		return nil, apexerr.UnsupportedChain("no adapter configured for hybrid chain")

	default:
		return nil, apexerr.UnsupportedChain("chain type not recognized")
	}
}
