package sdk

import (
	"context"
	"math/big"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
	"github.com/apex-sdk/apex-sdk-go/pkg/broadcast"
	"github.com/apex-sdk/apex-sdk-go/pkg/cache"
	"github.com/apex-sdk/apex-sdk-go/pkg/fee"
	"github.com/apex-sdk/apex-sdk-go/pkg/metrics"
	"github.com/apex-sdk/apex-sdk-go/pkg/nonce"
	"github.com/apex-sdk/apex-sdk-go/pkg/pipeline"
	"github.com/apex-sdk/apex-sdk-go/pkg/provider"
	"github.com/apex-sdk/apex-sdk-go/pkg/receipt"
	"github.com/apex-sdk/apex-sdk-go/pkg/wallet"
)

// Builder assembles an SDK from endpoint URLs and wallets, wiring each
// ecosystem's provider into its fee estimator, nonce manager, broadcaster,
// receipt watcher, and pipeline. Prefer this over constructing an SDK's
// fields directly.
type Builder struct {
	substrateEndpoint  string
	substrateEndpoints []string
	substrateWallet    *wallet.SubstrateWallet
	substrateParams    *pipeline.SubstrateChainParams

	evmEndpoint  string
	evmEndpoints []string
	evmWallet    *wallet.EvmWallet

	metrics *metrics.Metrics
	cache   *cache.Cache

	timeout time.Duration
	cfg     Config
}

// NewBuilder starts an empty builder with DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithSubstrateEndpoint configures the substrate WebSocket RPC endpoint.
func (b *Builder) WithSubstrateEndpoint(endpoint string) *Builder {
	b.substrateEndpoint = endpoint
	return b
}

// WithEvmEndpoint configures the EVM HTTP/WebSocket RPC endpoint.
func (b *Builder) WithEvmEndpoint(endpoint string) *Builder {
	b.evmEndpoint = endpoint
	return b
}

// WithSubstrateEndpoints configures a set of substrate RPC endpoints to
// round-robin across with automatic failover, instead of a single
// WithSubstrateEndpoint. Takes precedence over WithSubstrateEndpoint when
// both are set.
func (b *Builder) WithSubstrateEndpoints(endpoints []string) *Builder {
	b.substrateEndpoints = endpoints
	return b
}

// WithEvmEndpoints configures a set of EVM RPC endpoints to round-robin
// across with automatic failover, instead of a single WithEvmEndpoint.
// Takes precedence over WithEvmEndpoint when both are set.
func (b *Builder) WithEvmEndpoints(endpoints []string) *Builder {
	b.evmEndpoints = endpoints
	return b
}

// WithMetrics attaches a metrics collector that records RPC calls, state
// transitions, and transaction outcomes for every pipeline this builder
// assembles.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// WithCache attaches a balance cache shared by both the substrate and EVM
// adapters this builder assembles, short-circuiting repeat GetBalance
// calls for the same address within the cache's TTL.
func (b *Builder) WithCache(c *cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithSubstrateWallet attaches the wallet that signs substrate transactions.
func (b *Builder) WithSubstrateWallet(w *wallet.SubstrateWallet) *Builder {
	b.substrateWallet = w
	return b
}

// WithEvmWallet attaches the wallet that signs EVM transactions.
func (b *Builder) WithEvmWallet(w *wallet.EvmWallet) *Builder {
	b.evmWallet = w
	return b
}

// WithSubstrateChainParams overrides the runtime parameters (spec version,
// genesis hash, pallet/call indices) a signed extrinsic needs. Required to
// execute substrate transactions since this module does not decode chain
// metadata; omitting it leaves substrate execution unavailable even with
// an endpoint and wallet configured.
func (b *Builder) WithSubstrateChainParams(params pipeline.SubstrateChainParams) *Builder {
	b.substrateParams = &params
	return b
}

// WithTimeout overrides the SDK's default operation timeout (30s if unset,
// matching the source project's builder default).
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithConfig overrides the full SDK Config in one call.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithConfirmationStrategy overrides just the confirmation strategy on the
// builder's current Config.
func (b *Builder) WithConfirmationStrategy(strategy apextypes.ConfirmationStrategy) *Builder {
	b.cfg.ConfirmationStrategy = strategy
	return b
}

// Build connects every configured endpoint, wires its supporting packages,
// and returns a ready-to-use SDK. At least one of substrate or EVM must be
// configured.
func (b *Builder) Build(ctx context.Context) (*SDK, error) {
	timeout := b.timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var substrateAdapter *ChainAdapter
	if b.substrateEndpoint != "" || len(b.substrateEndpoints) > 0 {
		adapter, err := b.buildSubstrateAdapter(ctx)
		if err != nil {
			return nil, apexerr.Connection(err.Error())
		}
		substrateAdapter = adapter
	}

	var evmAdapter *ChainAdapter
	if b.evmEndpoint != "" || len(b.evmEndpoints) > 0 {
		adapter, err := b.buildEvmAdapter(ctx)
		if err != nil {
			return nil, apexerr.Connection(err.Error())
		}
		evmAdapter = adapter
	}

	if substrateAdapter == nil && evmAdapter == nil {
		return nil, apexerr.Config("at least one blockchain adapter must be configured")
	}

	return &SDK{
		substrate: substrateAdapter,
		evm:       evmAdapter,
		timeout:   timeout,
		cfg:       b.cfg,
	}, nil
}

// substrateClient is every capability a substrate pipeline needs from its
// transport, satisfied by both *provider.SubstrateProvider and
// *provider.PooledSubstrateProvider.
type substrateClient interface {
	fee.SubstrateFeeSource
	nonce.ChainNonceSource
	broadcast.Sender
	receipt.SubstrateReceiptSource
	GetChainID(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*provider.Receipt, error)
}

// evmClient is every capability an EVM pipeline needs from its transport,
// satisfied by both *provider.EvmProvider and *provider.PooledEvmProvider.
type evmClient interface {
	fee.EvmFeeSource
	nonce.ChainNonceSource
	broadcast.Sender
	receipt.EvmReceiptSource
	GetChainID(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
}

func (b *Builder) buildSubstrateAdapter(ctx context.Context) (*ChainAdapter, error) {
	var client substrateClient
	var pooled *provider.PooledSubstrateProvider
	if len(b.substrateEndpoints) > 0 {
		p, err := provider.NewPooledSubstrateProvider(ctx, b.substrateEndpoints)
		if err != nil {
			return nil, err
		}
		go p.StartHealthChecker(ctx)
		pooled = p
		client = pooled
	} else {
		single, err := provider.NewSubstrateProvider(ctx, b.substrateEndpoint)
		if err != nil {
			return nil, err
		}
		client = single
	}
	if b.cache != nil {
		client = provider.NewCachingSubstrateProvider(client, b.cache)
	}

	estimator := fee.NewSubstrateEstimator(client)
	nonces := nonce.NewManager(client)
	broadcaster := broadcast.New(client)
	watcher := receipt.NewSubstrateWatcher(client)

	pipelineCfg := pipeline.Config{ConfirmationStrategy: b.cfg.ConfirmationStrategy}

	var params pipeline.SubstrateChainParams
	if b.substrateParams != nil {
		params = *b.substrateParams
	}

	var signer pipeline.SubstrateSigner
	if b.substrateWallet != nil {
		signer = b.substrateWallet
	}

	p := pipeline.NewSubstratePipeline(signer, estimator, nonces, broadcaster, watcher, params, pipelineCfg)
	if b.metrics != nil {
		p = p.WithObserver(b.metrics)
	}
	adapter := &ChainAdapter{Pipeline: p, Watcher: watcher}
	if pooled != nil {
		adapter.pool = pooled
	}
	return adapter, nil
}

func (b *Builder) buildEvmAdapter(ctx context.Context) (*ChainAdapter, error) {
	var client evmClient
	var pooled *provider.PooledEvmProvider
	if len(b.evmEndpoints) > 0 {
		p, err := provider.NewPooledEvmProvider(ctx, b.evmEndpoints)
		if err != nil {
			return nil, err
		}
		go p.StartHealthChecker(ctx)
		pooled = p
		client = pooled
	} else {
		single, err := provider.NewEvmProvider(ctx, b.evmEndpoint)
		if err != nil {
			return nil, err
		}
		client = single
	}

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		client = provider.NewCachingEvmProvider(client, b.cache)
	}

	estimator := fee.NewEvmEstimator(client)
	nonces := nonce.NewManager(client)
	broadcaster := broadcast.New(client)
	watcher := receipt.NewEvmWatcher(client, uint64(b.cfg.ConfirmationBlocks))

	pipelineCfg := pipeline.Config{ConfirmationStrategy: b.cfg.ConfirmationStrategy}

	var signer pipeline.EvmSigner
	if b.evmWallet != nil {
		signer = b.evmWallet
	}

	p := pipeline.NewEvmPipeline(signer, estimator, nonces, broadcaster, watcher, chainID, pipelineCfg)
	if b.metrics != nil {
		p = p.WithObserver(b.metrics)
	}
	adapter := &ChainAdapter{Pipeline: p, Watcher: watcher}
	if pooled != nil {
		adapter.pool = pooled
	}
	return adapter, nil
}

// TransactionBuilder fluently assembles a Transaction, mirroring the
// chained from/to/amount/gas/data/chain setters of the source project's
// own transaction builder.
type TransactionBuilder struct {
	tx  apextypes.Transaction
	err error
}

// NewTransactionBuilder starts an empty transaction builder.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{}
}

// From sets the sender address.
func (t *TransactionBuilder) From(addr apextypes.Address) *TransactionBuilder {
	t.tx.From = addr
	return t
}

// To sets the recipient address.
func (t *TransactionBuilder) To(addr apextypes.Address) *TransactionBuilder {
	t.tx.To = addr
	return t
}

// Amount sets the transfer amount, in the source chain's smallest unit.
func (t *TransactionBuilder) Amount(amount *big.Int) *TransactionBuilder {
	t.tx.Amount = amount
	return t
}

// GasLimit sets an explicit EVM gas limit, overriding the estimator.
func (t *TransactionBuilder) GasLimit(limit uint64) *TransactionBuilder {
	t.tx.GasLimit = &limit
	return t
}

// GasPrice sets an explicit EVM gas price, overriding the estimator.
func (t *TransactionBuilder) GasPrice(price uint64) *TransactionBuilder {
	t.tx.GasPrice = &price
	return t
}

// Data sets contract calldata (EVM) or a pre-encoded call (substrate).
func (t *TransactionBuilder) Data(data []byte) *TransactionBuilder {
	t.tx.Data = data
	return t
}

// Chain sets the explicit destination chain, overriding address-kind
// inference.
func (t *TransactionBuilder) Chain(chain apextypes.Chain) *TransactionBuilder {
	t.tx.Chain = &chain
	return t
}

// Build validates that From, To, and Amount are set and returns the
// assembled Transaction.
func (t *TransactionBuilder) Build() (apextypes.Transaction, error) {
	if t.err != nil {
		return apextypes.Transaction{}, t.err
	}
	var zeroAddr apextypes.Address
	if t.tx.From == zeroAddr {
		return apextypes.Transaction{}, apexerr.Config("from address is required")
	}
	if t.tx.To == zeroAddr {
		return apextypes.Transaction{}, apexerr.Config("to address is required")
	}
	if t.tx.Amount == nil {
		return apextypes.Transaction{}, apexerr.Config("amount is required")
	}
	return t.tx, nil
}
