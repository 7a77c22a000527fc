package pipeline

import (
	"context"
	"math/big"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
	"github.com/apex-sdk/apex-sdk-go/pkg/broadcast"
	"github.com/apex-sdk/apex-sdk-go/pkg/fee"
	"github.com/apex-sdk/apex-sdk-go/pkg/nonce"
	"github.com/apex-sdk/apex-sdk-go/pkg/receipt"
)

// SubstrateSigner is the capability the substrate pipeline needs from a
// wallet: an Ed25519 signature over the (possibly blake2b-hashed) signing
// payload, and the address that produces it.
type SubstrateSigner interface {
	Address() apextypes.Address
	SignHash(payload []byte) ([]byte, error)
}

// SubstrateChainParams carries the runtime metadata a signed extrinsic
// needs but that no RPC in this module's scope resolves on its own: the
// runtime's spec/transaction version, its genesis hash, and the
// Balances.transfer pallet/call indices (these vary by runtime and would
// normally come from decoded metadata, which is out of scope — see
// pkg/provider's SCALE note).
type SubstrateChainParams struct {
	SpecVersion         uint32
	TransactionVersion  uint32
	GenesisHash         [32]byte
	BalancesPalletIndex byte
	TransferCallIndex   byte
}

// SubstratePipeline drives a single substrate balance transfer through
// Prepared → Signed → Broadcast → Confirming → Terminal. Contract calls
// (Transaction.Data set) are rejected per §3: the SDK does not SCALE-encode
// arbitrary calls on the caller's behalf.
type SubstratePipeline struct {
	wallet      SubstrateSigner
	estimator   *fee.SubstrateEstimator
	nonces      *nonce.Manager
	broadcaster *broadcast.Broadcaster
	watcher     receipt.Watcher
	params      SubstrateChainParams
	cfg         Config
	observer    StateObserver
}

// NewSubstratePipeline wires the substrate-arm dependencies into one
// pipeline.
func NewSubstratePipeline(wallet SubstrateSigner, estimator *fee.SubstrateEstimator, nonces *nonce.Manager, broadcaster *broadcast.Broadcaster, watcher receipt.Watcher, params SubstrateChainParams, cfg Config) *SubstratePipeline {
	return &SubstratePipeline{
		wallet:      wallet,
		estimator:   estimator,
		nonces:      nonces,
		broadcaster: broadcaster,
		watcher:     watcher,
		params:      params,
		cfg:         cfg,
	}
}

// WithObserver attaches a transition observer (e.g. pkg/metrics).
func (p *SubstratePipeline) WithObserver(obs StateObserver) *SubstratePipeline {
	p.observer = obs
	return p
}

// Execute runs tx through the full state machine and returns its terminal
// result under the pipeline's configured confirmation strategy.
func (p *SubstratePipeline) Execute(ctx context.Context, tx *apextypes.Transaction) (apextypes.TransactionResult, error) {
	if len(tx.Data) > 0 {
		return apextypes.TransactionResult{}, apexerr.Config("substrate pipeline rejects transactions carrying call data; contract calls require the direct adapter API")
	}

	if p.wallet == nil {
		return apextypes.TransactionResult{}, apexerr.Config("substrate wallet not configured; executing a transaction requires a signer")
	}

	from := p.wallet.Address()

	state := StatePrepared
	since := time.Now()

	destPubkey, err := apextypes.DecodeSS58(tx.To.String())
	if err != nil {
		return apextypes.TransactionResult{}, apexerr.InvalidAddress(tx.To.String())
	}

	txNonce, err := p.nonces.Next(ctx, from.String())
	if err != nil {
		return apextypes.TransactionResult{}, err
	}

	observe(p.observer, state, since)
	state, since = StateSigned, time.Now()

	var hash string
	attempt := 0
	for {
		attempt++
		encoded, signErr := p.buildSigned(destPubkey, tx.Amount, txNonce)
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

func (p *SubstratePipeline) backoff(attempt int) time.Duration {
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

// buildSigned assembles a V4 signed extrinsic for a Balances.transfer call:
// length-prefix(version-byte ‖ MultiAddress::Id(signer) ‖
// MultiSignature::Ed25519(sig) ‖ era ‖ compact(nonce) ‖ compact(tip) ‖ call).
// An immortal era is used throughout: this module resolves no block hash
// for mortality, so genesis hash doubles as the era-anchor block hash.
func (p *SubstratePipeline) buildSigned(destPubkey []byte, amount *big.Int, txNonce uint64) ([]byte, error) {
	call := p.buildTransferCall(destPubkey, amount)

	const immortalEra = byte(0x00)
	nonceBytes := scaleCompactUint(txNonce)
	tip := big.NewInt(0)
	if p.estimator != nil && p.estimator.Tip() != nil {
		tip = p.estimator.Tip()
	}
	tipBytes := scaleCompact(tip)

	payload := make([]byte, 0, len(call)+1+len(nonceBytes)+len(tipBytes)+4+4+64)
	payload = append(payload, call...)
	payload = append(payload, immortalEra)
	payload = append(payload, nonceBytes...)
	payload = append(payload, tipBytes...)
	payload = append(payload, leUint32(p.params.SpecVersion)...)
	payload = append(payload, leUint32(p.params.TransactionVersion)...)
	payload = append(payload, p.params.GenesisHash[:]...)
	payload = append(payload, p.params.GenesisHash[:]...) // immortal: era-anchor == genesis

	signPayload := payload
	if len(payload) > 256 {
		h, err := blake2b.New256(nil)
		if err != nil {
			return nil, apexerr.Other(err)
		}
		h.Write(payload)
		signPayload = h.Sum(nil)
	}

	fromPubkey, err := apextypes.DecodeSS58(p.wallet.Address().String())
	if err != nil {
		return nil, apexerr.InvalidAddress(p.wallet.Address().String())
	}

	sig, err := p.wallet.SignHash(signPayload)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, 2+32+1+64+1+len(nonceBytes)+len(tipBytes)+len(call))
	body = append(body, 0x84) // bit 7 set: signed; low bits: extrinsic version 4
	body = append(body, 0x00) // MultiAddress::Id
	body = append(body, fromPubkey...)
	body = append(body, 0x00) // MultiSignature::Ed25519
	body = append(body, sig...)
	body = append(body, immortalEra)
	body = append(body, nonceBytes...)
	body = append(body, tipBytes...)
	body = append(body, call...)

	lengthPrefix := scaleCompactUint(uint64(len(body)))
	return append(lengthPrefix, body...), nil
}

func (p *SubstratePipeline) buildTransferCall(destPubkey []byte, amount *big.Int) []byte {
	call := make([]byte, 0, 2+1+32+8)
	call = append(call, p.params.BalancesPalletIndex, p.params.TransferCallIndex)
	call = append(call, 0x00) // MultiAddress::Id
	call = append(call, destPubkey...)
	call = append(call, scaleCompact(amount)...)
	return call
}
