package receipt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
	"github.com/apex-sdk/apex-sdk-go/pkg/apextypes"
)

// SubstrateReceiptSource is the capability the substrate watcher needs.
// Storage/event decoding is out of this module's scope (§4.5), so a match
// is classified by block inclusion and finality depth alone, not by
// inspecting the System.ExtrinsicSuccess/Failed event.
type SubstrateReceiptSource interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, number uint64) (string, error)
	GetBlock(ctx context.Context, blockHash string) (json.RawMessage, error)
	GetFinalizedHead(ctx context.Context) (string, error)
}

type substrateBlockEnvelope struct {
	Block struct {
		Header struct {
			Number string `json:"number"`
		} `json:"header"`
		Extrinsics []string `json:"extrinsics"`
	} `json:"block"`
}

// SubstrateWatcher walks back through recent blocks looking for an
// extrinsic hash, since substrate has no eth_getTransactionReceipt
// equivalent.
type SubstrateWatcher struct {
	source  SubstrateReceiptSource
	timeout time.Duration
}

// NewSubstrateWatcher builds a watcher over a substrate provider.
func NewSubstrateWatcher(source SubstrateReceiptSource) *SubstrateWatcher {
	return &SubstrateWatcher{source: source, timeout: DefaultTimeout}
}

// WithTimeout overrides the default 60s overall wait.
func (w *SubstrateWatcher) WithTimeout(d time.Duration) *SubstrateWatcher {
	w.timeout = d
	return w
}

// Watch searches recent blocks for extrinsicHash and classifies the result
// per the confirmation strategy.
func (w *SubstrateWatcher) Watch(ctx context.Context, extrinsicHash string, strategy apextypes.ConfirmationStrategy) (apextypes.TransactionStatus, error) {
	if strategy == apextypes.ImmediateConfirmation {
		return apextypes.Pending(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	target, err := normalizeHash(extrinsicHash)
	if err != nil {
		return apextypes.TransactionStatus{}, err
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		found, blockHash, blockNumber, err := w.searchRecentBlocks(ctx, target)
		if err != nil {
			return apextypes.TransactionStatus{}, err
		}
		if found {
			status, err := w.classify(ctx, blockHash, blockNumber, strategy)
			if err != nil || status.Kind != apextypes.TxInMempool {
				return status, err
			}
		}

		select {
		case <-ctx.Done():
			return apextypes.Unknown(), apexerr.Timeout("receipt watch deadline exceeded")
		case <-ticker.C:
		}
	}
}

func (w *SubstrateWatcher) searchRecentBlocks(ctx context.Context, target []byte) (bool, string, uint64, error) {
	current, err := w.source.GetBlockNumber(ctx)
	if err != nil {
		return false, "", 0, err
	}

	depth := uint64(MaxBlockSearchDepth)
	for i := uint64(0); i <= depth && i <= current; i++ {
		height := current - i
		blockHash, err := w.source.GetBlockHash(ctx, height)
		if err != nil {
			return false, "", 0, err
		}
		raw, err := w.source.GetBlock(ctx, blockHash)
		if err != nil {
			return false, "", 0, err
		}
		var envelope substrateBlockEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return false, "", 0, apexerr.Serialization("chain_getBlock: malformed response")
		}
		for _, ext := range envelope.Block.Extrinsics {
			if extrinsicHashMatches(ext, target) {
				return true, blockHash, height, nil
			}
		}
	}
	return false, "", 0, nil
}

func (w *SubstrateWatcher) classify(ctx context.Context, blockHash string, blockNumber uint64, strategy apextypes.ConfirmationStrategy) (apextypes.TransactionStatus, error) {
	if strategy != apextypes.WaitForFinalityConfirmation {
		bn := blockNumber
		return apextypes.Confirmed(blockHash, &bn), nil
	}

	finalizedHead, err := w.source.GetFinalizedHead(ctx)
	if err != nil {
		return apextypes.TransactionStatus{}, err
	}
	finalizedNumber, err := w.blockNumberOf(ctx, finalizedHead)
	if err != nil {
		return apextypes.TransactionStatus{}, err
	}

	if finalizedNumber < blockNumber || finalizedNumber-blockNumber < FinalizationThreshold {
		// Not yet finalized-with-depth; keep polling rather than
		// surfacing Confirmed (WaitForFinality never yields Confirmed).
		return apextypes.InMempool(), nil
	}
	return apextypes.Finalized(blockHash, blockNumber), nil
}

func (w *SubstrateWatcher) blockNumberOf(ctx context.Context, blockHash string) (uint64, error) {
	raw, err := w.source.GetBlock(ctx, blockHash)
	if err != nil {
		return 0, err
	}
	var envelope substrateBlockEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return 0, apexerr.Serialization("chain_getBlock: malformed response")
	}
	n, err := strconv.ParseUint(trimHex(envelope.Block.Header.Number), 16, 64)
	if err != nil {
		return 0, apexerr.Serialization("chain_getBlock: unparseable block number")
	}
	return n, nil
}

func normalizeHash(h string) ([]byte, error) {
	raw, err := hex.DecodeString(trimHex(h))
	if err != nil {
		return nil, apexerr.Serialization("malformed transaction hash")
	}
	return raw, nil
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func extrinsicHashMatches(extrinsicHex string, target []byte) bool {
	raw, err := hex.DecodeString(trimHex(extrinsicHex))
	if err != nil {
		return false
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return false
	}
	h.Write(raw)
	sum := h.Sum(nil)
	if len(sum) != len(target) {
		return false
	}
	for i := range sum {
		if sum[i] != target[i] {
			return false
		}
	}
	return true
}
