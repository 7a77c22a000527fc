package provider

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// decodeSignedTx decodes an RLP-encoded, already-signed transaction.
func decodeSignedTx(encoded []byte) (*types.Transaction, error) {
	var tx types.Transaction
	if err := rlp.DecodeBytes(encoded, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// retryableBroadcastSubstrings classifies which node-reported broadcast
// failures are worth retrying: nonce drift (after a nonce refresh) and
// underpriced replacements, per the source project's retry loop.
var retryableBroadcastSubstrings = []string{
	"nonce too low",
	"nonce too high",
	"replacement transaction underpriced",
	"already known",
}

// classifyBroadcastError maps a raw node error into the Transaction or
// Connection apexerr kind, tagging retryable causes in the message so
// callers can pattern-match without re-deriving the classification.
func classifyBroadcastError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, s := range retryableBroadcastSubstrings {
		if strings.Contains(msg, s) {
			return apexerr.Transaction(fmt.Sprintf("retryable broadcast error: %v", err)).WithRetryable(true)
		}
	}
	if strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "invalid signature") || strings.Contains(msg, "transaction underpriced") {
		return apexerr.Transaction(fmt.Sprintf("fatal broadcast error: %v", err))
	}
	return apexerr.Connection(fmt.Sprintf("broadcast failed: %v", err)).WithRetryable(true)
}

// IsRetryableBroadcastError reports whether a raw node error message
// matches one of the known-retryable substrings.
func IsRetryableBroadcastError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableBroadcastSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
