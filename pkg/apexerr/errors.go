// Package apexerr defines the SDK's stable error taxonomy. Every component
// translates chain- or library-specific failures into one of these kinds at
// its boundary; higher layers never re-classify.
package apexerr

import (
	"fmt"
	"strings"
)

// Kind is the stable, public error taxonomy (§7 of the error handling
// design). It must not grow new values casually — callers match on it.
type Kind int

const (
	KindConfig Kind = iota
	KindConnection
	KindTransaction
	KindUnsupportedChain
	KindInvalidAddress
	KindSigner
	KindSerialization
	KindTimeout
	KindLockout
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnection:
		return "connection"
	case KindTransaction:
		return "transaction"
	case KindUnsupportedChain:
		return "unsupported_chain"
	case KindInvalidAddress:
		return "invalid_address"
	case KindSigner:
		return "signer"
	case KindSerialization:
		return "serialization"
	case KindTimeout:
		return "timeout"
	case KindLockout:
		return "lockout"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error is the SDK's public error type. It carries a human-readable message
// and, for the kinds that can be acted on, a short remediation tip. Lower
// level details belong in logs, never in Message.
type Error struct {
	Kind      Kind
	Message   string
	Tip       string
	Cause     error
	// Retryable marks Transaction/Connection errors a caller may retry
	// (after nonce reconciliation, backoff, or pool failover). Not set
	// for fatal kinds like InvalidAddress or Signer.
	Retryable bool
}

func (e *Error) Error() string {
	if e.Tip != "" {
		return fmt.Sprintf("%s: %s\n\n%s", e.Kind, e.Message, e.Tip)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithRetryable marks the error retryable or fatal and returns it for
// chaining at the construction site.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Config builds a Config-kind error, choosing a remediation tip by
// substring-matching the message the same way the SDK's source project
// does: missing-adapter phrasing points at the builder, everything else
// gets a generic settings hint.
func Config(message string) *Error {
	return &Error{Kind: KindConfig, Message: message, Tip: configTip(message)}
}

func configTip(message string) string {
	if containsAny(message, "adapter", "configured", "wallet") {
		return "Configure the missing adapter via the builder, e.g.\n" +
			"  sdk.NewBuilder().WithSubstrateEndpoint(\"wss://rpc.polkadot.io\").Build(ctx)\n" +
			"or WithEvmEndpoint(...) / WithSubstrateWallet(...) / WithEvmWallet(...)."
	}
	return "Check the SDK configuration passed to the builder."
}

// Connection builds a Connection-kind error with a tip chosen from the
// message content (timeout vs. refused vs. generic).
func Connection(message string) *Error {
	return &Error{Kind: KindConnection, Message: message, Tip: connectionTip(message)}
}

func connectionTip(message string) string {
	if containsAny(message, "timeout", "timed out") {
		return "The endpoint did not respond in time. Check endpoint health or increase the configured timeout."
	}
	if containsAny(message, "refused", "failed to connect") {
		return "Connection was refused. Verify the node is running and reachable, and check firewall rules."
	}
	return "Check that the configured endpoint is reachable."
}

// Transaction builds a Transaction-kind error with a tip chosen from the
// message content (nonce vs. balance vs. generic).
func Transaction(message string) *Error {
	return &Error{Kind: KindTransaction, Message: message, Tip: transactionTip(message)}
}

func transactionTip(message string) string {
	if containsAny(message, "nonce") {
		return "A nonce mismatch was detected. The nonce manager will refetch and retry automatically."
	}
	if containsAny(message, "insufficient", "balance") {
		return "The source account does not hold enough funds to cover the amount plus fees."
	}
	return "Inspect the transaction parameters and the node's response for details."
}

// UnsupportedChain builds the fixed-message error for routing to an
// unknown or unconfigured chain.
func UnsupportedChain(chain string) *Error {
	return &Error{
		Kind:    KindUnsupportedChain,
		Message: fmt.Sprintf("Chain not supported: %s", chain),
		Tip: "Supported chains: Polkadot, Kusama, Westend (Substrate) | Ethereum, BSC, Polygon (EVM)\n" +
			"List configured chains via the SDK's chain registry.",
	}
}

// InvalidAddress builds the fixed-message error for a failed address format
// check.
func InvalidAddress(input string) *Error {
	return &Error{
		Kind:    KindInvalidAddress,
		Message: fmt.Sprintf("Invalid address: %s", input),
		Tip: "Expected an SS58 address like 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY\n" +
			"or a hex address like 0x742d35Cc6634C0532925a3b844Bc9e7595f0bEbD.",
	}
}

// Signer builds a Signer-kind error. Signing failures are always fatal.
func Signer(message string) *Error {
	return &Error{Kind: KindSigner, Message: message}
}

// Serialization builds a Serialization-kind error (SCALE/RLP/JSON decode
// failures). Always fatal.
func Serialization(message string) *Error {
	return &Error{Kind: KindSerialization, Message: message}
}

// Timeout builds a Timeout-kind error for a deadline exceeded during
// confirmation. The underlying transaction may still land.
func Timeout(message string) *Error {
	return &Error{Kind: KindTimeout, Message: message, Tip: "The transaction may still be included; query its status again later."}
}

// Lockout builds a Lockout-kind error for an active keystore throttle.
func Lockout(message string) *Error {
	return &Error{Kind: KindLockout, Message: message, Tip: "Wait for the lockout window to elapse before retrying."}
}

// Other wraps a residual error that doesn't fit another kind.
func Other(cause error) *Error {
	return &Error{Kind: KindOther, Message: cause.Error(), Cause: cause}
}

// Wrap classifies an arbitrary error as Other, preserving it as Cause.
func Wrap(cause error) *Error {
	if cause == nil {
		return nil
	}
	if ae, ok := cause.(*Error); ok {
		return ae
	}
	return Other(cause)
}

func containsAny(haystack string, needles ...string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
