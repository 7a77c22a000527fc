// Package broadcast submits a signed transaction envelope and classifies
// the outcome as retryable or fatal.
package broadcast

import (
	"context"
	"log"
	"math/big"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// Sender is the capability the broadcaster needs from a provider.
type Sender interface {
	SendTransaction(ctx context.Context, encoded []byte) (string, error)
}

// Broadcaster submits signed transactions and reports their hash.
type Broadcaster struct {
	sender Sender
	logger *log.Logger
}

// New builds a broadcaster over a provider's send capability.
func New(sender Sender) *Broadcaster {
	return &Broadcaster{
		sender: sender,
		logger: log.New(log.Writer(), "[broadcast] ", log.LstdFlags),
	}
}

// Broadcast submits encoded and returns its transaction hash. Errors
// returned are *apexerr.Error and already carry a Retryable verdict.
func (b *Broadcaster) Broadcast(ctx context.Context, encoded []byte) (string, error) {
	hash, err := b.sender.SendTransaction(ctx, encoded)
	if err != nil {
		return "", apexerr.Wrap(err)
	}
	b.logger.Printf("broadcast accepted, hash=%s", hash)
	return hash, nil
}

// IsRetryable reports whether a broadcast error is worth retrying, per the
// taxonomy established at the provider boundary.
func IsRetryable(err error) bool {
	ae, ok := err.(*apexerr.Error)
	return ok && ae.Retryable
}

// EscalateGasPrice bumps a gas price by 20% per retry attempt (attempt is
// 1-indexed: attempt 1 returns the base price unchanged), matching the
// source project's SendContractTransactionWithRetry.
func EscalateGasPrice(basePrice *big.Int, attempt int) *big.Int {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := int64(100 + 20*(attempt-1))
	scaled := new(big.Int).Mul(basePrice, big.NewInt(multiplier))
	return scaled.Div(scaled, big.NewInt(100))
}

// MinGasPriceFloor enforces the 5 gwei floor the source project's
// SendContractTransaction applies before submitting.
var MinGasPriceFloor = func() *big.Int {
	return new(big.Int).Mul(big.NewInt(5), big.NewInt(1_000_000_000))
}()

// ApplyGasFloor raises price to MinGasPriceFloor if it falls below it.
func ApplyGasFloor(price *big.Int) *big.Int {
	if price.Cmp(MinGasPriceFloor) < 0 {
		return new(big.Int).Set(MinGasPriceFloor)
	}
	return price
}
