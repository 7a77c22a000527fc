package fee

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// SubstrateFeeSource is the subset of the substrate provider the estimator
// needs: the payment-info RPC over an already-encoded extrinsic.
type SubstrateFeeSource interface {
	PaymentQueryInfo(ctx context.Context, encodedExtrinsic string) (json.RawMessage, error)
}

// SubstrateEstimator wraps the payment-info RPC and exposes a configurable
// multiplier and tip, per §4.6: "the estimator exposes a multiplier and
// tip. Tips > 0 increase inclusion priority."
type SubstrateEstimator struct {
	source     SubstrateFeeSource
	multiplier float64
	tip        *big.Int
}

// NewSubstrateEstimator builds an estimator with multiplier 1.0 and no tip.
func NewSubstrateEstimator(source SubstrateFeeSource) *SubstrateEstimator {
	return &SubstrateEstimator{source: source, multiplier: 1.0, tip: big.NewInt(0)}
}

// WithMultiplier scales the reported fee, e.g. to pad for fee volatility.
func (e *SubstrateEstimator) WithMultiplier(m float64) *SubstrateEstimator {
	e.multiplier = m
	return e
}

// WithTip sets an inclusion-priority tip added to the base fee.
func (e *SubstrateEstimator) WithTip(tip *big.Int) *SubstrateEstimator {
	e.tip = tip
	return e
}

// Tip returns the configured inclusion-priority tip.
func (e *SubstrateEstimator) Tip() *big.Int {
	return e.tip
}

type paymentInfo struct {
	PartialFee string `json:"partialFee"`
}

// EstimateFeeCtx queries payment_queryInfo for the given pre-encoded
// extrinsic and applies the configured multiplier and tip.
func (e *SubstrateEstimator) EstimateFeeCtx(ctx context.Context, encodedExtrinsic string) (Estimate, error) {
	raw, err := e.source.PaymentQueryInfo(ctx, encodedExtrinsic)
	if err != nil {
		return Estimate{}, err
	}
	var info paymentInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return Estimate{}, apexerr.Serialization("payment_queryInfo: malformed response")
	}

	base := new(big.Int)
	if _, ok := base.SetString(info.PartialFee, 10); !ok {
		return Estimate{}, apexerr.Serialization("payment_queryInfo: unparseable partialFee")
	}

	scaled := scaleByMultiplier(base, e.multiplier)
	total := new(big.Int).Add(scaled, e.tip)

	return Estimate{
		EffectivePrice: scaled,
		TotalCost:      total,
		Tip:            e.tip,
	}, nil
}

func scaleByMultiplier(base *big.Int, multiplier float64) *big.Int {
	if multiplier == 1.0 {
		return new(big.Int).Set(base)
	}
	// Scale via a fixed-point numerator/denominator to avoid float64
	// precision loss on the big.Int fee amount.
	const precision = 1_000_000
	numerator := int64(multiplier * precision)
	scaled := new(big.Int).Mul(base, big.NewInt(numerator))
	return scaled.Div(scaled, big.NewInt(precision))
}
