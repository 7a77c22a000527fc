package fee

import (
	"context"
	"math/big"
)

// GweiToWei converts a gwei amount into wei.
func GweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1_000_000_000))
}

// defaultPriorityFeeWei is used when no priority fee override is configured:
// 2 gwei, matching common wallet defaults.
var defaultPriorityFeeWei = GweiToWei(2)

// defaultGasSafetyFactorNumerator/Denominator (1.2x) multiply the provider's raw gas estimate to
// leave headroom for state changes between estimation and inclusion.
const defaultGasSafetyFactorNumerator = 12
const defaultGasSafetyFactorDenominator = 10

// EvmFeeSource is the subset of the EVM provider the estimator needs.
type EvmFeeSource interface {
	GetGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error)
	LatestBaseFee(ctx context.Context) (*big.Int, bool, error)
}

// EvmEstimator implements the EIP-1559-preferring algorithm of §4.6.
type EvmEstimator struct {
	source       EvmFeeSource
	priorityFee  *big.Int // nil means use defaultPriorityFeeWei
	safetyFactor float64  // 0 means use the default 1.2
}

// NewEvmEstimator builds an estimator over a provider-backed fee source.
func NewEvmEstimator(source EvmFeeSource) *EvmEstimator {
	return &EvmEstimator{source: source}
}

// WithPriorityFee overrides the default 2 gwei priority fee.
func (e *EvmEstimator) WithPriorityFee(weiPerGas *big.Int) *EvmEstimator {
	e.priorityFee = weiPerGas
	return e
}

// EstimateFeeCtx computes a fee estimate for a prospective call.
func (e *EvmEstimator) EstimateFeeCtx(ctx context.Context, from, to string, value *big.Int, data []byte) (Estimate, error) {
	gasLimit, err := e.source.EstimateGas(ctx, from, to, value, data)
	if err != nil {
		return Estimate{}, err
	}
	gasLimit = applySafetyFactor(gasLimit)

	baseFee, hasBaseFee, err := e.source.LatestBaseFee(ctx)
	if err != nil {
		return Estimate{}, err
	}

	if hasBaseFee {
		priority := e.priorityFee
		if priority == nil {
			priority = defaultPriorityFeeWei
		}
		maxFee := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), priority)
		total := new(big.Int).Mul(maxFee, new(big.Int).SetUint64(gasLimit))
		return Estimate{
			GasLimit:       gasLimit,
			EffectivePrice: maxFee,
			MaxFeePerGas:   maxFee,
			MaxPriorityFee: priority,
			IsEip1559:      true,
			TotalCost:      total,
		}, nil
	}

	gasPrice, err := e.source.GetGasPrice(ctx)
	if err != nil {
		return Estimate{}, err
	}
	total := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	return Estimate{
		GasLimit:       gasLimit,
		EffectivePrice: gasPrice,
		IsEip1559:      false,
		TotalCost:      total,
	}, nil
}

// EstimateFee satisfies the Estimator interface using a background context.
// Prefer EstimateFeeCtx when a caller context is available.
func (e *EvmEstimator) EstimateFee(from, to string, value *big.Int, data []byte) (Estimate, error) {
	return e.EstimateFeeCtx(context.Background(), from, to, value, data)
}

func applySafetyFactor(gasLimit uint64) uint64 {
	scaled := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), big.NewInt(defaultGasSafetyFactorNumerator))
	scaled.Div(scaled, big.NewInt(defaultGasSafetyFactorDenominator))
	return scaled.Uint64()
}
