// Package fee implements per-ecosystem fee/gas computation.
package fee

import "math/big"

// Estimate is the common shape both ecosystems produce, even though only
// the EVM arm populates every field.
type Estimate struct {
	GasLimit       uint64
	EffectivePrice *big.Int // wei per gas (EVM) or the flat fee (substrate)
	MaxFeePerGas   *big.Int // EIP-1559 only
	MaxPriorityFee *big.Int // EIP-1559 only
	IsEip1559      bool
	TotalCost      *big.Int
	Tip            *big.Int // substrate inclusion-priority tip
}

// Estimator is the capability both ecosystem fee arms satisfy.
type Estimator interface {
	EstimateFee(from, to string, value *big.Int, data []byte) (Estimate, error)
}
