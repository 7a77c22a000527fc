package pipeline

import "math/big"

// scaleCompact encodes n using the SCALE "compact" integer format: the low
// two bits of the first byte select a mode (single-byte, two-byte,
// four-byte, or big-integer), matching the subset of the codec the
// substrate pipeline needs to hand-assemble a Balances.transfer extrinsic
// without a full SCALE code generator.
func scaleCompact(n *big.Int) []byte {
	if n.Sign() < 0 {
		n = big.NewInt(0)
	}
	if n.IsUint64() {
		v := n.Uint64()
		switch {
		case v < 1<<6:
			return []byte{byte(v << 2)}
		case v < 1<<14:
			x := uint16(v<<2) | 0b01
			return []byte{byte(x), byte(x >> 8)}
		case v < 1<<30:
			x := uint32(v<<2) | 0b10
			return []byte{byte(x), byte(x >> 8), byte(x >> 16), byte(x >> 24)}
		}
	}
	// Big-integer mode: first byte encodes (byteLen-4)<<2 | 0b11, followed
	// by the value's little-endian bytes.
	be := n.Bytes()
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	header := byte((len(le)-4)<<2) | 0b11
	return append([]byte{header}, le...)
}

// scaleCompactUint is a convenience wrapper for small counters (nonce).
func scaleCompactUint(v uint64) []byte {
	return scaleCompact(new(big.Int).SetUint64(v))
}

// leUint32 fixed-width little-endian encodes v, the form specVersion and
// transactionVersion take in a signed payload.
func leUint32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
