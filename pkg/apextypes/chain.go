package apextypes

import "strings"

// ChainType identifies which ecosystem a Chain belongs to.
type ChainType int

const (
	// ChainTypeSubstrate covers Polkadot, Kusama, and their parachains.
	ChainTypeSubstrate ChainType = iota
	// ChainTypeEvm covers Ethereum and its derivatives.
	ChainTypeEvm
	// ChainTypeHybrid covers chains exposing both a substrate and an EVM
	// ABI (Moonbeam, Astar). They resolve to EVM by default and fall back
	// to substrate on lookup failure.
	ChainTypeHybrid
)

func (t ChainType) String() string {
	switch t {
	case ChainTypeSubstrate:
		return "substrate"
	case ChainTypeEvm:
		return "evm"
	case ChainTypeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// Chain identifies a known blockchain: its display name, its ecosystem, and
// the endpoint the SDK talks to when none is configured explicitly.
type Chain struct {
	Name            string
	Type            ChainType
	DefaultEndpoint string
}

// Well-known chains. Additional chains can be constructed directly; these
// are the ones the SDK ships with defaults for.
var (
	ChainPolkadot = Chain{Name: "Polkadot", Type: ChainTypeSubstrate, DefaultEndpoint: "wss://rpc.polkadot.io"}
	ChainKusama   = Chain{Name: "Kusama", Type: ChainTypeSubstrate, DefaultEndpoint: "wss://kusama-rpc.polkadot.io"}
	ChainWestend  = Chain{Name: "Westend", Type: ChainTypeSubstrate, DefaultEndpoint: "wss://westend-rpc.polkadot.io"}
	ChainEthereum = Chain{Name: "Ethereum", Type: ChainTypeEvm, DefaultEndpoint: "https://eth.llamarpc.com"}
	ChainBSC      = Chain{Name: "BSC", Type: ChainTypeEvm, DefaultEndpoint: "https://bsc-dataseed.binance.org"}
	ChainPolygon  = Chain{Name: "Polygon", Type: ChainTypeEvm, DefaultEndpoint: "https://polygon-rpc.com"}
	ChainMoonbeam = Chain{Name: "Moonbeam", Type: ChainTypeHybrid, DefaultEndpoint: "https://rpc.api.moonbeam.network"}
	ChainAstar    = Chain{Name: "Astar", Type: ChainTypeHybrid, DefaultEndpoint: "https://astar.api.onfinality.io/public"}
)

// KnownChains lists every chain the SDK recognizes by name.
var KnownChains = []Chain{
	ChainPolkadot, ChainKusama, ChainWestend,
	ChainEthereum, ChainBSC, ChainPolygon,
	ChainMoonbeam, ChainAstar,
}

// ChainFromName looks up a known chain by name, case-insensitively.
func ChainFromName(name string) (Chain, bool) {
	for _, c := range KnownChains {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Chain{}, false
}

// IsSubstrateEndpoint reports whether a URL looks like a substrate
// WebSocket endpoint (ws:// or wss://).
func IsSubstrateEndpoint(url string) bool {
	return strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://")
}
