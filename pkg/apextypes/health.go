package apextypes

import "time"

// EndpointHealth tracks one connection-pool endpoint's recent record.
// Mutated only by the connection pool, under its health mutex.
type EndpointHealth struct {
	IsHealthy        bool
	LastSuccess      *time.Time
	LastFailure      *time.Time
	FailureCount     int
	AvgResponseTimeMs float64
}

// NewEndpointHealth returns a fresh, healthy record.
func NewEndpointHealth() EndpointHealth {
	return EndpointHealth{IsHealthy: true}
}

// MarkHealthy resets the failure counter and folds a new response time into
// the exponential moving average (α = 0.1): avg = avg*0.9 + new*0.1, or the
// new value directly when there is no prior average.
func (h *EndpointHealth) MarkHealthy(responseTimeMs float64) {
	now := time.Now()
	h.LastSuccess = &now
	h.FailureCount = 0
	h.IsHealthy = true
	if h.AvgResponseTimeMs == 0 {
		h.AvgResponseTimeMs = responseTimeMs
	} else {
		h.AvgResponseTimeMs = h.AvgResponseTimeMs*0.9 + responseTimeMs*0.1
	}
}

// MarkUnhealthy increments the failure counter and flips IsHealthy to false
// once maxFailures consecutive failures have accumulated.
func (h *EndpointHealth) MarkUnhealthy(maxFailures int) {
	now := time.Now()
	h.LastFailure = &now
	h.FailureCount++
	if h.FailureCount >= maxFailures {
		h.IsHealthy = false
	}
}

// AccountType tags the ecosystem a keystore entry was created for.
type AccountType int

const (
	AccountSubstrate AccountType = iota
	AccountEvm
)

func (t AccountType) String() string {
	switch t {
	case AccountSubstrate:
		return "substrate"
	case AccountEvm:
		return "evm"
	default:
		return "unknown"
	}
}

// EncryptedAccount is one entry in the on-disk keystore. Secrets are never
// stored plain; EncryptedData is the AES-256-GCM ciphertext (tag included).
type EncryptedAccount struct {
	Name             string      `json:"name"`
	AccountType      AccountType `json:"account_type"`
	Address          string      `json:"address"`
	EncryptedData    []byte      `json:"encrypted_data"`
	Nonce            []byte      `json:"nonce"`
	Salt             []byte      `json:"salt"`
	CreatedAt        time.Time   `json:"created_at"`
	EncryptionVersion int        `json:"encryption_version"`
}

// AccountInfo is the result of a substrate system_account storage query.
type AccountInfo struct {
	Nonce       uint64
	Consumers   uint32
	Providers   uint32
	Sufficients uint32
	Free        uint64
	Reserved    uint64
	Frozen      uint64
}

// Total returns Free+Reserved, saturating at the uint64 maximum.
func (a AccountInfo) Total() uint64 {
	return saturatingAdd(a.Free, a.Reserved)
}

// Transferable returns Free-Frozen, saturating at zero.
func (a AccountInfo) Transferable() uint64 {
	if a.Frozen >= a.Free {
		return 0
	}
	return a.Free - a.Frozen
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
