// Package pool provides round-robin connection pooling with per-endpoint
// health tracking and automatic failover, generalized across EVM and
// substrate providers behind a single Connection capability.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// Connection is the capability a pooled endpoint must provide: something
// that can be health-checked and that exposes the URL it was built from.
type Connection interface {
	Endpoint() string
	HealthCheck(ctx context.Context) error
}

// EndpointHealth is the health snapshot for one pooled endpoint.
type EndpointHealth struct {
	IsHealthy       bool
	LastSuccess     time.Time
	LastFailure     time.Time
	FailureCount    uint32
	AvgResponseTime time.Duration
}

// Config tunes failover thresholds and the health-check cadence.
type Config struct {
	// MaxFailures is the consecutive-failure count that marks an endpoint
	// unhealthy.
	MaxFailures uint32
	// UnhealthyRetryDelay is how long an unhealthy endpoint is skipped
	// before get_connection gives it another chance.
	UnhealthyRetryDelay time.Duration
	// HealthCheckInterval is the cadence of the background checker
	// started by StartHealthChecker.
	HealthCheckInterval time.Duration
}

// DefaultConfig matches the source pool's defaults: 3 consecutive
// failures to mark unhealthy, 60s before retrying it, 30s check cadence.
func DefaultConfig() Config {
	return Config{
		MaxFailures:         3,
		UnhealthyRetryDelay: 60 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

type entry struct {
	conn   Connection
	mu     sync.RWMutex
	health EndpointHealth
}

// Pool round-robins over a fixed set of connections, skipping endpoints
// marked unhealthy unless their retry delay has elapsed, and falls back to
// index 0 when every endpoint is unhealthy.
type Pool struct {
	// entriesMu guards the entries slice itself (membership), separate
	// from each entry's own health mutex: AddEndpoint/RemoveEndpoint
	// resize the slice while Get and the health checker iterate it
	// concurrently. Iteration acquires a read lock; reconnect attempts
	// (HealthCheck) happen outside any lock.
	entriesMu sync.RWMutex
	entries   []*entry
	nextIndex uint64
	cfg       Config

	stop chan struct{}
}

// New builds a pool over the given connections using DefaultConfig.
func New(conns []Connection) (*Pool, error) {
	return NewWithConfig(conns, DefaultConfig())
}

// NewWithConfig builds a pool with a custom Config.
func NewWithConfig(conns []Connection, cfg Config) (*Pool, error) {
	if len(conns) == 0 {
		return nil, apexerr.Connection("no endpoints provided")
	}
	entries := make([]*entry, len(conns))
	for i, c := range conns {
		entries[i] = &entry{conn: c, health: EndpointHealth{IsHealthy: true}}
	}
	return &Pool{entries: entries, cfg: cfg}, nil
}

// Get selects a connection using round-robin load balancing, skipping
// unhealthy endpoints unless their retry delay has elapsed. When every
// endpoint is unhealthy, it returns index 0 and leaves retry to the caller.
func (p *Pool) Get() Connection {
	p.entriesMu.RLock()
	defer p.entriesMu.RUnlock()

	total := uint64(len(p.entries))

	for attempts := uint64(0); attempts < total; attempts++ {
		idx := atomic.AddUint64(&p.nextIndex, 1) % total
		e := p.entries[idx]

		e.mu.RLock()
		h := e.health
		e.mu.RUnlock()

		if h.IsHealthy {
			return e.conn
		}
		if !h.LastFailure.IsZero() && time.Since(h.LastFailure) > p.cfg.UnhealthyRetryDelay {
			return e.conn
		}
	}

	return p.entries[0].conn
}

// MarkHealthy records a successful operation against conn and updates its
// exponential-moving-average response time (weight 0.9 toward history, per
// the source pool's update rule).
func (p *Pool) MarkHealthy(conn Connection, responseTime time.Duration) {
	e := p.find(conn)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.IsHealthy = true
	e.health.LastSuccess = time.Now()
	e.health.FailureCount = 0
	if e.health.AvgResponseTime == 0 {
		e.health.AvgResponseTime = responseTime
	} else {
		e.health.AvgResponseTime = (e.health.AvgResponseTime*9 + responseTime) / 10
	}
}

// MarkUnhealthy records a failed operation against conn, marking it
// unhealthy once MaxFailures consecutive failures accumulate.
func (p *Pool) MarkUnhealthy(conn Connection) {
	e := p.find(conn)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.LastFailure = time.Now()
	e.health.FailureCount++
	if e.health.FailureCount >= p.cfg.MaxFailures {
		e.health.IsHealthy = false
	}
}

// Health returns the current health snapshot for conn.
func (p *Pool) Health(conn Connection) (EndpointHealth, bool) {
	e := p.find(conn)
	if e == nil {
		return EndpointHealth{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health, true
}

// HealthStatus returns the endpoint/health pairs for every pooled
// connection, in pool order.
func (p *Pool) HealthStatus() map[string]EndpointHealth {
	p.entriesMu.RLock()
	entries := append([]*entry(nil), p.entries...)
	p.entriesMu.RUnlock()

	status := make(map[string]EndpointHealth, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		status[e.conn.Endpoint()] = e.health
		e.mu.RUnlock()
	}
	return status
}

// RunHealthChecks calls HealthCheck on every pooled connection and updates
// its health accordingly. The entries snapshot is taken under a read lock
// and released before probing, so a concurrent AddEndpoint/RemoveEndpoint
// never blocks on network I/O.
func (p *Pool) RunHealthChecks(ctx context.Context) {
	p.entriesMu.RLock()
	entries := append([]*entry(nil), p.entries...)
	p.entriesMu.RUnlock()

	for _, e := range entries {
		start := time.Now()
		if err := e.conn.HealthCheck(ctx); err != nil {
			p.MarkUnhealthy(e.conn)
			continue
		}
		p.MarkHealthy(e.conn, time.Since(start))
	}
}

// StartHealthChecker runs RunHealthChecks on cfg.HealthCheckInterval until
// Stop is called. Safe to call at most once per pool.
func (p *Pool) StartHealthChecker(ctx context.Context) {
	interval := p.cfg.HealthCheckInterval
	if interval == 0 {
		interval = DefaultConfig().HealthCheckInterval
	}
	p.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.RunHealthChecks(ctx)
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop halts a background health checker started by StartHealthChecker.
func (p *Pool) Stop() {
	if p.stop != nil {
		close(p.stop)
	}
}

// EndpointCount returns the number of pooled connections.
func (p *Pool) EndpointCount() int {
	p.entriesMu.RLock()
	defer p.entriesMu.RUnlock()
	return len(p.entries)
}

// AddEndpoint adds conn to the pool, available for round-robin selection
// immediately (marked healthy until a health check or a failed call says
// otherwise).
func (p *Pool) AddEndpoint(conn Connection) {
	p.entriesMu.Lock()
	defer p.entriesMu.Unlock()
	p.entries = append(p.entries, &entry{conn: conn, health: EndpointHealth{IsHealthy: true}})
}

// RemoveEndpoint removes conn from the pool. Removing the last remaining
// endpoint is rejected, since a pool with no endpoints has nothing for Get
// to return.
func (p *Pool) RemoveEndpoint(conn Connection) error {
	p.entriesMu.Lock()
	defer p.entriesMu.Unlock()
	if len(p.entries) <= 1 {
		return apexerr.Config("cannot remove the last endpoint from a connection pool")
	}
	for i, e := range p.entries {
		if e.conn == conn {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}
	return apexerr.Config("endpoint not found in pool")
}

// RemoveEndpointByURL removes whichever pooled connection reports conn.Endpoint()
// == url. Same last-endpoint rejection as RemoveEndpoint.
func (p *Pool) RemoveEndpointByURL(url string) error {
	p.entriesMu.Lock()
	defer p.entriesMu.Unlock()
	if len(p.entries) <= 1 {
		return apexerr.Config("cannot remove the last endpoint from a connection pool")
	}
	for i, e := range p.entries {
		if e.conn.Endpoint() == url {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}
	return apexerr.Config("endpoint not found in pool: " + url)
}

func (p *Pool) find(conn Connection) *entry {
	p.entriesMu.RLock()
	defer p.entriesMu.RUnlock()
	for _, e := range p.entries {
		if e.conn == conn {
			return e
		}
	}
	return nil
}
