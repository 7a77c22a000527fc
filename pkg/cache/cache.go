// Package cache provides TTL-backed lookup caches for storage queries,
// account balances, chain metadata, and raw RPC responses, each sized and
// expired independently.
package cache

import (
	"encoding/json"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// Config tunes capacity and per-cache TTLs. DefaultConfig matches the
// values a chain client actually observes: storage changes roughly every
// block, balances drift faster, metadata is near-static, and raw RPC
// responses sit in between.
type Config struct {
	MaxEntries  int64
	StorageTTL  time.Duration
	BalanceTTL  time.Duration
	MetadataTTL time.Duration
	RPCTTL      time.Duration
}

// DefaultConfig returns the cache's standard capacity and TTLs.
func DefaultConfig() Config {
	return Config{
		MaxEntries:  1000,
		StorageTTL:  30 * time.Second,
		BalanceTTL:  10 * time.Second,
		MetadataTTL: 300 * time.Second,
		RPCTTL:      60 * time.Second,
	}
}

// entry pairs a value with the wall-clock time it should be treated as a
// miss — recorded alongside the value since ristretto's own TTL eviction
// runs on its own schedule and offers no enumeration to drive clear_expired.
type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// namedCache wraps one *ristretto.Cache with the explicit expiry bookkeeping
// clear_expired needs, plus its own hit/miss counters.
type namedCache struct {
	backing *ristretto.Cache
	ttl     time.Duration

	mu   sync.Mutex
	keys map[string]time.Time

	hits   uint64
	misses uint64
}

func newNamedCache(maxEntries int64, ttl time.Duration) (*namedCache, error) {
	backing, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, apexerr.Other(err)
	}
	return &namedCache{backing: backing, ttl: ttl, keys: make(map[string]time.Time)}, nil
}

func (c *namedCache) get(key string) (any, bool) {
	raw, ok := c.backing.Get(key)
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	e := raw.(entry)
	if e.expired() {
		c.backing.Del(key)
		c.mu.Lock()
		delete(c.keys, key)
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return e.value, true
}

func (c *namedCache) put(key string, value any) {
	expiresAt := time.Now().Add(c.ttl)
	c.backing.SetWithTTL(key, entry{value: value, expiresAt: expiresAt}, 1, c.ttl)
	c.backing.Wait()
	c.mu.Lock()
	c.keys[key] = expiresAt
	c.mu.Unlock()
}

func (c *namedCache) clear() {
	c.backing.Clear()
	c.mu.Lock()
	c.keys = make(map[string]time.Time)
	c.mu.Unlock()
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.misses, 0)
}

func (c *namedCache) clearExpired() {
	now := time.Now()
	c.mu.Lock()
	expired := make([]string, 0)
	for k, exp := range c.keys {
		if now.After(exp) {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		delete(c.keys, k)
	}
	c.mu.Unlock()
	for _, k := range expired {
		c.backing.Del(k)
	}
}

func (c *namedCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Stats is a point-in-time snapshot of hit/miss counts and current size
// across all four named caches.
type Stats struct {
	Hits         uint64
	Misses       uint64
	StorageSize  int
	BalanceSize  int
	MetadataSize int
	RPCSize      int
}

// HitRate returns hits as a percentage of hits+misses, or 0 with no
// lookups recorded yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// TotalEntries sums the current size of all four named caches.
func (s Stats) TotalEntries() int {
	return s.StorageSize + s.BalanceSize + s.MetadataSize + s.RPCSize
}

// Cache is the four named, independently-TTL'd lookup caches: storage
// queries, account balances, chain metadata, and raw RPC responses.
type Cache struct {
	storage  *namedCache
	balance  *namedCache
	metadata *namedCache
	rpc      *namedCache
}

// New builds a Cache using DefaultConfig.
func New() (*Cache, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig builds a Cache with custom capacity and TTLs.
func NewWithConfig(cfg Config) (*Cache, error) {
	storage, err := newNamedCache(cfg.MaxEntries, cfg.StorageTTL)
	if err != nil {
		return nil, err
	}
	balance, err := newNamedCache(cfg.MaxEntries, cfg.BalanceTTL)
	if err != nil {
		return nil, err
	}
	metadata, err := newNamedCache(cfg.MaxEntries, cfg.MetadataTTL)
	if err != nil {
		return nil, err
	}
	rpc, err := newNamedCache(cfg.MaxEntries, cfg.RPCTTL)
	if err != nil {
		return nil, err
	}
	return &Cache{storage: storage, balance: balance, metadata: metadata, rpc: rpc}, nil
}

// GetStorage returns a cached storage query result, or (nil, false) on a
// miss or TTL expiry.
func (c *Cache) GetStorage(key string) ([]byte, bool) {
	v, ok := c.storage.get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// PutStorage caches a storage query result under storage_ttl.
func (c *Cache) PutStorage(key string, value []byte) {
	c.storage.put(key, value)
}

// GetBalance returns a cached account balance, or (nil, false) on a miss
// or TTL expiry.
func (c *Cache) GetBalance(address string) (*big.Int, bool) {
	v, ok := c.balance.get(address)
	if !ok {
		return nil, false
	}
	return v.(*big.Int), true
}

// PutBalance caches an account balance under balance_ttl.
func (c *Cache) PutBalance(address string, balance *big.Int) {
	c.balance.put(address, balance)
}

// GetMetadata returns cached chain metadata, or ("", false) on a miss or
// TTL expiry.
func (c *Cache) GetMetadata(key string) (string, bool) {
	v, ok := c.metadata.get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// PutMetadata caches chain metadata under metadata_ttl.
func (c *Cache) PutMetadata(key string, value string) {
	c.metadata.put(key, value)
}

// GetRPC returns a cached raw RPC response, or (nil, false) on a miss or
// TTL expiry.
func (c *Cache) GetRPC(key string) (json.RawMessage, bool) {
	v, ok := c.rpc.get(key)
	if !ok {
		return nil, false
	}
	return v.(json.RawMessage), true
}

// PutRPC caches a raw RPC response under rpc_ttl.
func (c *Cache) PutRPC(key string, value json.RawMessage) {
	c.rpc.put(key, value)
}

// Clear empties all four caches and resets their hit/miss counters.
func (c *Cache) Clear() {
	c.storage.clear()
	c.balance.clear()
	c.metadata.clear()
	c.rpc.clear()
}

// ClearExpired removes entries past their TTL from all four caches without
// touching still-live entries or the hit/miss counters.
func (c *Cache) ClearExpired() {
	c.storage.clearExpired()
	c.balance.clearExpired()
	c.metadata.clearExpired()
	c.rpc.clearExpired()
}

// Stats returns the combined hit/miss counters and current size of all
// four named caches.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         atomic.LoadUint64(&c.storage.hits) + atomic.LoadUint64(&c.balance.hits) + atomic.LoadUint64(&c.metadata.hits) + atomic.LoadUint64(&c.rpc.hits),
		Misses:       atomic.LoadUint64(&c.storage.misses) + atomic.LoadUint64(&c.balance.misses) + atomic.LoadUint64(&c.metadata.misses) + atomic.LoadUint64(&c.rpc.misses),
		StorageSize:  c.storage.size(),
		BalanceSize:  c.balance.size(),
		MetadataSize: c.metadata.size(),
		RPCSize:      c.rpc.size(),
	}
}

// TotalSize returns the current entry count across all four caches.
func (c *Cache) TotalSize() int {
	return c.storage.size() + c.balance.size() + c.metadata.size() + c.rpc.size()
}
