// Package metrics collects per-method RPC counters, transaction outcome
// counters, storage/cache counters, and per-pipeline-state timing, backed
// by prometheus client_golang collectors held privately behind a snapshot
// API.
package metrics

import (
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/apex-sdk/apex-sdk-go/pkg/pipeline"
)

// Metrics is the collector every adapter, cache, and pipeline reports
// into. Held by value where convenient since all state lives in the
// prometheus collectors, which are already safe for concurrent use.
type Metrics struct {
	rpcCalls    *prometheus.CounterVec
	rpcCallTime *prometheus.CounterVec

	transactionAttempts  prometheus.Counter
	transactionSuccesses prometheus.Counter
	transactionFailures  prometheus.Counter

	storageQueries prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter

	stateTime *prometheus.CounterVec

	startTime time.Time
}

// New builds a fresh collector with its own unregistered prometheus
// vectors — callers that want these exposed over /metrics can register
// them with a prometheus.Registry, though no HTTP exposition is provided
// by this package.
func New() *Metrics {
	return &Metrics{
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_sdk_rpc_calls_total",
			Help: "Total number of RPC calls by method.",
		}, []string{"method"}),
		rpcCallTime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_sdk_rpc_call_seconds_total",
			Help: "Cumulative RPC call time by method, in seconds.",
		}, []string{"method"}),
		transactionAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apex_sdk_transaction_attempts_total",
			Help: "Total transaction pipeline executions started.",
		}),
		transactionSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apex_sdk_transaction_successes_total",
			Help: "Total transaction pipeline executions that reached a success status.",
		}),
		transactionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apex_sdk_transaction_failures_total",
			Help: "Total transaction pipeline executions that reached a failure status.",
		}),
		storageQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apex_sdk_storage_queries_total",
			Help: "Total storage queries issued.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apex_sdk_cache_hits_total",
			Help: "Total cache lookups that hit.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apex_sdk_cache_misses_total",
			Help: "Total cache lookups that missed.",
		}),
		stateTime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apex_sdk_pipeline_state_seconds_total",
			Help: "Cumulative time transactions spent in each pipeline state, in seconds.",
		}, []string{"state"}),
		startTime: time.Now(),
	}
}

// RecordRPCCall increments the per-method RPC counter.
func (m *Metrics) RecordRPCCall(method string) {
	m.rpcCalls.WithLabelValues(method).Inc()
}

// RecordRPCCallTime increments both the per-method RPC counter and its
// cumulative call time, matching the source's "timing a call also counts
// it" behavior.
func (m *Metrics) RecordRPCCallTime(method string, d time.Duration) {
	m.rpcCallTime.WithLabelValues(method).Add(d.Seconds())
	m.rpcCalls.WithLabelValues(method).Inc()
}

// RecordTransactionAttempt increments the pipeline-execution counter.
func (m *Metrics) RecordTransactionAttempt() {
	m.transactionAttempts.Inc()
}

// RecordTransactionSuccess increments the success counter.
func (m *Metrics) RecordTransactionSuccess() {
	m.transactionSuccesses.Inc()
}

// RecordTransactionFailure increments the failure counter.
func (m *Metrics) RecordTransactionFailure() {
	m.transactionFailures.Inc()
}

// RecordStorageQuery increments the storage-query counter.
func (m *Metrics) RecordStorageQuery() {
	m.storageQueries.Inc()
}

// RecordCacheHit increments the cache-hit counter.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// RecordCacheMiss increments the cache-miss counter.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}

// OnTransition implements pipeline.StateObserver: every pipeline
// transition increments that state's cumulative time counter, satisfying
// the "every transition increments a metric counter; time in each state
// is exposed" requirement without the pipeline package depending on this
// one.
func (m *Metrics) OnTransition(from pipeline.State, elapsed time.Duration) {
	m.stateTime.WithLabelValues(from.String()).Add(elapsed.Seconds())
}

var _ pipeline.StateObserver = (*Metrics)(nil)

// Snapshot is a point-in-time read of every counter, with derived rates.
type Snapshot struct {
	TotalRPCCalls       uint64
	RPCCallsByMethod    map[string]uint64
	AvgRPCTime          time.Duration
	TransactionAttempts uint64
	TransactionSuccess  uint64
	TransactionFailure  uint64
	SuccessRate         float64
	StorageQueries      uint64
	CacheHits           uint64
	CacheMisses         uint64
	HitRate             float64
	StateTime           map[string]time.Duration
	Uptime              time.Duration
}

// Snapshot reads every collector via its Write(*dto.Metric) method into a
// plain struct, the same shape the spec's §4.13 snapshot contract names.
func (m *Metrics) Snapshot() Snapshot {
	byMethod, totalCalls := counterVecTotals(m.rpcCalls)
	_, totalCallTime := counterVecTotals(m.rpcCallTime)

	attempts := counterValue(m.transactionAttempts)
	successes := counterValue(m.transactionSuccesses)
	failures := counterValue(m.transactionFailures)

	hits := counterValue(m.cacheHits)
	misses := counterValue(m.cacheMisses)

	stateSeconds, _ := counterVecTotals(m.stateTime)
	stateTime := make(map[string]time.Duration, len(stateSeconds))
	for state, seconds := range stateSeconds {
		stateTime[state] = time.Duration(seconds * float64(time.Second))
	}

	var avgRPCTime time.Duration
	if totalCalls > 0 {
		avgRPCTime = time.Duration(totalCallTime * float64(time.Second) / float64(totalCalls))
	}

	var successRate float64
	if attempts > 0 {
		successRate = successes / attempts * 100
	}

	var hitRate float64
	if hits+misses > 0 {
		hitRate = hits / (hits + misses) * 100
	}

	return Snapshot{
		TotalRPCCalls:       uint64(totalCalls),
		RPCCallsByMethod:    uint64Map(byMethod),
		AvgRPCTime:          avgRPCTime,
		TransactionAttempts: uint64(attempts),
		TransactionSuccess:  uint64(successes),
		TransactionFailure:  uint64(failures),
		SuccessRate:         successRate,
		StorageQueries:      uint64(counterValue(m.storageQueries)),
		CacheHits:           uint64(hits),
		CacheMisses:         uint64(misses),
		HitRate:             hitRate,
		StateTime:           stateTime,
		Uptime:              time.Since(m.startTime),
	}
}

func counterValue(c prometheus.Counter) float64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

func counterVecTotals(vec *prometheus.CounterVec) (map[string]float64, float64) {
	metricChan := make(chan prometheus.Metric)
	go func() {
		vec.Collect(metricChan)
		close(metricChan)
	}()

	byLabel := make(map[string]float64)
	var total float64
	for metric := range metricChan {
		var dtoMetric dto.Metric
		if err := metric.Write(&dtoMetric); err != nil {
			continue
		}
		value := dtoMetric.GetCounter().GetValue()
		label := ""
		if labels := dtoMetric.GetLabel(); len(labels) > 0 {
			label = labels[0].GetValue()
		}
		byLabel[label] = value
		total += value
	}
	return byLabel, total
}

func uint64Map(in map[string]float64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = uint64(v)
	}
	return out
}
