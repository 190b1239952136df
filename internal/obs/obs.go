// Package obs carries ambient process/service observability via
// Prometheus and gopsutil — QPS, goroutine count, CPU/memory/network, and
// counters for the store cache, the health dead-set and the flatten
// registry. This is deliberately separate from internal/metrics, which
// is per-zone business telemetry read back through the HTTP control
// plane.
package obs

import (
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Observer collects ambient process metrics and exposes DNS-domain
// counters for the store façade, health checker and flattener.
type Observer struct {
	mu          sync.Mutex
	totalQueries int64

	promQPS             prometheus.Gauge
	promTotalQueries    prometheus.Counter
	promCPUUsage        prometheus.Gauge
	promMemoryUsage     prometheus.Gauge
	promGoroutineCount  prometheus.Gauge
	promNetworkSent     prometheus.Gauge
	promNetworkRecv     prometheus.Gauge
	promQueryTypes      *prometheus.CounterVec
	promResponseCodes   *prometheus.CounterVec
	promCacheHits       prometheus.Counter
	promCacheMisses     prometheus.Counter
	promCacheEvictions  prometheus.Counter
	promStoreDisconnect prometheus.Counter
	promHealthDeadSize  prometheus.Gauge
	promFlattenEntries  prometheus.Gauge
	promFlattenErrors   prometheus.Counter
}

// New registers every Prometheus collector under namespace ns (e.g.
// "authdns") and starts the background system-metrics collectors.
func New(ns string, reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)

	o := &Observer{
		promQPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "qps", Help: "Queries per second",
		}),
		promTotalQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "queries_total", Help: "Total number of DNS queries",
		}),
		promCPUUsage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "cpu_usage_percent", Help: "Current CPU usage percentage",
		}),
		promMemoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "memory_usage_percent", Help: "Current memory usage percentage",
		}),
		promGoroutineCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "goroutine_count", Help: "Current number of goroutines",
		}),
		promNetworkSent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "network_sent_bytes", Help: "Total network bytes sent",
		}),
		promNetworkRecv: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "network_recv_bytes", Help: "Total network bytes received",
		}),
		promQueryTypes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "query_types_total", Help: "Total number of queries by type",
		}, []string{"type"}),
		promResponseCodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "response_codes_total", Help: "Total number of responses by code",
		}, []string{"code"}),
		promCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "store_cache_hits_total", Help: "Store façade local cache hits",
		}),
		promCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "store_cache_misses_total", Help: "Store façade local cache misses",
		}),
		promCacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "store_cache_evictions_total", Help: "Store façade local cache evictions",
		}),
		promStoreDisconnect: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "store_disconnected_total", Help: "Store façade Disconnected responses",
		}),
		promHealthDeadSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "health_dead_set_size", Help: "Number of (zone,name,value) tuples marked dead",
		}),
		promFlattenEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "flatten_registry_size", Help: "Number of cached flatten entries",
		}),
		promFlattenErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "flatten_errors_total", Help: "Flatten lookup failures",
		}),
	}

	go o.qpsCalculator()
	go o.systemMetricsCollector()

	return o
}

func (o *Observer) IncrementQueries() {
	o.mu.Lock()
	o.totalQueries++
	o.mu.Unlock()
	o.promTotalQueries.Inc()
}

func (o *Observer) qpsCalculator() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var last int64
	for range ticker.C {
		o.mu.Lock()
		cur := o.totalQueries
		o.mu.Unlock()

		o.promQPS.Set(float64(cur - last))
		last = cur
	}
}

func (o *Observer) systemMetricsCollector() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
			o.promCPUUsage.Set(pct[0])
		}
		if m, err := mem.VirtualMemory(); err == nil {
			o.promMemoryUsage.Set(m.UsedPercent)
		}
		o.promGoroutineCount.Set(float64(runtime.NumGoroutine()))
		if io, err := net.IOCounters(false); err == nil && len(io) > 0 {
			o.promNetworkSent.Set(float64(io[0].BytesSent))
			o.promNetworkRecv.Set(float64(io[0].BytesRecv))
		} else if err != nil {
			log.Printf("obs: error collecting system metrics: %v", err)
		}
	}
}

func (o *Observer) RecordQueryType(qtype string)    { o.promQueryTypes.WithLabelValues(qtype).Inc() }
func (o *Observer) RecordResponseCode(rcode string) { o.promResponseCodes.WithLabelValues(rcode).Inc() }
func (o *Observer) IncrementCacheHits()              { o.promCacheHits.Inc() }
func (o *Observer) IncrementCacheMisses()            { o.promCacheMisses.Inc() }
func (o *Observer) IncrementCacheEvictions()         { o.promCacheEvictions.Inc() }
func (o *Observer) IncrementStoreDisconnected()      { o.promStoreDisconnect.Inc() }
func (o *Observer) SetHealthDeadSetSize(n int)       { o.promHealthDeadSize.Set(float64(n)) }
func (o *Observer) SetFlattenRegistrySize(n int)     { o.promFlattenEntries.Set(float64(n)) }
func (o *Observer) IncrementFlattenErrors()           { o.promFlattenErrors.Inc() }
