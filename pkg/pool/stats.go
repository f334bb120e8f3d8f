package pool

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a point in time view of a Pool.
type Stats struct {
	Idle           int   `json:"Idle" yaml:"Idle"`
	InUse          int   `json:"InUse" yaml:"InUse"`
	Pending        int   `json:"Pending" yaml:"Pending"`
	MaxConnections int   `json:"MaxConnections" yaml:"MaxConnections"`
	Opened         int64 `json:"Opened" yaml:"Opened"`
	Closed         int64 `json:"Closed" yaml:"Closed"`
	Reused         int64 `json:"Reused" yaml:"Reused"`
	DeadDiscarded  int64 `json:"DeadDiscarded" yaml:"DeadDiscarded"`
	StaleEvicted   int64 `json:"StaleEvicted" yaml:"StaleEvicted"`
	Exhausted      int64 `json:"Exhausted" yaml:"Exhausted"`
	Timeouts       int64 `json:"Timeouts" yaml:"Timeouts"`
}

// Stats returns the current container sizes and lifetime counters.
func (p *Pool) Stats() Stats {
	p.poolLock.Lock()
	idle, inUse, pending := p.idle.Len(), p.inUse.Len(), p.pending
	p.poolLock.Unlock()

	return Stats{
		Idle:           idle,
		InUse:          inUse,
		Pending:        pending,
		MaxConnections: p.Config.MaxConnections,
		Opened:         atomic.LoadInt64(&p.counters.Opened),
		Closed:         atomic.LoadInt64(&p.counters.Closed),
		Reused:         atomic.LoadInt64(&p.counters.Reused),
		DeadDiscarded:  atomic.LoadInt64(&p.counters.DeadDiscarded),
		StaleEvicted:   atomic.LoadInt64(&p.counters.StaleEvicted),
		Exhausted:      atomic.LoadInt64(&p.counters.Exhausted),
		Timeouts:       atomic.LoadInt64(&p.counters.Timeouts),
	}
}

// Collector exports Pool stats as Prometheus metrics.
type Collector struct {
	pool *Pool

	idle          *prometheus.Desc
	inUse         *prometheus.Desc
	maxConns      *prometheus.Desc
	opened        *prometheus.Desc
	closed        *prometheus.Desc
	reused        *prometheus.Desc
	deadDiscarded *prometheus.Desc
	staleEvicted  *prometheus.Desc
	exhausted     *prometheus.Desc
	timeouts      *prometheus.Desc
}

// NewCollector creates a Collector for p, labelled with the pool's ApplicationName.
func NewCollector(p *Pool) *Collector {
	labels := prometheus.Labels{"pool": p.Config.ApplicationName}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("estoult", "pool", name), help, nil, labels)
	}

	return &Collector{
		pool:          p,
		idle:          desc("idle_connections", "Connections waiting in the idle heap."),
		inUse:         desc("in_use_connections", "Connections checked out to workers."),
		maxConns:      desc("max_connections", "Configured connection cap, 0 when unbounded."),
		opened:        desc("opened_total", "Connections opened."),
		closed:        desc("closed_total", "Connections physically closed."),
		reused:        desc("reused_total", "Check-outs served from the idle heap."),
		deadDiscarded: desc("dead_discarded_total", "Idle connections discarded after failing the liveness probe."),
		staleEvicted:  desc("stale_evicted_total", "Connections closed for exceeding the stale timeout."),
		exhausted:     desc("exhausted_total", "Acquire attempts refused at the connection cap."),
		timeouts:      desc("timeouts_total", "Acquire calls that gave up after the wait timeout."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.idle, c.inUse, c.maxConns, c.opened, c.closed,
		c.reused, c.deadDiscarded, c.staleEvicted, c.exhausted, c.timeouts,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stats()

	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stats.Idle))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(stats.InUse))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stats.MaxConnections))
	ch <- prometheus.MustNewConstMetric(c.opened, prometheus.CounterValue, float64(stats.Opened))
	ch <- prometheus.MustNewConstMetric(c.closed, prometheus.CounterValue, float64(stats.Closed))
	ch <- prometheus.MustNewConstMetric(c.reused, prometheus.CounterValue, float64(stats.Reused))
	ch <- prometheus.MustNewConstMetric(c.deadDiscarded, prometheus.CounterValue, float64(stats.DeadDiscarded))
	ch <- prometheus.MustNewConstMetric(c.staleEvicted, prometheus.CounterValue, float64(stats.StaleEvicted))
	ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.CounterValue, float64(stats.Exhausted))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
}
