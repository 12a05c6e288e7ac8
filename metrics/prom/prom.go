// Package prom exports buffer cache metrics to Prometheus.
package prom

import (
	"github.com/IvanBrykalov/bcache/bcache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements bcache.Metrics and exports Prometheus counters.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	recycles  *prometheus.CounterVec
	transfers *prometheus.CounterVec
	waits     prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Block requests served by a cached buffer",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Block requests that rebound a buffer",
			ConstLabels: constLabels,
		}),
		recycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "recycles_total",
				Help:        "Buffers rebound to a new block, by source",
				ConstLabels: constLabels,
			},
			[]string{"source"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "transfers_total",
				Help:        "Device transfers by direction and outcome",
				ConstLabels: constLabels,
			},
			[]string{"op", "result"},
		),
		waits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "buffer_waits_total",
			Help:        "Times a caller slept because every buffer was referenced",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.recycles, a.transfers, a.waits)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Recycle increments the recycle counter with a source label.
func (a *Adapter) Recycle(r bcache.RecycleReason) {
	a.recycles.WithLabelValues(source(r)).Inc()
}

// Transfer counts one device transfer.
func (a *Adapter) Transfer(write bool, err error) {
	op, result := "read", "ok"
	if write {
		op = "write"
	}
	if err != nil {
		result = "error"
	}
	a.transfers.WithLabelValues(op, result).Inc()
}

// Wait increments the buffer wait counter.
func (a *Adapter) Wait() { a.waits.Inc() }

// source maps RecycleReason to a stable label value.
func source(r bcache.RecycleReason) string {
	if r == bcache.RecycleSteal {
		return "steal"
	}
	return "local"
}

// Compile-time check: ensure Adapter implements bcache.Metrics.
var _ bcache.Metrics = (*Adapter)(nil)
