package engine

// metrics.go is a thin abstraction over Prometheus so the engine runs with
// or without metrics. Passing a *prometheus.Registry via WithMetrics wires
// up real collectors; otherwise a no-op sink is used and the hot path
// doesn't pay for metric updates. Mirrors the teacher's pkg/metrics.go
// split (metricsSink interface, noopMetrics, promMetrics), retargeted from
// CLOCK-Pro's hits/misses/evictions/rotations/arena_bytes to this spec's
// hits/misses/arena_bytes/rehash_started/rehash_completed plus a
// resize_in_progress gauge (spec.md §4.4's stats() fields).
//
// © 2025 hinotetsu authors. MIT License.

import (
    "strconv"

    "github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
    incHit(shard int)
    incMiss(shard int)
    incRehashStarted(shard int)
    incRehashCompleted(shard int)
    setArenaBytes(shard int, value int64)
    setResizing(shard int, resizing bool)
}

type noopMetrics struct{}

func (noopMetrics) incHit(int)                 {}
func (noopMetrics) incMiss(int)                {}
func (noopMetrics) incRehashStarted(int)        {}
func (noopMetrics) incRehashCompleted(int)      {}
func (noopMetrics) setArenaBytes(int, int64)    {}
func (noopMetrics) setResizing(int, bool)       {}

type promMetrics struct {
    hits             *prometheus.CounterVec
    misses           *prometheus.CounterVec
    rehashStarted    *prometheus.CounterVec
    rehashCompleted  *prometheus.CounterVec
    arenaBytes       *prometheus.GaugeVec
    resizeInProgress *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
    label := []string{"shard"}

    pm := &promMetrics{
        hits: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "hinotetsu",
            Name:      "hits_total",
            Help:      "Number of get hits.",
        }, label),
        misses: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "hinotetsu",
            Name:      "misses_total",
            Help:      "Number of get misses (absent, deleted, or expired).",
        }, label),
        rehashStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "hinotetsu",
            Name:      "rehash_started_total",
            Help:      "Number of incremental rehashes started.",
        }, label),
        rehashCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "hinotetsu",
            Name:      "rehash_completed_total",
            Help:      "Number of incremental rehashes completed.",
        }, label),
        arenaBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
            Namespace: "hinotetsu",
            Name:      "arena_bytes",
            Help:      "Bytes handed out by the shard's arena bump allocator.",
        }, label),
        resizeInProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
            Namespace: "hinotetsu",
            Name:      "resize_in_progress",
            Help:      "1 while the shard has an incoming table, else 0.",
        }, label),
    }

    reg.MustRegister(pm.hits, pm.misses, pm.rehashStarted, pm.rehashCompleted, pm.arenaBytes, pm.resizeInProgress)
    return pm
}

func (m *promMetrics) incHit(shard int) {
    m.hits.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) incMiss(shard int) {
    m.misses.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) incRehashStarted(shard int) {
    m.rehashStarted.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) incRehashCompleted(shard int) {
    m.rehashCompleted.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) setArenaBytes(shard int, value int64) {
    m.arenaBytes.WithLabelValues(strconv.Itoa(shard)).Set(float64(value))
}
func (m *promMetrics) setResizing(shard int, resizing bool) {
    v := 0.0
    if resizing {
        v = 1.0
    }
    m.resizeInProgress.WithLabelValues(strconv.Itoa(shard)).Set(v)
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
    if reg == nil {
        return noopMetrics{}
    }
    return newPromMetrics(reg)
}
