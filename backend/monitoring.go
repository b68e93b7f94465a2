// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const LatencyBuckets = 101
const LatencyBucketSize = 50 * time.Millisecond

// Histogram counts durations in 50ms buckets. The last bucket holds
// everything from 5s up.
type Histogram struct {
	Buckets [LatencyBuckets]uint64 `json:"b2"`
	Count   uint64                 `json:"c"`
	Sum     float64                `json:"s"` // Sum of durations in milliseconds
}

func (h *Histogram) Add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	ms := float64(d.Milliseconds())
	idx := int(d / LatencyBucketSize)
	if idx >= LatencyBuckets {
		idx = LatencyBuckets - 1
	}
	h.Buckets[idx]++
	h.Count++
	h.Sum += ms
}

func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	for i := 0; i < LatencyBuckets; i++ {
		h.Buckets[i] += other.Buckets[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// Mean is the average duration in milliseconds.
func (h *Histogram) Mean() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// Percentile returns the upper bound, in milliseconds, of the bucket that
// holds the q-th quantile.
func (h *Histogram) Percentile(q float64) float64 {
	if h.Count == 0 {
		return 0
	}
	rank := uint64(q*float64(h.Count) + 0.5)
	if rank < 1 {
		rank = 1
	}
	var seen uint64
	for i, n := range h.Buckets {
		seen += n
		if seen >= rank {
			return float64(time.Duration(i+1) * LatencyBucketSize / time.Millisecond)
		}
	}
	return float64(LatencyBuckets * LatencyBucketSize / time.Millisecond)
}

// ResolutionConfig defines the policy for a single ring buffer.
type ResolutionConfig struct {
	Name       string        `json:"name"`
	Resolution time.Duration `json:"resolution"`
	Buckets    int           `json:"buckets"`
}

var DefaultResolutions = []ResolutionConfig{
	{"1m", 1 * time.Minute, 120},
	{"1h", 1 * time.Hour, 168},
	{"1d", 24 * time.Hour, 90},
}

// Point represents a single data point in a time series.
type Point[T any] struct {
	Timestamp int64 `json:"t"`
	Value     T     `json:"v"`
}

// RingBuffer is a fixed-size circular buffer for storing time series data.
type RingBuffer[T any] struct {
	Config ResolutionConfig `json:"config"`
	Data   []Point[T]       `json:"data"`
	Head   int              `json:"head"` // Points to the *next* write position
}

func NewRingBuffer[T any](cfg ResolutionConfig) *RingBuffer[T] {
	return &RingBuffer[T]{
		Config: cfg,
		Data:   make([]Point[T], cfg.Buckets),
	}
}

func (rb *RingBuffer[T]) align(timestamp int64) int64 {
	resSec := int64(rb.Config.Resolution.Seconds())
	return (timestamp / resSec) * resSec
}

// last returns the most recent point when it falls in the same slot as
// timestamp.
func (rb *RingBuffer[T]) last(timestamp int64) *Point[T] {
	prevIdx := (rb.Head - 1 + len(rb.Data)) % len(rb.Data)
	if p := &rb.Data[prevIdx]; p.Timestamp == rb.align(timestamp) {
		return p
	}
	return nil
}

// Add appends a point, replacing the latest one when it has the same slot.
func (rb *RingBuffer[T]) Add(timestamp int64, value T) {
	if p := rb.last(timestamp); p != nil {
		p.Value = value
		return
	}
	rb.Data[rb.Head] = Point[T]{Timestamp: rb.align(timestamp), Value: value}
	rb.Head = (rb.Head + 1) % len(rb.Data)
}

// GetPoints returns the data points sorted by time.
func (rb *RingBuffer[T]) GetPoints() []Point[T] {
	points := make([]Point[T], 0, len(rb.Data))
	for i := 0; i < len(rb.Data); i++ {
		idx := (rb.Head + i) % len(rb.Data)
		if rb.Data[idx].Timestamp > 0 {
			points = append(points, rb.Data[idx])
		}
	}
	return points
}

// CountSeries sums event counts per slot at every resolution.
type CountSeries struct {
	Name    string                          `json:"name"`
	Buffers map[string]*RingBuffer[float64] `json:"buffers"`
}

func NewCountSeries(name string) *CountSeries {
	buffers := make(map[string]*RingBuffer[float64])
	for _, cfg := range DefaultResolutions {
		buffers[cfg.Name] = NewRingBuffer[float64](cfg)
	}
	return &CountSeries{Name: name, Buffers: buffers}
}

func (cs *CountSeries) Ingest(timestamp int64, value float64) {
	for _, buf := range cs.Buffers {
		if p := buf.last(timestamp); p != nil {
			p.Value += value
			continue
		}
		buf.Add(timestamp, value)
	}
}

// HistogramSeries holds all resolutions for a histogram metric.
type HistogramSeries struct {
	Name    string                            `json:"name"`
	Buffers map[string]*RingBuffer[Histogram] `json:"buffers"`
}

func NewHistogramSeries(name string) *HistogramSeries {
	buffers := make(map[string]*RingBuffer[Histogram])
	for _, cfg := range DefaultResolutions {
		buffers[cfg.Name] = NewRingBuffer[Histogram](cfg)
	}
	return &HistogramSeries{Name: name, Buffers: buffers}
}

func (hs *HistogramSeries) Ingest(timestamp int64, h *Histogram) {
	if h == nil {
		return
	}
	for _, buf := range hs.Buffers {
		if p := buf.last(timestamp); p != nil {
			p.Value.Merge(h)
			continue
		}
		buf.Add(timestamp, *h)
	}
}

// ExportStats is the body of /api/export/stats.
type ExportStats struct {
	Total     uint64           `json:"total"`
	Succeeded uint64           `json:"succeeded"`
	Failed    uint64           `json:"failed"`
	Limited   uint64           `json:"limited"`
	InFlight  int              `json:"inFlight"`
	MeanMS    float64          `json:"meanMs"`
	P50MS     float64          `json:"p50Ms"`
	P95MS     float64          `json:"p95Ms"`
	Latency   Histogram        `json:"latency"`
	Series    *HistogramSeries `json:"series"`
	Failures  *CountSeries     `json:"failures"`
	Browser   BrowserStats     `json:"browser"`
}

// BrowserStats describes the shared browser session.
type BrowserStats struct {
	Connected bool `json:"connected"`
	Launches  int  `json:"launches"`
}

// ExportMetrics tracks export outcomes and latency. Each observation is
// mirrored to Prometheus collectors.
type ExportMetrics struct {
	mu        sync.Mutex
	latency   Histogram
	series    *HistogramSeries
	failures  *CountSeries
	succeeded uint64
	failed    uint64
	limited   uint64
	inFlight  int
	now       func() time.Time

	exportsTotal   *prometheus.CounterVec
	exportDuration prometheus.Histogram
	exportInFlight prometheus.Gauge
	exportSlides   prometheus.Gauge
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewExportMetrics creates the metrics and registers the collectors with reg
// when it is non-nil.
func NewExportMetrics(reg prometheus.Registerer) *ExportMetrics {
	m := &ExportMetrics{
		series:   NewHistogramSeries("export:latency"),
		failures: NewCountSeries("export:failures"),
		now:      time.Now,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pitchdeck_exports_total",
			Help: "PDF exports by result (ok, error, limited).",
		}, []string{"result"}),
		exportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pitchdeck_export_duration_seconds",
			Help:    "Histogram of PDF export durations.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		}),
		exportInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pitchdeck_exports_in_flight",
			Help: "PDF exports currently running.",
		}),
		exportSlides: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pitchdeck_export_last_slides",
			Help: "Slide count seen by the most recent successful export.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pitchdeck_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pitchdeck_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.exportsTotal,
			m.exportDuration,
			m.exportInFlight,
			m.exportSlides,
			m.requestsTotal,
			m.requestLatency,
		)
	}
	return m
}

// Begin marks an export as started. The returned func records its outcome.
func (m *ExportMetrics) Begin() func(d time.Duration, slides int, err error) {
	m.mu.Lock()
	m.inFlight++
	m.mu.Unlock()
	m.exportInFlight.Inc()

	return func(d time.Duration, slides int, err error) {
		m.exportInFlight.Dec()
		m.exportDuration.Observe(d.Seconds())

		m.mu.Lock()
		defer m.mu.Unlock()
		m.inFlight--
		ts := m.now().Unix()
		if err != nil {
			m.failed++
			m.failures.Ingest(ts, 1)
			m.exportsTotal.WithLabelValues("error").Inc()
			return
		}
		m.succeeded++
		m.latency.Add(d)
		var h Histogram
		h.Add(d)
		m.series.Ingest(ts, &h)
		m.exportsTotal.WithLabelValues("ok").Inc()
		m.exportSlides.Set(float64(slides))
	}
}

// Limited counts a request refused by the rate limiter.
func (m *ExportMetrics) Limited() {
	m.mu.Lock()
	m.limited++
	m.mu.Unlock()
	m.exportsTotal.WithLabelValues("limited").Inc()
}

// ObserveRequest records one HTTP request.
func (m *ExportMetrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(route).Observe(d.Seconds())
}

// Snapshot returns a copy of the current stats.
func (m *ExportMetrics) Snapshot() ExportStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := NewHistogramSeries(m.series.Name)
	for name, buf := range m.series.Buffers {
		cp := *buf
		cp.Data = append([]Point[Histogram](nil), buf.Data...)
		series.Buffers[name] = &cp
	}
	failures := NewCountSeries(m.failures.Name)
	for name, buf := range m.failures.Buffers {
		cp := *buf
		cp.Data = append([]Point[float64](nil), buf.Data...)
		failures.Buffers[name] = &cp
	}
	return ExportStats{
		Total:     m.succeeded + m.failed,
		Succeeded: m.succeeded,
		Failed:    m.failed,
		Limited:   m.limited,
		InFlight:  m.inFlight,
		MeanMS:    m.latency.Mean(),
		P50MS:     m.latency.Percentile(0.5),
		P95MS:     m.latency.Percentile(0.95),
		Latency:   m.latency,
		Series:    series,
		Failures:  failures,
	}
}
