package metrics

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records request outcomes for a single connector.
type Collector struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	successes   int64
	failures    int64
	minLatency  time.Duration
	maxLatency  time.Duration
	sumLatency  time.Duration
	statusCodes map[string]int64
	errorKinds  map[string]int64
}

// Stats is a point-in-time view of a Collector.
type Stats struct {
	Total       int64         `json:"total" yaml:"total"`
	Successes   int64         `json:"successes" yaml:"successes"`
	Failures    int64         `json:"failures" yaml:"failures"`
	MinLatency  time.Duration `json:"-" yaml:"-"`
	MaxLatency  time.Duration `json:"-" yaml:"-"`
	MeanLatency time.Duration `json:"-" yaml:"-"`
	P50Latency  time.Duration `json:"-" yaml:"-"`
	P99Latency  time.Duration `json:"-" yaml:"-"`

	MinLatencyMs  float64          `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64          `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64          `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64          `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P99LatencyMs  float64          `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	StatusCodes   map[string]int64 `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
	Errors        map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &Collector{
		hist:        hdrhistogram.New(1, 60_000_000, 3),
		statusCodes: make(map[string]int64),
		errorKinds:  make(map[string]int64),
	}
}

// RecordRequest records one exchange. status is 0 when no response arrived.
func (c *Collector) RecordRequest(latency time.Duration, status int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		us = max(us, c.hist.LowestTrackableValue())
		us = min(us, c.hist.HighestTrackableValue())
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if status > 0 {
		c.statusCodes[strconv.Itoa(status)]++
	}
	if err == nil {
		c.successes++
		return
	}
	c.failures++
	c.errorKinds[classifyError(err)]++
}

// Stats computes the aggregated statistics recorded so far.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}
	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)
	stats.StatusCodes = copyCounts(c.statusCodes)
	stats.Errors = copyCounts(c.errorKinds)
	return stats
}

func classifyError(err error) string {
	var coder StatusCoder
	switch {
	case errors.As(err, &coder):
		return "http_" + strconv.Itoa(coder.StatusCode())
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func copyCounts(src map[string]int64) map[string]int64 {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Set hands out one Collector per connector.
type Set struct {
	mu         sync.Mutex
	collectors map[string]*Collector
}

func NewSet() *Set {
	return &Set{collectors: make(map[string]*Collector)}
}

// For returns the collector for name, creating it on first use.
func (s *Set) For(name string) *Collector {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collectors[name]
	if !ok {
		c = NewCollector()
		s.collectors[name] = c
	}
	return c
}

// Names returns the connector names with a collector, sorted.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.collectors))
	for name := range s.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the stats of every collector keyed by connector name.
func (s *Set) Snapshot() map[string]Stats {
	names := s.Names()
	out := make(map[string]Stats, len(names))
	for _, name := range names {
		out[name] = s.For(name).Stats()
	}
	return out
}
