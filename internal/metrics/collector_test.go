package metrics_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/torosent/flexconnect/internal/metrics"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	for _, ms := range []int{10, 20, 30, 40, 50} {
		c.RecordRequest(time.Duration(ms)*time.Millisecond, 200, nil)
	}

	stats := c.Stats()

	if stats.Total != 5 || stats.Successes != 5 || stats.Failures != 0 {
		t.Errorf("counts = %d/%d/%d, want 5/5/0", stats.Total, stats.Successes, stats.Failures)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
	if stats.StatusCodes["200"] != 5 {
		t.Errorf("status 200 count = %d, want 5", stats.StatusCodes["200"])
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	for i := 1; i <= 100; i++ {
		c.RecordRequest(time.Duration(i)*time.Millisecond, 200, nil)
	}

	stats := c.Stats()

	if stats.P50Latency < 49*time.Millisecond || stats.P50Latency > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", stats.P50Latency)
	}
	if stats.P99Latency < 98*time.Millisecond || stats.P99Latency > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", stats.P99Latency)
	}
}

func TestErrorClassification(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordRequest(time.Millisecond, 404, fmt.Errorf("load: %w", statusErr(404)))
	c.RecordRequest(time.Millisecond, 0, context.DeadlineExceeded)
	c.RecordRequest(time.Millisecond, 0, context.Canceled)
	c.RecordRequest(time.Millisecond, 0, errors.New("connection refused"))

	stats := c.Stats()
	want := map[string]int64{"http_404": 1, "timeout": 1, "canceled": 1, "transport": 1}
	for kind, count := range want {
		if stats.Errors[kind] != count {
			t.Errorf("Errors[%q] = %d, want %d", kind, stats.Errors[kind], count)
		}
	}
	if stats.Failures != 4 {
		t.Errorf("Failures = %d, want 4", stats.Failures)
	}
	if len(stats.StatusCodes) != 1 {
		t.Errorf("StatusCodes = %v, want only 404", stats.StatusCodes)
	}
}

func TestStatsJSONSchema(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordRequest(15*time.Millisecond, 200, nil)

	data, err := json.Marshal(c.Stats())
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	for _, field := range []string{"total", "successes", "failures", "min_latency_ms", "max_latency_ms", "mean_latency_ms", "p50_latency_ms", "p99_latency_ms", "status_codes"} {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
	if _, ok := parsed["errors"]; ok {
		t.Error("errors field should be omitted when there are no failures")
	}
}

func TestSetConcurrentRecording(t *testing.T) {
	set := metrics.NewSet()

	var wg sync.WaitGroup
	names := []string{"LrepConnector", "KeyUserConnector"}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := set.For(names[i%len(names)])
			for j := 0; j < 100; j++ {
				c.RecordRequest(time.Millisecond, 200, nil)
			}
		}(i)
	}
	wg.Wait()

	snapshot := set.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snapshot))
	}
	for _, name := range names {
		if snapshot[name].Total != 500 {
			t.Errorf("%s total = %d, want 500", name, snapshot[name].Total)
		}
	}
	if got := set.Names(); got[0] != "KeyUserConnector" || got[1] != "LrepConnector" {
		t.Errorf("Names() = %v, want sorted", got)
	}
}
