// Package metrics records request statistics for flexibility connectors.
//
// Each connector gets its own [Collector] from a shared [Set]:
//
//	set := metrics.NewSet()
//	c := set.For("LrepConnector")
//	c.RecordRequest(latency, http.StatusOK, nil)
//
//	for name, stats := range set.Snapshot() {
//		fmt.Println(name, stats.P99LatencyMs)
//	}
//
// Latencies are kept in an HDR histogram, so percentiles stay accurate without
// storing individual samples. Failed requests are counted by kind: "http_<code>"
// for errors exposing a status code, "timeout", "canceled" or "transport".
//
// Collectors are safe for concurrent use.
package metrics
