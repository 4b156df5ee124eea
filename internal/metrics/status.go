package metrics

import "sort"

// StatusBucket is the response count for one connector/status-code pair.
type StatusBucket struct {
	Connector string `json:"connector" yaml:"connector"`
	Code      string `json:"code" yaml:"code"`
	Count     int64  `json:"count" yaml:"count"`
}

// FlattenStatusBuckets turns per-connector stats into rows sorted by
// descending count, then by connector and code for stability.
func FlattenStatusBuckets(snapshot map[string]Stats) []StatusBucket {
	var rows []StatusBucket
	for connector, stats := range snapshot {
		for code, count := range stats.StatusCodes {
			rows = append(rows, StatusBucket{Connector: connector, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Connector == rows[j].Connector {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Connector < rows[j].Connector
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
