// Package query implements the derived views over a full log scan: field
// filtering, grouped counts and the usage statistics heuristic. Everything
// here is pure and stateless relative to the log.
package query

import "notilog/internal/record"

// Filter keeps the records matching every non-empty criterion. Criteria map
// field names (case-insensitive) to expected values, compared with
// case-insensitive exact match. Empty values and unknown field names are not
// filters: they match everything. Nil or empty criteria return the input
// unchanged, in order.
func Filter(records []record.Record, criteria map[string]string) []record.Record {
	if len(criteria) == 0 {
		return records
	}

	out := make([]record.Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, criteria) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec record.Record, criteria map[string]string) bool {
	for field, want := range criteria {
		if want == "" {
			continue
		}
		matched, known := rec.MatchField(field, want)
		if !known {
			continue
		}
		if !matched {
			return false
		}
	}
	return true
}

// GroupCounts holds record counts grouped by state and by notification type.
type GroupCounts struct {
	ByState            map[string]int `json:"recordsByState"`
	ByNotificationType map[string]int `json:"recordsByNotificationType"`
}

// Group counts the records by state and by notification type.
func Group(records []record.Record) GroupCounts {
	counts := GroupCounts{
		ByState:            make(map[string]int),
		ByNotificationType: make(map[string]int),
	}
	for _, rec := range records {
		counts.ByState[rec.State]++
		counts.ByNotificationType[rec.NotificationType]++
	}
	return counts
}

// EstimatedBytes sums the character-length size estimate of every record.
// This is a heuristic, not an on-disk footprint; callers treating it as a
// true capacity signal will be misled.
func EstimatedBytes(records []record.Record) int64 {
	var total int64
	for _, rec := range records {
		total += int64(rec.EstimatedSize())
	}
	return total
}

// Capacity status values.
const (
	StatusFull      = "FULL"
	StatusAvailable = "AVAILABLE"
)

// Usage computes the usage percentage of estimated bytes against a fixed
// capacity, and the derived FULL/AVAILABLE status. Usage of exactly 100%
// counts as full.
func Usage(estimatedBytes, capacityBytes int64) (percent float64, status string) {
	if capacityBytes > 0 {
		percent = float64(estimatedBytes) / float64(capacityBytes) * 100
	}
	if percent >= 100 {
		return percent, StatusFull
	}
	return percent, StatusAvailable
}
