package domain

import "time"

// Severity grades a bottleneck by how far past its threshold an operation ran.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFromRatio maps duration/threshold to a severity grade.
// Ratios at or below 1 carry no bottleneck and map to low here.
func SeverityFromRatio(ratio float64) Severity {
	switch {
	case ratio > 3:
		return SeverityCritical
	case ratio > 2:
		return SeverityHigh
	case ratio > 1.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Bottleneck records an operation whose duration exceeded its category
// threshold.
type Bottleneck struct {
	Type               string
	Severity           Severity
	Description        string
	Metrics            map[string]any
	AffectedOperations []string
	Recommendations    []string
	Timestamp          time.Time
}
