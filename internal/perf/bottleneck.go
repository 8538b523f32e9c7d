package perf

import "time"

// Category thresholds. A finalized span or logged store error past its
// threshold produces a Bottleneck.
var categoryThresholds = map[string]time.Duration{
	"auth":     5000 * time.Millisecond,
	"database": 2000 * time.Millisecond,
	"network":  1000 * time.Millisecond,
	"ui":       100 * time.Millisecond,
}

// categoryRecommendations is the fixed remediation text per category.
var categoryRecommendations = map[string][]string{
	"auth": {
		"Check identity provider responsiveness",
		"Reduce token refresh frequency",
		"Verify network latency to the auth service",
	},
	"database": {
		"Review indexes for the affected query",
		"Reduce the row count fetched per query",
		"Check connection pool saturation",
	},
	"network": {
		"Check payload sizes and enable compression",
		"Verify service latency from this region",
		"Reduce request fan-out for the operation",
	},
	"ui": {
		"Defer non-critical rendering work",
		"Batch state updates",
		"Profile the slow interaction",
	},
}

// thresholdFor returns the category threshold, or 0 when the category has
// no bottleneck policy.
func thresholdFor(category string) time.Duration {
	return categoryThresholds[category]
}

func recommendationsFor(category string) []string {
	if recs, ok := categoryRecommendations[category]; ok {
		return recs
	}
	return []string{"Profile the operation to locate the slow path"}
}
