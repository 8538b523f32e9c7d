package domain

import "time"

// ConnectionQuality is a coarse bucket derived from measured round-trip latency.
type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "excellent"
	QualityGood      ConnectionQuality = "good"
	QualityPoor      ConnectionQuality = "poor"
	QualityOffline   ConnectionQuality = "offline"
)

// Quality bucket upper bounds. A latency exactly on a bound classifies into
// the better (lower-latency) bucket.
const (
	ExcellentLatencyMax = 150 * time.Millisecond
	GoodLatencyMax      = 500 * time.Millisecond
	PoorLatencyMax      = 2000 * time.Millisecond
)

// QualityFromLatency maps a probe round-trip time to a quality bucket.
func QualityFromLatency(rtt time.Duration) ConnectionQuality {
	switch {
	case rtt <= ExcellentLatencyMax:
		return QualityExcellent
	case rtt <= GoodLatencyMax:
		return QualityGood
	case rtt <= PoorLatencyMax:
		return QualityPoor
	default:
		return QualityOffline
	}
}

// ConnectivityState is a snapshot of network and service reachability.
// Monitor.State returns copies; callers never share the live instance.
type ConnectivityState struct {
	IsOnline           bool
	IsServiceConnected bool
	LastConnectedAt    time.Time
	LastDisconnectedAt time.Time
	ReconnectAttempts  int
	Quality            ConnectionQuality
	LatencyMs          *int64
}
