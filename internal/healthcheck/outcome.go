package healthcheck

import "time"

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// FailureKind says why a probe ended Down. It is empty for Up outcomes.
type FailureKind string

const (
	KindNone    FailureKind = ""
	KindStatus  FailureKind = "status"
	KindTimeout FailureKind = "timeout"
	KindConnect FailureKind = "connect"
	KindBody    FailureKind = "body"
	KindOther   FailureKind = "other"
)

// Outcome is the result of checking one endpoint. Endpoint is already
// redacted. Latency is only set when Status is StatusUp, and StatusCode is
// zero when no HTTP response was received.
type Outcome struct {
	Endpoint   string
	Status     Status
	Reason     string
	Kind       FailureKind
	Latency    time.Duration
	Attempts   int
	StatusCode int
}

func (o Outcome) Up() bool {
	return o.Status == StatusUp
}

func (o Outcome) LatencyMS() int64 {
	return o.Latency.Milliseconds()
}

// Summary aggregates one run. Total always equals Up + Down.
type Summary struct {
	Total int `json:"total"`
	Up    int `json:"up"`
	Down  int `json:"down"`
}

func Summarize(outcomes []Outcome) Summary {
	summary := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Up() {
			summary.Up++
		} else {
			summary.Down++
		}
	}
	return summary
}
