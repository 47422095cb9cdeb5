package models

// EventKind distinguishes published analysis events
type EventKind string

const (
	EventAnalysisCompleted EventKind = "analysis.completed"
	EventAnalysisFailed    EventKind = "analysis.failed"
)

// AnalysisEvent is the record published to the events feed for every
// finished analysis.
type AnalysisEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	TabID     int       `json:"tabId"`
	URL       string    `json:"url,omitempty"`
	Score     int       `json:"score,omitempty"`
	Band      ScoreBand `json:"band,omitempty"`
	Claims    int       `json:"claims,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp string    `json:"timestamp"`
}
