package models

// TimestampLayout matches the ISO-8601 form browsers produce for
// Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// HistoryEntry is one completed scan in the history list
type HistoryEntry struct {
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	Timestamp string         `json:"timestamp"`
	Results   AnalysisResult `json:"results"`
}

// CacheEntry is a per-URL cached result. Timestamp is epoch milliseconds.
type CacheEntry struct {
	Timestamp int64          `json:"timestamp"`
	Results   AnalysisResult `json:"results"`
}

// ErrorRecord is one entry of the diagnostic error log
type ErrorRecord struct {
	Timestamp string                 `json:"timestamp"`
	Source    string                 `json:"source"`
	Error     string                 `json:"error"`
	Type      string                 `json:"type,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}
