package models

import "strings"

// TabInfo describes a browser tab as reported by the host
type TabInfo struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ScanState is the visible per-tab scan status
type ScanState string

const (
	StateScanning ScanState = "scanning"
	StateError    ScanState = "error"
	StateResult   ScanState = "result"
)

// Status is what the host shows for a tab (badge, title)
type Status struct {
	State ScanState `json:"state"`
	Score int       `json:"score,omitempty"`
}

// ScoreBand groups credibility scores for display
type ScoreBand string

const (
	BandLow    ScoreBand = "low"
	BandMedium ScoreBand = "medium"
	BandHigh   ScoreBand = "high"
)

// BandFor returns the display band of a credibility score.
func BandFor(score int) ScoreBand {
	switch {
	case score < 60:
		return BandLow
	case score < 80:
		return BandMedium
	default:
		return BandHigh
	}
}

var unscannablePrefixes = []string{"chrome://", "chrome-extension://", "about:", "file://"}

// ShouldScanURL reports whether a page at url can be scanned. Browser
// internal pages and local files are excluded.
func ShouldScanURL(url string) bool {
	if url == "" {
		return false
	}
	for _, prefix := range unscannablePrefixes {
		if strings.HasPrefix(url, prefix) {
			return false
		}
	}
	return true
}
