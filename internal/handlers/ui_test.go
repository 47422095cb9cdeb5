package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"factlens/internal/details"
	"factlens/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI(t *testing.T, store *memStore) *UIHandlers {
	t.Helper()
	ui, err := NewUIHandlers(testConfig(), store, testLogger())
	require.NoError(t, err)
	return ui
}

func TestIndexHandler(t *testing.T) {
	store := &memStore{}
	ui := newTestUI(t, store)

	w := httptest.NewRecorder()
	ui.IndexHandler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No pages scanned yet.")
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	require.NoError(t, store.AppendHistory(sampleEntry()))
	untitled := sampleEntry()
	untitled.Title = ""
	untitled.Results.CredibilityScore = 91
	require.NoError(t, store.AppendHistory(untitled))

	w = httptest.NewRecorder()
	ui.IndexHandler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	body := w.Body.String()
	assert.Contains(t, body, "Budget story")
	assert.Contains(t, body, "Untitled Page")
	assert.Contains(t, body, `class="score-low"`)
	assert.Contains(t, body, `class="score-high"`)
	assert.Contains(t, body, "/details?data=")
	assert.Less(t, strings.Index(body, "Untitled Page"), strings.Index(body, "Budget story"), "newest first")

	w = httptest.NewRecorder()
	ui.IndexHandler(w, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	store.broken = true
	w = httptest.NewRecorder()
	ui.IndexHandler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDetailsHandler(t *testing.T) {
	ui := newTestUI(t, &memStore{})

	encoded, err := details.Encode(sampleEntry())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	ui.DetailsHandler(w, httptest.NewRequest(http.MethodGet, "/details?data="+url.QueryEscape(encoded), nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Budget story")
	assert.Contains(t, body, "32%")
	assert.Contains(t, body, "score-container score-low")
	assert.Contains(t, body, "Google Fact Check")
	assert.Contains(t, body, "ClaimBuster")
	assert.Contains(t, body, "The budget doubled")
	assert.Contains(t, body, `<div class="claim-rating">False</div>`)
	assert.Contains(t, body, "https://factcheck.example.org/budget")
	assert.Contains(t, body, "Mostly unsupported claims.")
	assert.NotContains(t, body, "error-message")
}

func TestDetailsHandlerRejectsBadPayload(t *testing.T) {
	ui := newTestUI(t, &memStore{})

	tests := []struct {
		name   string
		query  string
		detail string
	}{
		{"missing", "", "No history data found in URL parameters"},
		{"not base64", "?data=%25%25%25", "Failed to decode data"},
		{"not json", "?data=" + "bm90IGpzb24", "Failed to parse history data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ui.DetailsHandler(w, httptest.NewRequest(http.MethodGet, "/details"+tt.query, nil))
			require.Equal(t, http.StatusBadRequest, w.Code)
			body := w.Body.String()
			assert.Contains(t, body, "Error processing history data")
			assert.Contains(t, body, tt.detail)
		})
	}
}

func TestGroupBySource(t *testing.T) {
	claims := []models.Claim{
		{Text: "a", Source: "ClaimBuster"},
		{Text: "b", Source: "Google Fact Check"},
		{Text: "c"},
		{Text: "d", Source: "ClaimBuster"},
	}

	groups := groupBySource(claims)
	require.Len(t, groups, 3)
	assert.Equal(t, "ClaimBuster", groups[0].Source)
	assert.Equal(t, []models.Claim{claims[0], claims[3]}, groups[0].Claims)
	assert.Equal(t, "Google Fact Check", groups[1].Source)
	assert.Equal(t, "Unknown Source", groups[2].Source)
	assert.Nil(t, groupBySource(nil))
}
