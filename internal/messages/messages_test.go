package messages

import (
	"encoding/json"
	"testing"

	"factlens/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeUsesEnvelope(t *testing.T) {
	data, err := Encode(AnalysisProgress{TabID: 7, Stage: "extracting"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"analysisProgress","data":{"tabId":7,"stage":"extracting"}}`, string(data))

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestDecodeReturnsValueTypes(t *testing.T) {
	tests := []struct {
		raw  string
		want Message
	}{
		{`{"type":"analyzeRequest","data":{"tabId":3}}`, AnalyzeRequest{TabID: 3}},
		{`{"type":"getHistory"}`, GetHistory{}},
		{`{"type":"ping","data":null}`, Ping{}},
		{`{"type":"contentScriptReady","data":{"tabId":9,"url":"https://example.com"}}`, ContentReady{TabID: 9, URL: "https://example.com"}},
		{`{"type":"tabUpdated","data":{"tabId":2,"url":"https://news.example.com/a"}}`, TabUpdated{TabID: 2, URL: "https://news.example.com/a"}},
		{`{"type":"settingsChanged","data":{"settings":{"autoScanEnabled":true}}}`, SettingsChanged{Settings: models.Settings{AutoScanEnabled: true}}},
	}

	for _, tt := range tests {
		got, err := Decode([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecodeRoundTripsAnalysisComplete(t *testing.T) {
	msg := AnalysisComplete{
		TabID: 4,
		URL:   "https://example.com/story",
		Results: models.AnalysisResult{
			CredibilityScore: 72,
			Claims:           []models.Claim{{Text: "The moon is cheese", Claimant: "Unknown", Source: "Google Fact Check", ClaimReview: []models.ClaimReview{}}},
			SourceRating:     models.SourceRating{Score: 70, TotalReviews: 2},
			Summary:          "Mostly reliable.",
		},
	}

	data, err := Encode(msg)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecodeRejects(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"data":{}}`,
		`{"type":"launchMissiles"}`,
		`{"type":"analyzeRequest","data":{"tabId":"three"}}`,
	} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestIsPong(t *testing.T) {
	assert.True(t, IsPong(PongReply()))
	assert.True(t, IsPong([]byte(`"pong"`)))

	assert.False(t, IsPong([]byte(`"PONG"`)))
	assert.False(t, IsPong([]byte(`{"type":"pong"}`)))
	assert.False(t, IsPong([]byte(`true`)))
	assert.False(t, IsPong(nil))
}

func TestDecodeExtractResponse(t *testing.T) {
	resp, err := DecodeExtractResponse([]byte(`{"success":true,"content":{"url":"u","title":"t","text":"body"}}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Content)
	assert.Equal(t, "body", resp.Content.Text)

	resp, err = DecodeExtractResponse([]byte(`{"success":false,"error":"Content script not initialized"}`))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Content script not initialized", resp.Error)

	_, err = DecodeExtractResponse([]byte(` null `))
	assert.Error(t, err)
	_, err = DecodeExtractResponse(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}
