// Package details encodes history entries for the details view link and
// decodes them defensively on the way back.
package details

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"factlens/internal/common"
	"factlens/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Field caps, in characters.
const (
	maxTitle         = 256
	maxClaimText     = 1024
	maxClaimant      = 256
	maxSource        = 256
	maxPublisher     = 256
	maxReviewTitle   = 512
	maxTextualRating = 50
	maxLanguageCode  = 10
	maxSummary       = 2048

	// MaxEncodedLength bounds the accepted data parameter.
	MaxEncodedLength = 256 * 1024
)

// QueryParam is the details link parameter carrying the encoded entry.
const QueryParam = "data"

const entrySchemaDoc = `{
  "type": "object",
  "required": ["results"],
  "properties": {
    "url": {"type": "string"},
    "title": {"type": "string"},
    "timestamp": {"type": "string"},
    "results": {
      "type": "object",
      "properties": {
        "credibilityScore": {"type": "number"},
        "claims": {"type": ["array", "null"], "items": {"type": "object"}},
        "summary": {"type": "string"}
      }
    }
  }
}`

var (
	entrySchema     *jsonschema.Schema
	entrySchemaOnce sync.Once
	entrySchemaErr  error
)

func getEntrySchema() (*jsonschema.Schema, error) {
	entrySchemaOnce.Do(func() {
		entrySchema, entrySchemaErr = common.CompileSchema("history-entry.schema.json", entrySchemaDoc)
	})
	return entrySchema, entrySchemaErr
}

// Sanitize returns entry with every free-text field stripped of C1 control
// characters and capped to its maximum length. Sanitize is idempotent.
func Sanitize(entry models.HistoryEntry) models.HistoryEntry {
	out := models.HistoryEntry{
		URL:       clean(entry.URL, 0),
		Title:     clean(entry.Title, maxTitle),
		Timestamp: clean(entry.Timestamp, 0),
		Results: models.AnalysisResult{
			CredibilityScore: entry.Results.CredibilityScore,
			SourceRating:     entry.Results.SourceRating,
			Summary:          clean(entry.Results.Summary, maxSummary),
			Claims:           make([]models.Claim, 0, len(entry.Results.Claims)),
		},
	}

	for _, c := range entry.Results.Claims {
		claim := models.Claim{
			Text:        clean(c.Text, maxClaimText),
			Claimant:    orDefault(clean(c.Claimant, maxClaimant), "Unknown"),
			ClaimDate:   clean(c.ClaimDate, 0),
			Source:      clean(c.Source, maxSource),
			ClaimReview: make([]models.ClaimReview, 0, len(c.ClaimReview)),
		}
		for _, r := range c.ClaimReview {
			review := models.ClaimReview{
				URL:           clean(r.URL, 0),
				Title:         clean(r.Title, maxReviewTitle),
				ReviewDate:    clean(r.ReviewDate, 0),
				TextualRating: orDefault(clean(r.TextualRating, maxTextualRating), "Unknown"),
				LanguageCode:  orDefault(clean(r.LanguageCode, maxLanguageCode), "en"),
			}
			if r.Publisher != nil {
				review.Publisher = &models.Publisher{
					Name: clean(r.Publisher.Name, maxPublisher),
					Site: clean(r.Publisher.Site, maxPublisher),
				}
			}
			claim.ClaimReview = append(claim.ClaimReview, review)
		}
		out.Results.Claims = append(out.Results.Claims, claim)
	}

	return out
}

// Encode serialises the sanitized entry as unpadded URL-safe base64.
func Encode(entry models.HistoryEntry) (string, error) {
	data, err := json.Marshal(Sanitize(entry))
	if err != nil {
		return "", common.WrapError(err, common.ErrorTypeInternal, "details_encode", "failed to encode history entry")
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Link returns base with the encoded entry in its data parameter.
func Link(base string, entry models.HistoryEntry) (string, error) {
	encoded, err := Encode(entry)
	if err != nil {
		return "", err
	}
	return base + "?" + QueryParam + "=" + url.QueryEscape(encoded), nil
}

// Decode parses an encoded entry. The result is always sanitized.
func Decode(encoded string) (*models.HistoryEntry, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, common.NewValidationError("details_missing", "No history data found in URL parameters")
	}
	if len(encoded) > MaxEncodedLength {
		return nil, common.NewValidationError("details_too_large", "History data exceeds the maximum size")
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeValidation, "details_decode", "Failed to decode data: "+err.Error())
	}

	if !json.Valid(data) {
		return nil, common.NewValidationError("details_parse", "Failed to parse history data: invalid JSON")
	}

	schema, err := getEntrySchema()
	if err != nil {
		return nil, common.WrapError(err, common.ErrorTypeInternal, "details_schema", "history schema unavailable")
	}
	if err := common.ValidateJSON(schema, data); err != nil {
		return nil, common.WrapError(err, common.ErrorTypeValidation, "details_invalid", "Invalid history data format: "+err.Error())
	}

	var entry models.HistoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, common.WrapError(err, common.ErrorTypeValidation, "details_invalid", "Invalid history data format: "+err.Error())
	}

	sanitized := Sanitize(entry)
	return &sanitized, nil
}

// clean drops invalid UTF-8 and C1 control characters, then keeps at most
// limit runes. A limit of 0 means no cap.
func clean(s string, limit int) string {
	if s == "" {
		return s
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if r >= 0x7f && r <= 0x9f {
			return -1
		}
		return r
	}, s)
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit])
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
