package models

// ClaimStrength classifies a ClaimBuster check-worthiness score
type ClaimStrength string

const (
	ClaimStrong   ClaimStrength = "STRONG_CLAIM"
	ClaimModerate ClaimStrength = "MODERATE_CLAIM"
	ClaimWeak     ClaimStrength = "WEAK_CLAIM"
)

// Claim is a single fact-checkable statement in the shape shared by every
// fact-check source.
type Claim struct {
	Text        string        `json:"text"`
	Claimant    string        `json:"claimant"`
	ClaimDate   string        `json:"claimDate,omitempty"`
	Source      string        `json:"source"`
	ClaimReview []ClaimReview `json:"claimReview"`

	// ClaimBuster only
	Score      float64       `json:"score,omitempty"`
	Confidence int           `json:"confidence,omitempty"`
	Type       ClaimStrength `json:"type,omitempty"`
}

// ClaimReview is a publisher's verdict on a claim
type ClaimReview struct {
	Publisher     *Publisher `json:"publisher,omitempty"`
	URL           string     `json:"url,omitempty"`
	Title         string     `json:"title,omitempty"`
	ReviewDate    string     `json:"reviewDate,omitempty"`
	TextualRating string     `json:"textualRating,omitempty"`
	LanguageCode  string     `json:"languageCode,omitempty"`
}

// Publisher identifies the organisation behind a review
type Publisher struct {
	Name string `json:"name"`
	Site string `json:"site,omitempty"`
}

// FirstReview returns the claim's first review, or nil when it has none.
func (c *Claim) FirstReview() *ClaimReview {
	if len(c.ClaimReview) == 0 {
		return nil
	}
	return &c.ClaimReview[0]
}
