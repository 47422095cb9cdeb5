package models

// AnalysisRequest asks for one scan of a tab
type AnalysisRequest struct {
	TabID int `json:"tabId"`
}

// PageContent is what the extraction agent returns for a page
type PageContent struct {
	URL      string                 `json:"url"`
	Title    string                 `json:"title"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AIAssessment is the parsed reply of the generative model
type AIAssessment struct {
	CredibilityScore float64 `json:"credibility_score"`
	TotalReviews     int     `json:"total_reviews"`
	Summary          string  `json:"summary"`
}

// SourceRating carries the AI's own rating next to the merged score
type SourceRating struct {
	Score        float64 `json:"score"`
	TotalReviews int     `json:"totalReviews"`
}

// AnalysisResult is the terminal artifact of one analysis. It is not
// modified after the merger produces it.
type AnalysisResult struct {
	CredibilityScore int          `json:"credibilityScore"`
	Claims           []Claim      `json:"claims"`
	SourceRating     SourceRating `json:"sourceRating"`
	Summary          string       `json:"summary"`
}
