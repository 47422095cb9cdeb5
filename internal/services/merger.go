package services

import (
	"math"
	"strings"

	"factlens/internal/models"

	"golang.org/x/text/cases"
)

const (
	factCheckWeight = 0.6
	aiWeight        = 0.4

	// neutralClaimScore is used for unrated claims and for pages without
	// any claim at all.
	neutralClaimScore = 50

	sourceGoogle      = "Google Fact Check"
	sourceClaimBuster = "ClaimBuster"
)

// MergeResults combines both fact-check claim lists and the AI assessment
// into the final analysis result.
func MergeResults(googleClaims, claimBusterClaims []models.Claim, ai models.AIAssessment) *models.AnalysisResult {
	claims := NormalizeClaims(googleClaims, claimBusterClaims)
	avg := FactCheckAverage(claims)

	return &models.AnalysisResult{
		CredibilityScore: CredibilityScore(avg, ai.CredibilityScore),
		Claims:           claims,
		SourceRating: models.SourceRating{
			Score:        ai.CredibilityScore,
			TotalReviews: ai.TotalReviews,
		},
		Summary: ai.Summary,
	}
}

// NormalizeClaims returns the Google claims followed by the ClaimBuster
// claims in the common shape.
func NormalizeClaims(googleClaims, claimBusterClaims []models.Claim) []models.Claim {
	claims := make([]models.Claim, 0, len(googleClaims)+len(claimBusterClaims))
	for _, c := range googleClaims {
		claims = append(claims, normalizeClaim(c, c.Source))
	}
	for _, c := range claimBusterClaims {
		claims = append(claims, normalizeClaim(c, sourceClaimBuster))
	}
	return claims
}

func normalizeClaim(c models.Claim, source string) models.Claim {
	if c.Text == "" {
		c.Text = "No claim text available"
	}
	if c.Claimant == "" {
		c.Claimant = "Unknown"
	}
	if c.ClaimReview == nil {
		c.ClaimReview = []models.ClaimReview{}
	}
	c.Source = source
	return c
}

// ClaimScore rates a claim from the textual rating of its first review.
func ClaimScore(c models.Claim) int {
	review := c.FirstReview()
	if review == nil {
		return neutralClaimScore
	}

	rating := cases.Fold().String(review.TextualRating)
	switch {
	case strings.Contains(rating, "mostly"), strings.Contains(rating, "partly"):
		return 50
	case strings.Contains(rating, "false"), strings.Contains(rating, "inaccurate"):
		return 0
	case strings.Contains(rating, "true"), strings.Contains(rating, "accurate"):
		return 100
	default:
		return neutralClaimScore
	}
}

// FactCheckAverage is the mean claim score, or the neutral score when there
// are no claims.
func FactCheckAverage(claims []models.Claim) float64 {
	if len(claims) == 0 {
		return neutralClaimScore
	}
	total := 0
	for _, c := range claims {
		total += ClaimScore(c)
	}
	return float64(total) / float64(len(claims))
}

// CredibilityScore blends the fact-check average (0-100) with the AI score
// (0-10) and clamps the result to [0,100].
func CredibilityScore(factCheckAvg, aiScore float64) int {
	blended := factCheckAvg*factCheckWeight + aiScore*10*aiWeight
	score := int(math.Floor(blended + 0.5))
	return max(0, min(100, score))
}
