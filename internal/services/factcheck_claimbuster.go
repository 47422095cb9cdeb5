package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
)

type claimBuster struct {
	client *resty.Client
	config *ClaimBusterConfig
	logger arbor.ILogger
}

type claimBusterRequest struct {
	Text string `json:"text"`
}

type claimBusterResponse struct {
	Results []claimBusterScore `json:"results"`
}

type claimBusterScore struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// NewClaimBuster creates the ClaimBuster check-worthiness adapter
func NewClaimBuster(config *ClaimBusterConfig, logger arbor.ILogger) FactChecker {
	client := resty.New().
		SetTimeout(time.Duration(config.TimeoutSeconds) * time.Second).
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")

	return &claimBuster{
		client: client,
		config: config,
		logger: logger,
	}
}

func (c *claimBuster) Name() string {
	return sourceClaimBuster
}

// CheckClaims scores the whole text once and keeps the sentences at or above
// the significance threshold.
func (c *claimBuster) CheckClaims(ctx context.Context, text, apiKey string) ([]models.Claim, error) {
	if apiKey == "" {
		return nil, NewCredentialError("claimbuster_key_missing", "ClaimBuster API key not configured")
	}

	var out claimBusterResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", apiKey).
		SetBody(claimBusterRequest{Text: text}).
		SetResult(&out).
		Post("/score/text/")
	if err != nil {
		return nil, WrapError(err, ErrorTypeNetwork, "claimbuster_request_failed", "ClaimBuster request failed")
	}
	if !resp.IsSuccess() {
		return nil, NewAdapterError("claimbuster_status", fmt.Sprintf("ClaimBuster API error: %d", resp.StatusCode()))
	}

	claims := scoreClaims(out.Results, c.config.Threshold)
	c.logger.Debug().
		Int("sentences", len(out.Results)).
		Int("claims", len(claims)).
		Msg("ClaimBuster scoring completed")

	return claims, nil
}

// scoreClaims converts scored sentences into claims, dropping those below
// threshold.
func scoreClaims(results []claimBusterScore, threshold float64) []models.Claim {
	claims := []models.Claim{}
	for _, r := range results {
		if r.Score < threshold {
			continue
		}
		claims = append(claims, models.Claim{
			Text:       r.Text,
			Source:     sourceClaimBuster,
			Score:      r.Score,
			Confidence: int(math.Floor(r.Score*100 + 0.5)),
			Type:       ClaimStrengthFor(r.Score),
		})
	}
	return claims
}

// ClaimStrengthFor maps a check-worthiness score to its tier.
func ClaimStrengthFor(score float64) models.ClaimStrength {
	switch {
	case score >= 0.8:
		return models.ClaimStrong
	case score >= 0.6:
		return models.ClaimModerate
	default:
		return models.ClaimWeak
	}
}
