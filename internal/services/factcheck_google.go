package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type googleFactCheck struct {
	client  *resty.Client
	config  *GoogleConfig
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// claimsSearchResponse is the claims:search payload. Claim fields share the
// JSON names of models.Claim.
type claimsSearchResponse struct {
	Claims        []models.Claim `json:"claims"`
	NextPageToken string         `json:"nextPageToken"`
}

// NewGoogleFactCheck creates the Google Fact Check Tools adapter
func NewGoogleFactCheck(config *GoogleConfig, logger arbor.ILogger) FactChecker {
	client := resty.New().
		SetTimeout(time.Duration(config.TimeoutSeconds) * time.Second).
		SetHeader("Accept", "application/json")

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &googleFactCheck{
		client:  client,
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

func (g *googleFactCheck) Name() string {
	return sourceGoogle
}

// CheckClaims queries every paragraph-sized chunk of text in parallel. A
// failed chunk is logged and skipped; an error is returned only when every
// chunk failed.
func (g *googleFactCheck) CheckClaims(ctx context.Context, text, apiKey string) ([]models.Claim, error) {
	if apiKey == "" {
		return nil, NewCredentialError("google_key_missing", "Google Fact Check API key not configured")
	}

	chunks := SplitChunks(text, g.config.MinChunkLength)
	if len(chunks) == 0 {
		return []models.Claim{}, nil
	}

	results := make([][]models.Claim, len(chunks))
	errs := make([]error, len(chunks))

	var group errgroup.Group
	for i, chunk := range chunks {
		group.Go(func() error {
			claims, err := g.search(ctx, chunk, apiKey)
			if err != nil {
				errs[i] = err
				g.logger.Warn().Err(err).Int("chunk", i).Msg("Fact check query failed for chunk")
				return nil
			}
			results[i] = claims
			return nil
		})
	}
	_ = group.Wait()

	failed := 0
	var lastErr error
	for _, err := range errs {
		if err != nil {
			failed++
			lastErr = err
		}
	}
	if failed == len(chunks) {
		return nil, WrapError(lastErr, ErrorTypeAdapter, "google_all_chunks_failed",
			fmt.Sprintf("all %d fact check queries failed", len(chunks)))
	}

	claims := DedupeClaims(results)
	g.logger.Debug().
		Int("chunks", len(chunks)).
		Int("failed", failed).
		Int("claims", len(claims)).
		Msg("Google fact check completed")

	return claims, nil
}

func (g *googleFactCheck) search(ctx context.Context, query, apiKey string) ([]models.Claim, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out claimsSearchResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":          apiKey,
			"query":        query,
			"languageCode": g.config.LanguageCode,
		}).
		SetResult(&out).
		Get(g.config.Endpoint)
	if err != nil {
		return nil, WrapError(err, ErrorTypeNetwork, "google_request_failed", "fact check request failed")
	}
	if !resp.IsSuccess() {
		return nil, NewAdapterError("google_status", fmt.Sprintf("Fact check API error: %d", resp.StatusCode()))
	}

	return out.Claims, nil
}

// SplitChunks splits text on line breaks and keeps the chunks whose trimmed
// length exceeds minLength.
func SplitChunks(text string, minLength int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		if utf8.RuneCountInString(strings.TrimSpace(line)) > minLength {
			chunks = append(chunks, line)
		}
	}
	return chunks
}

// DedupeClaims flattens per-chunk results, keeps the first claim for each
// claim text and tags every claim with the Google source.
func DedupeClaims(results [][]models.Claim) []models.Claim {
	seen := make(map[string]bool)
	claims := []models.Claim{}
	for _, chunk := range results {
		for _, c := range chunk {
			if seen[c.Text] {
				continue
			}
			seen[c.Text] = true
			c.Source = sourceGoogle
			claims = append(claims, c)
		}
	}
	return claims
}
