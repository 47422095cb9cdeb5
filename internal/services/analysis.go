package services

import (
	"context"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/models"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
)

type analysisPipeline struct {
	google      FactChecker
	claimBuster FactChecker
	ai          AIAnalyzer
	logger      arbor.ILogger
}

// NewAnalysisPipeline wires the fact-check adapters and the AI adapter into
// one analysis step.
func NewAnalysisPipeline(google, claimBuster FactChecker, ai AIAnalyzer, logger arbor.ILogger) AnalysisPipeline {
	return &analysisPipeline{
		google:      google,
		claimBuster: claimBuster,
		ai:          ai,
		logger:      logger,
	}
}

// Analyze runs both fact checkers and the AI adapter concurrently and merges
// their outputs. The Google and Gemini credentials are required up front.
// Fact-checker failures degrade to no claims; an AI failure fails the analysis.
func (p *analysisPipeline) Analyze(ctx context.Context, content *models.PageContent, settings models.Settings) (*models.AnalysisResult, error) {
	if err := RequireCredentials(settings); err != nil {
		return nil, err
	}
	if content == nil || content.Text == "" {
		return nil, NewValidationError("empty_content", "No content to analyze")
	}

	var (
		googleClaims      []models.Claim
		claimBusterClaims []models.Claim
		assessment        *models.AIAssessment
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		googleClaims = p.checkOptional(gctx, p.google, content.Text, settings.GoogleAPIKey)
		return nil
	})
	group.Go(func() error {
		claimBusterClaims = p.checkOptional(gctx, p.claimBuster, content.Text, settings.ClaimBusterAPIKey)
		return nil
	})
	group.Go(func() error {
		var err error
		assessment, err = p.ai.Analyze(gctx, content.Text, settings.GeminiAPIKey)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := MergeResults(googleClaims, claimBusterClaims, *assessment)
	p.logger.Info().
		Str("url", content.URL).
		Int("score", result.CredibilityScore).
		Int("claims", len(result.Claims)).
		Msg("Analysis merged")

	return result, nil
}

func (p *analysisPipeline) checkOptional(ctx context.Context, checker FactChecker, text, apiKey string) []models.Claim {
	claims, err := checker.CheckClaims(ctx, text, apiKey)
	if err != nil {
		p.logger.Warn().Err(err).Str("source", checker.Name()).Msg("Fact check failed, continuing without its claims")
		return []models.Claim{}
	}
	return claims
}

// RequireCredentials returns a credential error naming the first missing
// required API key.
func RequireCredentials(settings models.Settings) error {
	if settings.GoogleAPIKey == "" {
		return NewCredentialError("google_key_missing", "Google Fact Check API key not configured").
			WithDetails("Google Fact Check API key is missing. Please add it in the extension settings.")
	}
	if settings.GeminiAPIKey == "" {
		return NewCredentialError("gemini_key_missing", "Gemini API key not configured").
			WithDetails("Gemini API key is missing. Please add it in the extension settings.")
	}
	return nil
}
