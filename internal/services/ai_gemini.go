package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

const assessmentSchemaDoc = `{
  "type": "object",
  "required": ["credibility_score", "summary"],
  "properties": {
    "credibility_score": {"type": "number"},
    "total_reviews": {"type": "integer", "minimum": 0},
    "summary": {"type": "string"}
  }
}`

const promptTemplate = `You are a credibility analysis expert. Analyze the following text for credibility and provide a response in ONLY valid JSON format (no markdown, no code blocks). Consider:
1. Factual accuracy
2. Source reliability
3. Bias detection
4. Overall credibility

The response must be a single JSON object with exactly these fields:
- credibility_score (number between 0-10)
- total_reviews (number of sources/references found)
- summary (brief analysis text)

Text to analyze:
%s`

var (
	assessmentSchema     *jsonschema.Schema
	assessmentSchemaOnce sync.Once
	assessmentSchemaErr  error
)

func getAssessmentSchema() (*jsonschema.Schema, error) {
	assessmentSchemaOnce.Do(func() {
		assessmentSchema, assessmentSchemaErr = CompileSchema("assessment.schema.json", assessmentSchemaDoc)
	})
	return assessmentSchema, assessmentSchemaErr
}

// textGenerator sends one prompt to a generative model and returns the raw
// reply text.
type textGenerator interface {
	Generate(ctx context.Context, apiKey, prompt string) (string, error)
}

type geminiAnalyzer struct {
	generator textGenerator
	config    *GeminiConfig
	logger    arbor.ILogger
}

// NewGeminiAnalyzer creates the AI adapter backed by the Gemini API
func NewGeminiAnalyzer(config *GeminiConfig, logger arbor.ILogger) AIAnalyzer {
	return &geminiAnalyzer{
		generator: &genaiGenerator{config: config, httpClient: http.DefaultClient},
		config:    config,
		logger:    logger,
	}
}

// Analyze asks the model for a credibility assessment of text. Any failure,
// including an unparseable reply, is returned as an AI error.
func (g *geminiAnalyzer) Analyze(ctx context.Context, text, apiKey string) (*models.AIAssessment, error) {
	if apiKey == "" {
		return nil, NewCredentialError("gemini_key_missing", "Gemini API key not configured")
	}

	prompt := BuildPrompt(text, g.config.PromptCharLimit)
	reply, err := g.generator.Generate(ctx, apiKey, prompt)
	if err != nil {
		return nil, WrapError(err, ErrorTypeAI, "gemini_request_failed", "Gemini API request failed")
	}

	assessment, err := ParseAssessment(reply)
	if err != nil {
		g.logger.Warn().Err(err).Str("reply", truncateRunes(reply, 200)).Msg("Failed to parse Gemini response")
		return nil, err
	}

	g.logger.Debug().
		Str("model", g.config.Model).
		Int("total_reviews", assessment.TotalReviews).
		Msg("Gemini analysis completed")

	return assessment, nil
}

// BuildPrompt embeds at most limit characters of text in the analysis prompt.
func BuildPrompt(text string, limit int) string {
	if limit > 0 {
		text = truncateRunes(text, limit)
	}
	return fmt.Sprintf(promptTemplate, text)
}

// StripCodeFences removes markdown code fences the model may wrap its JSON
// reply in.
func StripCodeFences(reply string) string {
	reply = strings.ReplaceAll(reply, "```json\n", "")
	reply = strings.ReplaceAll(reply, "```json", "")
	reply = strings.ReplaceAll(reply, "```\n", "")
	reply = strings.ReplaceAll(reply, "```", "")
	return strings.TrimSpace(reply)
}

// ParseAssessment validates and decodes a model reply.
func ParseAssessment(reply string) (*models.AIAssessment, error) {
	body := []byte(StripCodeFences(reply))

	schema, err := getAssessmentSchema()
	if err != nil {
		return nil, WrapError(err, ErrorTypeInternal, "assessment_schema", "assessment schema unavailable")
	}
	if err := ValidateJSON(schema, body); err != nil {
		return nil, WrapError(err, ErrorTypeAI, "gemini_invalid_response", "Invalid response format from Gemini API")
	}

	var assessment models.AIAssessment
	if err := json.Unmarshal(body, &assessment); err != nil {
		return nil, WrapError(err, ErrorTypeAI, "gemini_invalid_response", "Invalid response format from Gemini API")
	}
	return &assessment, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// genaiGenerator calls generateContent through the genai SDK. The client is
// rebuilt when the API key changes.
type genaiGenerator struct {
	config     *GeminiConfig
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
	key    string
}

func (g *genaiGenerator) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.key == apiKey {
		return g.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	g.key = apiKey
	return client, nil
}

func (g *genaiGenerator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	client, err := g.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.config.Temperature),
		TopK:            genai.Ptr(g.config.TopK),
		TopP:            genai.Ptr(g.config.TopP),
		MaxOutputTokens: g.config.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}
