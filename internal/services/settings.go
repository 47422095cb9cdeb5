package services

import (
	. "factlens/internal/common"

	"factlens/internal/models"
)

// Environment variables that override every other settings source.
const (
	envGoogleAPIKey      = "GOOGLE_FACT_CHECK_API_KEY"
	envGeminiAPIKey      = "GEMINI_API_KEY"
	envClaimBusterAPIKey = "CLAIMBUSTER_API_KEY"
)

// ResolveSettings builds the startup settings. Persisted settings replace
// the config seed; credentials set in the environment win over both.
func ResolveSettings(seed SettingsConfig, persisted *models.Settings, getenv func(string) string) models.Settings {
	settings := models.Settings{
		GoogleAPIKey:      seed.GoogleAPIKey,
		GeminiAPIKey:      seed.GeminiAPIKey,
		ClaimBusterAPIKey: seed.ClaimBusterAPIKey,
		AutoScanEnabled:   seed.AutoScanEnabled,
	}
	if persisted != nil {
		settings = settings.Merge(*persisted)
	}

	if getenv == nil {
		return settings
	}
	if key := getenv(envGoogleAPIKey); key != "" {
		settings.GoogleAPIKey = key
	}
	if key := getenv(envGeminiAPIKey); key != "" {
		settings.GeminiAPIKey = key
	}
	if key := getenv(envClaimBusterAPIKey); key != "" {
		settings.ClaimBusterAPIKey = key
	}
	return settings
}
