package models

// Settings are the user-level options shared with the extension
type Settings struct {
	GoogleAPIKey      string `json:"googleApiKey"`
	GeminiAPIKey      string `json:"geminiApiKey"`
	ClaimBusterAPIKey string `json:"claimBusterApiKey"`
	AutoScanEnabled   bool   `json:"autoScanEnabled"`
}

// APIStatus reports which credentials are present without exposing them
type APIStatus struct {
	GoogleAPIKey      bool `json:"googleApiKey"`
	GeminiAPIKey      bool `json:"geminiApiKey"`
	ClaimBusterAPIKey bool `json:"claimBusterApiKey"`
}

func (s Settings) APIStatus() APIStatus {
	return APIStatus{
		GoogleAPIKey:      s.GoogleAPIKey != "",
		GeminiAPIKey:      s.GeminiAPIKey != "",
		ClaimBusterAPIKey: s.ClaimBusterAPIKey != "",
	}
}

// Merge overlays the non-empty fields of other onto s. AutoScanEnabled is
// always taken from other.
func (s Settings) Merge(other Settings) Settings {
	if other.GoogleAPIKey != "" {
		s.GoogleAPIKey = other.GoogleAPIKey
	}
	if other.GeminiAPIKey != "" {
		s.GeminiAPIKey = other.GeminiAPIKey
	}
	if other.ClaimBusterAPIKey != "" {
		s.ClaimBusterAPIKey = other.ClaimBusterAPIKey
	}
	s.AutoScanEnabled = other.AutoScanEnabled
	return s
}
