package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Scan        ScanConfig        `toml:"scan"`
	Google      GoogleConfig      `toml:"google"`
	ClaimBuster ClaimBusterConfig `toml:"claimbuster"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Kafka       KafkaConfig       `toml:"kafka"`
	Settings    SettingsConfig    `toml:"settings"`
}

type ServerConfig struct {
	Name                string  `toml:"name"`
	Environment         string  `toml:"environment"`
	Port                int     `toml:"port"`
	MinExtensionVersion string  `toml:"min_extension_version"`
	RateLimitRPS        float64 `toml:"rate_limit_rps"`
	RateLimitBurst      int     `toml:"rate_limit_burst"`
}

type StorageConfig struct {
	DatabasePath  string `toml:"database_path"`
	HistoryLimit  int    `toml:"history_limit"`
	CacheTTLHours int    `toml:"cache_ttl_hours"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	// Dir holds the log files. Empty means logs/ next to the binary.
	Dir string `toml:"dir"`
}

// ScanConfig holds the handshake and extraction timings. All values are
// milliseconds.
type ScanConfig struct {
	ProbeTimeoutMs      int `toml:"probe_timeout_ms"`
	PollIntervalMs      int `toml:"poll_interval_ms"`
	InitialDelayMs      int `toml:"initial_delay_ms"`
	MaxAttempts         int `toml:"max_attempts"`
	ExtractionTimeoutMs int `toml:"extraction_timeout_ms"`
	AnalysisTimeoutMs   int `toml:"analysis_timeout_ms"`
}

type GoogleConfig struct {
	Endpoint          string  `toml:"endpoint"`
	LanguageCode      string  `toml:"language_code"`
	MinChunkLength    int     `toml:"min_chunk_length"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

type ClaimBusterConfig struct {
	BaseURL        string  `toml:"base_url"`
	Threshold      float64 `toml:"threshold"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type GeminiConfig struct {
	Model           string  `toml:"model"`
	BaseURL         string  `toml:"base_url"`
	PromptCharLimit int     `toml:"prompt_char_limit"`
	Temperature     float32 `toml:"temperature"`
	TopK            float32 `toml:"top_k"`
	TopP            float32 `toml:"top_p"`
	MaxOutputTokens int32   `toml:"max_output_tokens"`
}

type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// SettingsConfig seeds the user settings on first start. Values persisted by
// the extension take precedence, environment variables win over both.
type SettingsConfig struct {
	GoogleAPIKey      string `toml:"google_api_key"`
	GeminiAPIKey      string `toml:"gemini_api_key"`
	ClaimBusterAPIKey string `toml:"claimbuster_api_key"`
	AutoScanEnabled   bool   `toml:"auto_scan_enabled"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	defaultDBPath := filepath.Join(execDir, "data", execName+".db")

	return &Config{
		Server: ServerConfig{
			Name:                execName,
			Environment:         "development",
			Port:                8080,
			MinExtensionVersion: "1.0.0",
			RateLimitRPS:        10,
			RateLimitBurst:      20,
		},
		Storage: StorageConfig{
			DatabasePath:  defaultDBPath,
			HistoryLimit:  50,
			CacheTTLHours: 24,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
		Scan: ScanConfig{
			ProbeTimeoutMs:      500,
			PollIntervalMs:      300,
			InitialDelayMs:      100,
			MaxAttempts:         10,
			ExtractionTimeoutMs: 10000,
			AnalysisTimeoutMs:   30000,
		},
		Google: GoogleConfig{
			Endpoint:          "https://factchecktools.googleapis.com/v1alpha1/claims:search",
			LanguageCode:      "en",
			MinChunkLength:    50,
			RequestsPerSecond: 5,
			Burst:             5,
			TimeoutSeconds:    15,
		},
		ClaimBuster: ClaimBusterConfig{
			BaseURL:        "https://idir.uta.edu/claimbuster/api/v2",
			Threshold:      0.5,
			TimeoutSeconds: 15,
		},
		Gemini: GeminiConfig{
			Model:           "gemini-2.0-flash",
			PromptCharLimit: 3000,
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
		Kafka: KafkaConfig{
			Topic: "factlens.analyses",
		},
		Settings: SettingsConfig{
			AutoScanEnabled: true,
		},
	}
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		// Auto-detect config file
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}
	if logDir := os.Getenv("LOG_DIR"); logDir != "" {
		config.Logging.Dir = logDir
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Server.Port = portNum
		}
	}

	if key := os.Getenv("GOOGLE_FACT_CHECK_API_KEY"); key != "" {
		config.Settings.GoogleAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Settings.GeminiAPIKey = key
	}
	if key := os.Getenv("CLAIMBUSTER_API_KEY"); key != "" {
		config.Settings.ClaimBusterAPIKey = key
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = nil
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				config.Kafka.Brokers = append(config.Kafka.Brokers, b)
			}
		}
	}
}

func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path is required")
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Storage.HistoryLimit <= 0 {
		return fmt.Errorf("storage history_limit must be positive")
	}
	if c.Storage.CacheTTLHours <= 0 {
		return fmt.Errorf("storage cache_ttl_hours must be positive")
	}

	if c.Scan.MaxAttempts <= 0 {
		return fmt.Errorf("scan max_attempts must be positive")
	}
	if c.Scan.ProbeTimeoutMs <= 0 || c.Scan.PollIntervalMs <= 0 || c.Scan.ExtractionTimeoutMs <= 0 || c.Scan.AnalysisTimeoutMs <= 0 {
		return fmt.Errorf("scan timeouts must be positive")
	}

	if c.ClaimBuster.Threshold < 0 || c.ClaimBuster.Threshold > 1 {
		return fmt.Errorf("claimbuster threshold must be within [0,1]: %v", c.ClaimBuster.Threshold)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini model is required")
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are configured")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// CacheTTL returns the validity window of a cached analysis.
func (c *StorageConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

func (c *ScanConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

func (c *ScanConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *ScanConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMs) * time.Millisecond
}

func (c *ScanConfig) ExtractionTimeout() time.Duration {
	return time.Duration(c.ExtractionTimeoutMs) * time.Millisecond
}

func (c *ScanConfig) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutMs) * time.Millisecond
}
