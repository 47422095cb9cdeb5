package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const (
	logFileName   = "factlens.log"
	logTimeFormat = "15:04:05"
)

var (
	logger arbor.ILogger
	logDir string
	mu     sync.RWMutex
)

// GetLogger returns the process logger, creating a default one on first
// use when InitLogger was never called.
func GetLogger() arbor.ILogger {
	mu.RLock()
	if logger != nil {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = initDefaultLogger()
	}
	return logger
}

// GetLogFilePath returns the file the logger writes to, or where it would
// write with the default directory.
func GetLogFilePath() string {
	mu.RLock()
	current, dir := logger, logDir
	mu.RUnlock()

	if current != nil {
		if path := current.GetLogFilePath(); path != "" {
			return path
		}
	}
	if dir == "" {
		dir = defaultLogDir()
	}
	return filepath.Join(dir, logFileName)
}

// InitLogger creates the process logger from config. Later calls are
// no-ops.
func InitLogger(config *LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		return nil
	}

	l, dir, err := createLogger(config)
	if err != nil {
		return err
	}
	logger, logDir = l, dir
	return nil
}

func initDefaultLogger() arbor.ILogger {
	l, dir, err := createLogger(DefaultLoggingConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize default logger: %v\n", err)
		return arbor.NewLogger()
	}
	logDir = dir
	return l
}

func writesFile(output string) bool {
	return output == "both" || output == "file" || output == ""
}

func writesConsole(output string) bool {
	return output == "both" || output == "console" || output == ""
}

func defaultLogDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "logs"
	}
	return filepath.Join(filepath.Dir(execPath), "logs")
}

func createLogger(config *LoggingConfig) (arbor.ILogger, string, error) {
	l := arbor.NewLogger()
	textOutput := config.Format != "json"

	dir := config.Dir
	if dir == "" {
		dir = defaultLogDir()
	}

	if writesFile(config.Output) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, "", fmt.Errorf("failed to create logs directory %s: %w", dir, err)
		}
		l = l.WithFileWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeFile,
			FileName:   filepath.Join(dir, logFileName),
			TimeFormat: logTimeFormat,
			MaxSize:    int64(config.MaxSize * 1024 * 1024),
			MaxBackups: config.MaxBackups,
			TextOutput: textOutput,
		})
	}

	if writesConsole(config.Output) {
		l = l.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: logTimeFormat,
			TextOutput: textOutput,
		})
	}

	l = l.WithLevelFromString(config.Level)
	l.Debug().Str("output", config.Output).Str("dir", dir).Msg("Logger initialized")

	return l, dir, nil
}

func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:      "info",
		Format:     "text",
		Output:     "console",
		MaxSize:    100,
		MaxBackups: 3,
	}
}
