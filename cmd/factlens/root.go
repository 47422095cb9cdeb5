package main

import (
	"fmt"
	"strings"

	"factlens/internal/common"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
)

var (
	configPath string
	mode       string
	quiet      bool

	cfg    *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Page credibility scanning service",
	Long: `factlens scores the credibility of web pages. It drives the browser
extension over a websocket bridge, checks the page's claims against Google
Fact Check and ClaimBuster, and asks Gemini for an overall assessment.

Run without a subcommand to start the server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress banner output")
}

// setup loads the configuration and the logger every command shares.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	loaded, err := common.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	loaded.Server.Environment = parseMode(mode)
	cfg = loaded

	if err := common.InitLogger(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = common.GetLogger()
	return nil
}

// parseMode converts mode string to environment name
func parseMode(mode string) string {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return "production"
	case "dev", "development":
		return "development"
	default:
		return "development"
	}
}
