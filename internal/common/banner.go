package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(cfg *Config, mode, logFile string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorPurple).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")

	b.PrintTopLine()
	b.PrintCenteredText("FACTLENS")
	b.PrintCenteredText("Page Credibility Scanning Service")
	b.PrintSeparatorLine()

	b.PrintKeyValue("Version", GetVersion(), 15)
	b.PrintKeyValue("Build", GetBuild(), 15)
	b.PrintKeyValue("Environment", cfg.Server.Environment, 15)
	b.PrintKeyValue("Mode", mode, 15)
	b.PrintKeyValue("Port", fmt.Sprintf("%d", cfg.Server.Port), 15)
	b.PrintBottomLine()

	fmt.Printf("\n")

	fmt.Printf("📋 Configuration:\n")
	fmt.Printf("   • Database: %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("   • AI Model: %s\n", cfg.Gemini.Model)

	if logFile != "" {
		pattern := strings.Replace(logFile, ".log", ".{YYYY-MM-DDTHH-MM-SS}.log", 1)
		fmt.Printf("   • Log File: %s\n", pattern)
	}
	fmt.Printf("\n")

	printCredentialStatus(&cfg.Settings)
	fmt.Printf("\n")
}

// printCredentialStatus shows which upstream APIs have keys configured
func printCredentialStatus(s *SettingsConfig) {
	fmt.Printf("🔑 API Credentials:\n")
	fmt.Printf("   • Google Fact Check: %s\n", configured(s.GoogleAPIKey))
	fmt.Printf("   • Gemini:            %s\n", configured(s.GeminiAPIKey))
	fmt.Printf("   • ClaimBuster:       %s\n", configured(s.ClaimBusterAPIKey))
}

func configured(key string) string {
	if key == "" {
		return "not configured (extension settings may provide it)"
	}
	return "configured"
}

// PrintShutdownBanner displays the application shutdown banner
func PrintShutdownBanner(serviceName string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorPurple).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText(serviceName)
	b.PrintBottomLine()
	fmt.Println()
}

// PrintColorizedMessage writes message to w in color
func PrintColorizedMessage(w io.Writer, color, message string) {
	fmt.Fprintf(w, "%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess writes a success message in green
func PrintSuccess(w io.Writer, message string) {
	PrintColorizedMessage(w, banner.ColorGreen, "✓ "+message)
}

// PrintError writes an error message in red
func PrintError(w io.Writer, message string) {
	PrintColorizedMessage(w, banner.ColorRed, "✗ "+message)
}

// PrintWarning writes a warning message in yellow
func PrintWarning(w io.Writer, message string) {
	PrintColorizedMessage(w, banner.ColorYellow, "⚠ "+message)
}
