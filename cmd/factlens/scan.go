package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"factlens/internal/common"
	"factlens/internal/messages"
	"factlens/internal/models"
	"factlens/internal/services"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Analyze one page from the command line",
	Long: `Fetch a page, extract its text and run the full analysis without the
browser extension. The result is stored in the history like any other scan.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	pageURL := args[0]
	if !models.ShouldScanURL(pageURL) {
		return common.NewExtractionError("unscannable_url", "This page cannot be analyzed").WithContext("url", pageURL)
	}

	host := services.NewLocalHost(cfg.Scan.ExtractionTimeout(), logger)
	defer host.Close()

	a, err := newApp(cfg, logger, host, services.NewLogNotifier(logger))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	host.OnReady(func(msg messages.ContentReady) {
		if _, err := a.dispatcher.Dispatch(ctx, msg); err != nil {
			logger.Warn().Err(err).Msg("Failed to dispatch content ready")
		}
	})

	tabID := host.Open(pageURL)
	result, err := a.coordinator.RequestAnalysis(ctx, tabID)
	if err != nil {
		return errors.New(common.UserMessage(err))
	}

	printResult(cmd.OutOrStdout(), pageURL, result)
	return nil
}

func printResult(w io.Writer, pageURL string, result *models.AnalysisResult) {
	band := models.BandFor(result.CredibilityScore)
	fmt.Fprintf(w, "%s\n", pageURL)
	fmt.Fprintf(w, "Credibility: %d%% (%s)\n", result.CredibilityScore, band)
	if result.Summary != "" {
		fmt.Fprintf(w, "Summary: %s\n", result.Summary)
	}
	if len(result.Claims) == 0 {
		fmt.Fprintln(w, "No fact-checked claims found.")
		return
	}

	fmt.Fprintln(w)
	rows := make([][]string, 0, len(result.Claims))
	for _, c := range result.Claims {
		rating := "-"
		if r := c.FirstReview(); r != nil && r.TextualRating != "" {
			rating = r.TextualRating
		}
		rows = append(rows, []string{
			c.Source,
			strconv.Itoa(services.ClaimScore(c)),
			rating,
			c.Text,
		})
	}
	printTable(w, []string{"SOURCE", "SCORE", "RATING", "CLAIM"}, rows)
}
