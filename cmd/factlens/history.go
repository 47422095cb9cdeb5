package main

import (
	"fmt"
	"strconv"

	"factlens/internal/common"
	"factlens/internal/details"
	"factlens/internal/models"
	"factlens/internal/services"

	"github.com/spf13/cobra"
)

var (
	historyLinks bool
	historyBase  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the scan history",
	Long:  `List the stored scan history, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the scan history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := services.NewStorage(&cfg.Storage)
		if err != nil {
			return err
		}
		defer storage.Close()

		if err := storage.ClearHistory(); err != nil {
			return err
		}
		common.PrintSuccess(cmd.OutOrStdout(), "History cleared.")
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyLinks, "links", false, "Print the details view link of every entry")
	historyCmd.Flags().StringVar(&historyBase, "base-url", "", "Base URL of the details view (default http://localhost:<port>/details)")
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	storage, err := services.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}
	defer storage.Close()

	entries, err := storage.LoadHistory()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No pages scanned yet.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = "Untitled Page"
		}
		rows = append(rows, []string{
			e.Timestamp,
			strconv.Itoa(e.Results.CredibilityScore),
			string(models.BandFor(e.Results.CredibilityScore)),
			title,
			e.URL,
		})
	}
	printTable(out, []string{"SCANNED", "SCORE", "BAND", "TITLE", "URL"}, rows)

	if !historyLinks {
		return nil
	}
	base := historyBase
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d/details", cfg.Server.Port)
	}
	fmt.Fprintln(out)
	for _, e := range entries {
		link, err := details.Link(base, e)
		if err != nil {
			logger.Warn().Err(err).Str("url", e.URL).Msg("Failed to build details link")
			continue
		}
		fmt.Fprintln(out, link)
	}
	return nil
}
