package main

import (
	"fmt"
	"os"

	"factlens/internal/common"
	"factlens/internal/services"

	"github.com/spf13/cobra"
)

var errorsOutput string

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Manage the diagnostic error log",
}

var errorsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the error log to stdout or a file",
	Args:  cobra.NoArgs,
	RunE:  runErrorsExport,
}

var errorsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every error log record",
	Args:  cobra.NoArgs,
	RunE:  runErrorsClear,
}

func init() {
	errorsExportCmd.Flags().StringVarP(&errorsOutput, "output", "o", "", "Write to this file instead of stdout")
	errorsCmd.AddCommand(errorsExportCmd)
	errorsCmd.AddCommand(errorsClearCmd)
	rootCmd.AddCommand(errorsCmd)
}

func runErrorsExport(cmd *cobra.Command, args []string) error {
	storage, err := services.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}
	defer storage.Close()

	export, err := storage.ExportErrorLog()
	if err != nil {
		return fmt.Errorf("exporting error log: %w", err)
	}
	if export == "" {
		common.PrintWarning(cmd.ErrOrStderr(), "Error log is empty.")
		return nil
	}

	if errorsOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), export)
		return nil
	}
	if err := os.WriteFile(errorsOutput, []byte(export+"\n"), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", errorsOutput, err)
	}
	common.PrintSuccess(cmd.OutOrStdout(), "Error log written to "+errorsOutput)
	return nil
}

func runErrorsClear(cmd *cobra.Command, args []string) error {
	storage, err := services.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}
	defer storage.Close()

	if err := storage.ClearErrorLog(); err != nil {
		return fmt.Errorf("clearing error log: %w", err)
	}
	common.PrintSuccess(cmd.OutOrStdout(), "Error log cleared.")
	return nil
}
