package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/civic-flow/internal/cli"
	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/config"
	"github.com/Veraticus/civic-flow/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	var spreadsheetID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Publish the classification report to Google Sheets",
		Long: `Write table counts, the latest pipeline run and the per-category link
breakdown to a Google spreadsheet. Without sheets.spreadsheet_id a new
spreadsheet is created.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := loadSettings()
			if err != nil {
				return err
			}

			sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				return common.NewUserError("Google Sheets is not configured; set sheets.service_account_path or OAuth credentials", err)
			}
			if spreadsheetID != "" {
				sheetsCfg.SpreadsheetID = spreadsheetID
			}

			store, err := initStorage(ctx, s)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := sheets.BuildReport(ctx, store, time.Now())
			if err != nil {
				return err
			}

			writer, err := sheets.NewWriter(ctx, sheetsCfg, slog.Default())
			if err != nil {
				return err
			}

			id, err := writer.Write(ctx, report)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Report exported: https://docs.google.com/spreadsheets/d/%s", id)))
			return nil
		},
	}

	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "spreadsheet ID (overrides sheets.spreadsheet_id)")
	return cmd
}
