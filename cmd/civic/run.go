package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/civic-flow/internal/cli"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/Veraticus/civic-flow/internal/pipeline"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		skipIngest bool
		skipEnrich bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		Long: `Fetch and load the open-data exports, classify every proposition and,
when configured, enrich unlinked propositions with a language model.

Fetch and load failures abort the run. Classification and enrichment
failures are recorded as warnings and mark the run degraded. The outcome is
stored in the database and posted to notify.webhook_url when set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := loadSettings()
			if err != nil {
				return err
			}
			if err := applyYearsFlag(cmd, s); err != nil {
				return err
			}

			store, err := initStorage(ctx, s)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, cleanup, err := newPipeline(s, store, pipelineOptions{
				enrich:   !skipEnrich,
				progress: showProgress(noProgress),
			})
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := p.Run(ctx, pipeline.RunOptions{
				Years:      s.Years,
				SkipIngest: skipIngest,
				SkipEnrich: skipEnrich,
			})
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			if err != nil {
				return err
			}
			if run.Status == model.RunDegraded {
				return errors.New("run finished with warnings")
			}
			return nil
		},
	}

	cmd.Flags().IntSlice("years", nil, "years to ingest (default: years from config)")
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "classify stored data without fetching or loading")
	cmd.Flags().BoolVar(&skipEnrich, "skip-enrich", false, "skip LLM enrichment")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	return cmd
}

func printRun(w io.Writer, run *model.PipelineRun) {
	var status string
	switch run.Status {
	case model.RunSucceeded:
		status = cli.FormatSuccess(string(run.Status))
	case model.RunDegraded:
		status = cli.FormatWarning(string(run.Status))
	default:
		status = cli.FormatError(string(run.Status))
	}

	lines := []string{
		status,
		cli.SubtleStyle.Render("run " + run.ID),
		cli.FormatCount("Loaded", run.Loaded),
		cli.FormatCount("Classified", run.Classified),
		cli.FormatCount("Enriched", run.Enriched),
	}
	if run.FinishedAt != nil {
		lines = append(lines, cli.SubtleStyle.Render(run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()))
	}
	for _, warning := range run.Warnings {
		lines = append(lines, cli.FormatWarning(warning))
	}
	if run.Error != "" {
		lines = append(lines, cli.FormatError(run.Error))
	}

	fmt.Fprintln(w, cli.RenderBox("Pipeline run", strings.Join(lines, "\n")))
}
