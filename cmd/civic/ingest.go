package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/civic-flow/internal/cli"
	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/config"
	"github.com/Veraticus/civic-flow/internal/download"
	"github.com/Veraticus/civic-flow/internal/pipeline"
	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download open-data exports",
		Long: `Download the deputies, propositions, votes and expenses exports for the
configured years. Unchanged files are detected with ETags and not
downloaded again.`,
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

			p, cleanup, err := newPipeline(s, store, pipelineOptions{progress: showProgress(noProgress)})
			if err != nil {
				return err
			}
			defer cleanup()

			files, err := p.Fetch(ctx, s.Years)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(files))
			for _, f := range files {
				year := ""
				if f.Year != 0 {
					year = strconv.Itoa(f.Year)
				}
				rows = append(rows, []string{f.Dataset, year, f.Path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Dataset", "Year", "Path"}, rows))
			return nil
		},
	}

	cmd.Flags().IntSlice("years", nil, "years to download (default: years from config)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	return cmd
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <dataset> <file>...",
		Short: "Load CSV exports into the database",
		Long: `Parse local CSV exports and upsert their rows. Loading is idempotent.

Datasets: deputies, propositions, votes, expenses.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dataset := args[0]
			switch dataset {
			case download.DatasetDeputies, download.DatasetPropositions, download.DatasetVotes, download.DatasetExpenses:
			default:
				return fmt.Errorf("unknown dataset %q", dataset)
			}

			s, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx, s)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, cleanup, err := newPipeline(s, store, pipelineOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			files := make([]pipeline.File, 0, len(args)-1)
			for _, path := range args[1:] {
				files = append(files, pipeline.File{Dataset: dataset, Path: config.ExpandPath(path)})
			}

			stats, err := p.Load(ctx, files)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(stats))
			for i, st := range stats {
				rows = append(rows, []string{
					files[i].Path,
					strconv.Itoa(st.Loaded),
					strconv.Itoa(st.Skipped),
					st.Duration.Round(time.Millisecond).String(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"File", "Loaded", "Skipped", "Duration"}, rows))
			return nil
		},
	}
}

// applyYearsFlag overrides the configured years when --years is given.
func applyYearsFlag(cmd *cobra.Command, s *config.Settings) error {
	if !cmd.Flags().Changed("years") {
		return nil
	}
	years, err := cmd.Flags().GetIntSlice("years")
	if err != nil {
		return err
	}
	s.Years = years
	if err := s.Validate(); err != nil {
		return common.NewUserError("invalid --years", err)
	}
	return nil
}
