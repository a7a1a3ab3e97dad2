package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/civic-flow/internal/civic"
	"github.com/Veraticus/civic-flow/internal/cli"
	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/service"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	var (
		noProgress bool
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify propositions with the rule engine",
		Long: `Run the civic pattern table over every proposition with a summary and
replace all rule links in one transaction. Links suggested by the language
model are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := loadSettings()
			if err != nil {
				return err
			}
			if workers > 0 {
				s.Workers = workers
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

			stats, err := p.Classify(ctx)
			if err != nil {
				return err
			}

			printClassifyStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "classification workers (default: classify.workers)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	return cmd
}

func enrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Suggest categories with a language model",
		Long: `Send propositions that the rules left without any category to the
configured language model and store its suggestions with provenance "llm".
Requires llm.enabled and an API key.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := loadSettings()
			if err != nil {
				return err
			}
			if !s.LLM.Enabled {
				return common.NewUserError("LLM enrichment is disabled; set llm.enabled in the config",
					fmt.Errorf("%w: llm.enabled", common.ErrMissingConfig))
			}

			store, err := initStorage(ctx, s)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, cleanup, err := newPipeline(s, store, pipelineOptions{enrich: true})
			if err != nil {
				return err
			}
			defer cleanup()

			enriched, err := p.Enrich(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Enriched %d propositions", enriched)))
			return nil
		},
	}
}

func printClassifyStats(w io.Writer, stats *service.ClassifyStats) {
	content := fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		cli.FormatCount("Propositions", stats.Propositions),
		cli.FormatCount("Classified", stats.Classified),
		cli.FormatCount("Links", stats.Links),
		cli.FormatCount("Skipped codes", stats.Skipped),
		cli.SubtleStyle.Render(fmt.Sprintf("table %s, %s", civic.TableVersion, stats.Duration.Round(time.Millisecond))))
	fmt.Fprintln(w, cli.RenderBox("Rule classification", content))
}
