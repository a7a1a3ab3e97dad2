package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Veraticus/civic-flow/internal/cli"
	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/model"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List civic categories and their link counts",
		Long:  `Display every civic category with the number of propositions linked by rules and by the language model.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx, s)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			if len(categories) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No categories yet. Run: civic classify"))
				return nil
			}

			counts, err := store.GetCategoryCounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to count links: %w", err)
			}
			byCode := make(map[string]map[model.Provenance]int)
			for _, c := range counts {
				if byCode[c.Code] == nil {
					byCode[c.Code] = make(map[model.Provenance]int)
				}
				byCode[c.Code][c.Provenance] = c.Count
			}

			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				rows = append(rows, []string{
					c.Code,
					c.Name,
					strconv.Itoa(byCode[c.Code][model.ProvenanceRule]),
					strconv.Itoa(byCode[c.Code][model.ProvenanceLLM]),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Code", "Name", "Rule", "LLM"}, rows))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics and the latest run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, err := loadSettings()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx, s)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			content := fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s\n%s\n%s",
				cli.FormatCount("Deputies", stats.Deputies),
				cli.FormatCount("Propositions", stats.Propositions),
				cli.FormatCount("With summary", stats.Summarized),
				cli.FormatCount("Votes", stats.Votes),
				cli.FormatCount("Expenses", stats.Expenses),
				cli.FormatCount("Categories", stats.Categories),
				cli.FormatCount("Rule links", stats.RuleLinks),
				cli.FormatCount("LLM links", stats.LLMLinks))
			fmt.Fprintln(out, cli.RenderBox(cli.ChartIcon+" "+s.Database.Path, content))

			run, err := store.GetLatestRun(ctx)
			if errors.Is(err, common.ErrNotFound) {
				fmt.Fprintln(out, cli.FormatInfo("No pipeline runs recorded yet"))
				return nil
			}
			if err != nil {
				return err
			}
			printRun(out, run)
			return nil
		},
	}
}
