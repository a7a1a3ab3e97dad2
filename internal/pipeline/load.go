package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/Veraticus/civic-flow/internal/download"
	"github.com/Veraticus/civic-flow/internal/extract"
	"github.com/Veraticus/civic-flow/internal/service"
	"golang.org/x/text/encoding/charmap"
)

// datasetOrder is the order datasets are loaded in. Deputies come first so
// votes and expenses can reference them.
var datasetOrder = []string{
	download.DatasetDeputies,
	download.DatasetPropositions,
	download.DatasetVotes,
	download.DatasetExpenses,
}

// Load parses files and upserts their rows. Unknown datasets are an error.
func (p *Pipeline) Load(ctx context.Context, files []File) ([]service.LoadStats, error) {
	ordered := slices.Clone(files)
	slices.SortStableFunc(ordered, func(a, b File) int {
		return slices.Index(datasetOrder, a.Dataset) - slices.Index(datasetOrder, b.Dataset)
	})

	stats := make([]service.LoadStats, 0, len(ordered))
	for _, f := range ordered {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		s, err := p.loadFile(ctx, f)
		if err != nil {
			return stats, fmt.Errorf("load %s %s: %w", f.Dataset, f.Path, err)
		}

		p.logger.Info("dataset loaded",
			"dataset", s.Dataset,
			"path", f.Path,
			"rows", s.Rows,
			"loaded", s.Loaded,
			"skipped", s.Skipped,
			"duration", s.Duration.Round(time.Millisecond))
		stats = append(stats, s)
	}
	return stats, nil
}

func (p *Pipeline) loadFile(ctx context.Context, f File) (service.LoadStats, error) {
	start := time.Now()
	stats := service.LoadStats{Dataset: f.Dataset}

	file, err := os.Open(f.Path)
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			p.logger.Warn("failed to close data file", "path", f.Path, "error", cerr)
		}
	}()

	var opts []extract.Option
	if slices.Contains(p.settings.Latin1Datasets, f.Dataset) {
		opts = append(opts, extract.WithEncoding(charmap.ISO8859_1))
	}

	rows, skipped, loaded, err := p.loadDataset(ctx, f.Dataset, file, opts)
	if err != nil {
		return stats, err
	}

	stats.Rows = rows + skipped
	stats.Skipped = skipped
	stats.Loaded = loaded
	stats.Duration = time.Since(start)
	return stats, nil
}

func (p *Pipeline) loadDataset(ctx context.Context, dataset string, r io.Reader, opts []extract.Option) (rows, skipped, loaded int, err error) {
	switch dataset {
	case download.DatasetDeputies:
		res, err := extract.ParseDeputies(r, opts...)
		if err != nil {
			return 0, 0, 0, err
		}
		n, err := p.store.UpsertDeputies(ctx, res.Items)
		return len(res.Items), res.Skipped, n, err
	case download.DatasetPropositions:
		res, err := extract.ParsePropositions(r, opts...)
		if err != nil {
			return 0, 0, 0, err
		}
		n, err := p.store.UpsertPropositions(ctx, res.Items)
		return len(res.Items), res.Skipped, n, err
	case download.DatasetVotes:
		res, err := extract.ParseVotes(r, opts...)
		if err != nil {
			return 0, 0, 0, err
		}
		n, err := p.store.UpsertVotes(ctx, res.Items)
		return len(res.Items), res.Skipped, n, err
	case download.DatasetExpenses:
		res, err := extract.ParseExpenses(r, opts...)
		if err != nil {
			return 0, 0, 0, err
		}
		n, err := p.store.UpsertExpenses(ctx, res.Items)
		return len(res.Items), res.Skipped, n, err
	default:
		return 0, 0, 0, fmt.Errorf("unknown dataset %q", dataset)
	}
}
