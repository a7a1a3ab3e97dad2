package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/download"
)

// File is a local CSV ready to be loaded.
type File struct {
	Dataset string
	Path    string
	Year    int
}

// Fetch downloads every catalog source for years, unpacking zip archives.
// Sources that did not change since the last run are still returned so that
// Load sees a complete set.
func (p *Pipeline) Fetch(ctx context.Context, years []int) ([]File, error) {
	if p.fetcher == nil {
		return nil, fmt.Errorf("%w: downloader", common.ErrMissingConfig)
	}

	sources := p.settings.Catalog.Sources(years)
	files := make([]File, 0, len(sources))

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %d: %w", src.Dataset, src.Year, err)
		}

		path := res.Path
		if strings.HasSuffix(strings.ToLower(path), ".zip") {
			path, err = download.ExtractCSV(path)
			if err != nil {
				return nil, fmt.Errorf("unpack %s %d: %w", src.Dataset, src.Year, err)
			}
		}

		p.logger.Info("source ready",
			"dataset", src.Dataset,
			"year", src.Year,
			"path", path,
			"not_modified", res.NotModified,
			"bytes", res.Bytes)

		files = append(files, File{Dataset: src.Dataset, Year: src.Year, Path: path})
	}

	return files, nil
}
