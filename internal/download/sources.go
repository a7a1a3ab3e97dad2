package download

import (
	"fmt"
	"strings"
)

// Dataset names.
const (
	DatasetDeputies     = "deputies"
	DatasetPropositions = "propositions"
	DatasetVotes        = "votes"
	DatasetExpenses     = "expenses"
)

// Default publication endpoints.
const (
	DefaultBaseURL  = "https://dadosabertos.camara.leg.br/arquivos"
	DefaultQuotaURL = "https://www.camara.leg.br/cotas"
)

// Source is one downloadable export.
type Source struct {
	Dataset string
	URL     string
	Year    int
}

// Catalog knows where each dataset is published.
type Catalog struct {
	BaseURL  string
	QuotaURL string
}

// Sources lists the exports for years, deputies first so that later
// datasets can reference them.
func (c Catalog) Sources(years []int) []Source {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	quota := strings.TrimRight(c.QuotaURL, "/")
	if quota == "" {
		quota = DefaultQuotaURL
	}

	sources := []Source{{
		Dataset: DatasetDeputies,
		URL:     base + "/deputados/csv/deputados.csv",
	}}
	for _, y := range years {
		sources = append(sources,
			Source{Dataset: DatasetPropositions, Year: y, URL: fmt.Sprintf("%s/proposicoes/csv/proposicoes-%d.csv", base, y)},
			Source{Dataset: DatasetVotes, Year: y, URL: fmt.Sprintf("%s/votacoesVotos/csv/votacoesVotos-%d.csv", base, y)},
			Source{Dataset: DatasetExpenses, Year: y, URL: fmt.Sprintf("%s/Ano-%d.csv.zip", quota, y)},
		)
	}
	return sources
}
