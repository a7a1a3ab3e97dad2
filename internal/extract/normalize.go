package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/civic-flow/internal/model"
)

// parseID accepts a bare numeric ID or a resource URI ending in one, such as
// https://dadosabertos.camara.leg.br/api/v2/deputados/204554.
func parseID(s string) (int64, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be positive", s)
	}
	return id, nil
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// parseDate parses the timestamp layouts seen across exports. Values carry
// no zone and are read as UTC. An empty value returns nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

// parseDecimal accepts "1234.56", "1234,56" and "1.234,56". When both
// separators appear the last one is the decimal mark.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return v, nil
}

// parseInt parses an integer, treating empty as zero.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return v, nil
}

var voteValues = map[string]string{
	"sim":       model.VoteYes,
	"nao":       model.VoteNo,
	"abstencao": model.VoteAbstention,
	"obstrucao": model.VoteObstruction,
	"artigo17":  model.VoteArticle17,
	"art17":     model.VoteArticle17,
}

// normalizeVote maps the spellings seen in exports onto the canonical vote
// constants. It reports false for values it does not recognize.
func normalizeVote(s string) (string, bool) {
	v, ok := voteValues[normalizeHeader(s)]
	return v, ok
}
