// Package extract reads the legislature's open-data CSV exports into model
// types.
package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/Veraticus/civic-flow/internal/common"
	"golang.org/x/text/encoding"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator is the field delimiter used by the open-data exports.
const Separator = ';'

// Column describes one canonical field and the header names accepted for it.
type Column struct {
	Aliases  []string
	Required bool
}

// AliasSet maps canonical field names to their accepted headers.
type AliasSet map[string]Column

// Option configures a Reader.
type Option func(*readerConfig)

type readerConfig struct {
	enc encoding.Encoding
}

// WithEncoding decodes input from enc instead of UTF-8. Older exports are
// published in ISO-8859-1.
func WithEncoding(enc encoding.Encoding) Option {
	return func(c *readerConfig) {
		c.enc = enc
	}
}

// Reader yields records from a delimited export with resolved columns.
type Reader struct {
	csv   *csv.Reader
	index map[string]int
	line  int
}

// NewReader reads the header row and resolves every field in aliases
// against it. A missing required field returns an error wrapping
// common.ErrMissingColumn.
func NewReader(r io.Reader, aliases AliasSet, opts ...Option) (*Reader, error) {
	cfg := readerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var decoder transform.Transformer
	if cfg.enc != nil {
		decoder = cfg.enc.NewDecoder()
	} else {
		decoder = xunicode.BOMOverride(xunicode.UTF8.NewDecoder())
	}

	cr := csv.NewReader(transform.NewReader(r, decoder))
	cr.Comma = Separator
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", common.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := resolve(header, aliases)
	if err != nil {
		return nil, err
	}

	return &Reader{csv: cr, index: index, line: 1}, nil
}

// resolve maps canonical names to header positions.
func resolve(header []string, aliases AliasSet) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	index := make(map[string]int, len(aliases))
	var missing []string
	for field, col := range aliases {
		found := false
		for _, alias := range append([]string{field}, col.Aliases...) {
			if pos, ok := positions[normalizeHeader(alias)]; ok {
				index[field] = pos
				found = true
				break
			}
		}
		if !found && col.Required {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", common.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		return Record{}, err
	}
	r.line++
	return Record{fields: fields, index: r.index, Line: r.line}, nil
}

// Has reports whether field was resolved to a column.
func (r *Reader) Has(field string) bool {
	_, ok := r.index[field]
	return ok
}

// Record is one data row.
type Record struct {
	fields []string
	index  map[string]int
	Line   int
}

// Get returns the trimmed value of field, or "" when the column is absent
// or the row is short.
func (rec Record) Get(field string) string {
	pos, ok := rec.index[field]
	if !ok || pos >= len(rec.fields) {
		return ""
	}
	return strings.TrimSpace(rec.fields[pos])
}

// normalizeHeader folds a header for comparison: accents stripped,
// lowercased, anything outside [a-z0-9] dropped (ordinal marks included).
func normalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
