package model

import "time"

// Category is a civic-impact theme a proposition can be linked to.
type Category struct {
	CreatedAt   time.Time
	Code        string
	Name        string
	Description string
	ID          int
}

// Provenance identifies how a proposition-category link was produced.
type Provenance string

const (
	// ProvenanceRule marks links produced by the rule-based classification engine.
	ProvenanceRule Provenance = "rule"
	// ProvenanceLLM marks links produced by the LLM enrichment pass.
	ProvenanceLLM Provenance = "llm"
)

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	return p == ProvenanceRule || p == ProvenanceLLM
}
