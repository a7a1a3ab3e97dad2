package model

import "time"

// CategoryMatch is a single category produced by a classification call.
// It is transient: callers map it to a PropositionCategory before persisting.
type CategoryMatch struct {
	CategoryCode   string  `json:"category_code"`
	MatchedPattern string  `json:"matched_pattern"`
	Confidence     float64 `json:"confidence"`
}

// PropositionCategory links a proposition to a category for one provenance.
type PropositionCategory struct {
	ClassifiedAt   time.Time
	Provenance     Provenance
	MatchedPattern string
	PropositionID  int64
	CategoryID     int
	Confidence     float64
}

// CategoryCount is the number of propositions linked to a category.
type CategoryCount struct {
	Code       string
	Name       string
	Provenance Provenance
	Count      int
}
