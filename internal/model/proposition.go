package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Proposition is a bill, constitutional amendment or similar instrument.
type Proposition struct {
	PresentedAt *time.Time
	TypeAcronym string
	Summary     string
	Keywords    string
	URI         string
	ID          int64
	Number      int
	Year        int
}

// Label returns the human-readable reference, e.g. "PL 1234/2024".
func (p Proposition) Label() string {
	if p.TypeAcronym == "" {
		return fmt.Sprintf("%d/%d", p.Number, p.Year)
	}
	return fmt.Sprintf("%s %d/%d", p.TypeAcronym, p.Number, p.Year)
}

// TextHash fingerprints the classifiable text of the proposition.
func (p Proposition) TextHash() string {
	sum := sha256.Sum256([]byte(p.Summary + "\x00" + p.Keywords))
	return hex.EncodeToString(sum[:])
}
