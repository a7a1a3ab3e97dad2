// Package storage provides the SQLite persistence layer for legislative data
// and classification results.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/civic-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidProvenance  = errors.New("invalid provenance")
	ErrInvalidProposition = errors.New("invalid proposition")
	ErrInvalidLink        = errors.New("invalid proposition category")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidDeputy      = errors.New("invalid deputy")
	ErrInvalidVote        = errors.New("invalid vote")
	ErrInvalidExpense     = errors.New("invalid expense")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateProvenance(p model.Provenance) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidProvenance, p)
	}
	return nil
}

func validateProposition(p *model.Proposition) error {
	if p == nil {
		return fmt.Errorf("%w: proposition", ErrNilParameter)
	}
	if p.ID <= 0 {
		return fmt.Errorf("%w: missing ID", ErrInvalidProposition)
	}
	return nil
}

func validateCategory(c *model.Category) error {
	if c == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidCategory)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: missing name for %s", ErrInvalidCategory, c.Code)
	}
	return nil
}

// validateLink checks a link, and that its provenance equals source when
// source is non-empty.
func validateLink(l *model.PropositionCategory, source model.Provenance) error {
	if l == nil {
		return fmt.Errorf("%w: link", ErrNilParameter)
	}
	if l.PropositionID <= 0 || l.CategoryID <= 0 {
		return fmt.Errorf("%w: missing proposition or category ID", ErrInvalidLink)
	}
	if err := validateProvenance(l.Provenance); err != nil {
		return err
	}
	if source != "" && l.Provenance != source {
		return fmt.Errorf("%w: provenance %q in a %q batch", ErrInvalidLink, l.Provenance, source)
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidLink)
	}
	return nil
}

func validateVote(v *model.Vote) error {
	if v == nil {
		return fmt.Errorf("%w: vote", ErrNilParameter)
	}
	if strings.TrimSpace(v.VotingID) == "" || v.DeputyID <= 0 {
		return fmt.Errorf("%w: missing voting or deputy ID", ErrInvalidVote)
	}
	return nil
}

func validateExpense(e *model.Expense) error {
	if e == nil {
		return fmt.Errorf("%w: expense", ErrNilParameter)
	}
	if strings.TrimSpace(e.DocumentID) == "" || e.DeputyID <= 0 {
		return fmt.Errorf("%w: missing document or deputy ID", ErrInvalidExpense)
	}
	if e.Month < 1 || e.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidExpense, e.Month)
	}
	return nil
}
