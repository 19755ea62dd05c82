package miner

import (
	"fmt"

	"github.com/harrison/chainminer/internal/models"
)

// extractConfig holds the options of ExtractTransitions.
type extractConfig struct {
	alphabet      models.Alphabet
	checkOrdering bool
	caseIDReuse   bool
}

// ExtractOption configures ExtractTransitions.
type ExtractOption func(*extractConfig)

// WithAlphabet restricts accepted event categories. A nil or empty
// alphabet accepts any well-formed 3-character code.
func WithAlphabet(a models.Alphabet) ExtractOption {
	return func(c *extractConfig) {
		c.alphabet = a
	}
}

// WithOrderingCheck enables or disables detection of non-increasing
// positions and interleaved cases. Enabled by default.
func WithOrderingCheck(enabled bool) ExtractOption {
	return func(c *extractConfig) {
		c.checkOrdering = enabled
	}
}

// WithCaseIDReuse treats a case id that reappears after its case ended as a
// new case instead of an ordering violation.
func WithCaseIDReuse(allowed bool) ExtractOption {
	return func(c *extractConfig) {
		c.caseIDReuse = allowed
	}
}

// ExtractTransitions converts a position-ordered event stream into a
// transition record stream.
//
// Each event yields its incoming transition ("sta->X" at a case boundary,
// "P->X" otherwise). An event that terminates its case additionally yields
// "X->end", emitted right after its incoming record with the same position
// and timestamp. Events of one case must be contiguous.
func ExtractTransitions(events []models.Event, opts ...ExtractOption) ([]models.TransitionRecord, error) {
	cfg := extractConfig{
		alphabet:      models.DefaultAlphabet(),
		checkOrdering: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(events) == 0 {
		return []models.TransitionRecord{}, nil
	}

	records := make([]models.TransitionRecord, 0, len(events)+len(events)/2)
	closed := make(map[models.CaseID]struct{})

	for i, e := range events {
		if err := cfg.alphabet.Check(e.Category); err != nil {
			return nil, fmt.Errorf("event %d (position %d): %w", i, e.Position, err)
		}

		startsCase := i == 0 || events[i-1].CaseID != e.CaseID
		if cfg.checkOrdering {
			if err := checkOrder(events, i, startsCase, closed, cfg.caseIDReuse); err != nil {
				return nil, err
			}
		}

		incoming := models.NewTransition(models.CategoryStart, e.Category)
		if !startsCase {
			incoming = models.NewTransition(events[i-1].Category, e.Category)
		}
		records = append(records, models.TransitionRecord{
			Position:   e.Position,
			Timestamp:  e.Timestamp,
			Transition: incoming,
		})

		endsCase := i == len(events)-1 || events[i+1].CaseID != e.CaseID
		if endsCase {
			records = append(records, models.TransitionRecord{
				Position:   e.Position,
				Timestamp:  e.Timestamp,
				Transition: models.NewTransition(e.Category, models.CategoryEnd),
			})
			closed[e.CaseID] = struct{}{}
		}
	}

	return records, nil
}

// checkOrder validates event i against its predecessor and the set of
// already closed cases.
func checkOrder(events []models.Event, i int, startsCase bool, closed map[models.CaseID]struct{}, reuse bool) error {
	e := events[i]
	if i > 0 && e.Position <= events[i-1].Position {
		return &models.OrderingError{
			Index:    i,
			Position: e.Position,
			CaseID:   e.CaseID,
			Reason:   "position is not strictly increasing",
		}
	}
	if startsCase && !reuse {
		if _, seen := closed[e.CaseID]; seen {
			return &models.OrderingError{
				Index:    i,
				Position: e.Position,
				CaseID:   e.CaseID,
				Reason:   "case reappears after it ended",
			}
		}
	}
	return nil
}
