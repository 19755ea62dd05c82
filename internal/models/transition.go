package models

import (
	"fmt"
	"sort"
	"strings"
)

// TransitionSeparator joins the two endpoints of a transition label.
const TransitionSeparator = "->"

// Transition is one step between two categories or pseudo-categories.
type Transition struct {
	From Category `json:"from"`
	To   Category `json:"to"`
}

// NewTransition builds a transition from two endpoints.
func NewTransition(from, to Category) Transition {
	return Transition{From: from, To: to}
}

// Label renders the transition as "AAA->BBB".
func (t Transition) Label() string {
	return string(t.From) + TransitionSeparator + string(t.To)
}

// String implements fmt.Stringer.
func (t Transition) String() string {
	return t.Label()
}

// Reverse returns the transition with swapped endpoints.
func (t Transition) Reverse() Transition {
	return Transition{From: t.To, To: t.From}
}

// IsStart reports whether the transition opens a case.
func (t Transition) IsStart() bool {
	return t.From == CategoryStart
}

// IsEnd reports whether the transition closes a case.
func (t Transition) IsEnd() bool {
	return t.To == CategoryEnd
}

// Validate checks both endpoints. "sta" is only valid as a source and
// "end" only as a target.
func (t Transition) Validate() error {
	if len(t.From) != CategoryWidth || len(t.To) != CategoryWidth {
		return fmt.Errorf("%w: %q", ErrMalformedLabel, t.Label())
	}
	if t.From == CategoryEnd || t.To == CategoryStart {
		return fmt.Errorf("%w: %q has a misplaced pseudo-category", ErrMalformedLabel, t.Label())
	}
	return nil
}

// ParseTransition parses a label of the form "AAA->BBB".
func ParseTransition(label string) (Transition, error) {
	from, to, ok := strings.Cut(label, TransitionSeparator)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q has no %q", ErrMalformedLabel, label, TransitionSeparator)
	}
	t := Transition{From: Category(from), To: Category(to)}
	if err := t.Validate(); err != nil {
		return Transition{}, err
	}
	return t, nil
}

// SortTransitions sorts transitions by label.
func SortTransitions(ts []Transition) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].From != ts[j].From {
			return ts[i].From < ts[j].From
		}
		return ts[i].To < ts[j].To
	})
}

// TransitionRecord tags a transition with the position and timestamp of
// the event it was derived from.
type TransitionRecord struct {
	Position   int64      `json:"position"`
	Timestamp  int64      `json:"timestamp"`
	Transition Transition `json:"transition"`
}
