package models

import (
	"fmt"
	"sort"
)

// CaseID identifies a case (one top-level transaction and its sub-calls).
// Case boundaries are detected with native integer equality.
type CaseID int64

// Category is the fixed-width behavioral code of an event (e.g. "CtU").
type Category string

// Known event categories: <sender>t<receiver> with C=contract, U=user.
const (
	CategoryCtC Category = "CtC"
	CategoryCtU Category = "CtU"
	CategoryUtC Category = "UtC"
	CategoryUtU Category = "UtU"
)

// Reserved pseudo-categories marking case start and case end.
const (
	CategoryStart Category = "sta"
	CategoryEnd   Category = "end"
)

// CategoryWidth is the number of characters in every category code.
const CategoryWidth = 3

// IsReserved reports whether c is one of the start/end pseudo-categories.
func (c Category) IsReserved() bool {
	return c == CategoryStart || c == CategoryEnd
}

// Validate checks the width of the code and rejects reserved codes,
// which may only appear inside transitions.
func (c Category) Validate() error {
	if len(c) != CategoryWidth {
		return fmt.Errorf("%w: %q must be %d characters", ErrUnknownCategory, string(c), CategoryWidth)
	}
	if c.IsReserved() {
		return fmt.Errorf("%w: %q is reserved", ErrUnknownCategory, string(c))
	}
	return nil
}

// CategoryFor builds the category code from the contract flags of the
// sender and receiver of a call.
func CategoryFor(senderIsContract, receiverIsContract bool) Category {
	return Category(actorCode(senderIsContract) + "t" + actorCode(receiverIsContract))
}

func actorCode(isContract bool) string {
	if isContract {
		return "C"
	}
	return "U"
}

// Alphabet is the set of categories accepted on an event stream.
type Alphabet map[Category]bool

// DefaultAlphabet returns the four call categories.
func DefaultAlphabet() Alphabet {
	return NewAlphabet(CategoryCtC, CategoryCtU, CategoryUtC, CategoryUtU)
}

// NewAlphabet builds an alphabet from the given codes.
func NewAlphabet(codes ...Category) Alphabet {
	a := make(Alphabet, len(codes))
	for _, c := range codes {
		a[c] = true
	}
	return a
}

// Check validates c and confirms it belongs to the alphabet.
// An empty alphabet accepts any well-formed code.
func (a Alphabet) Check(c Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(a) > 0 && !a[c] {
		return fmt.Errorf("%w: %q not in alphabet %v", ErrUnknownCategory, string(c), a.Codes())
	}
	return nil
}

// Codes returns the alphabet's categories in sorted order.
func (a Alphabet) Codes() []Category {
	codes := make([]Category, 0, len(a))
	for c := range a {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Event is one classified sub-call of a case.
type Event struct {
	CaseID    CaseID   `json:"case_id"`
	Position  int64    `json:"position"`  // Totally ordered position key
	Category  Category `json:"category"`  // Behavioral category code
	Timestamp int64    `json:"timestamp"` // Epoch seconds
}

// SortEventsByPosition sorts events in place by position, keeping the
// relative order of equal positions.
func SortEventsByPosition(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Position < events[j].Position
	})
}

// CountCases returns the number of distinct case ids in events.
func CountCases(events []Event) int {
	seen := make(map[CaseID]struct{})
	for _, e := range events {
		seen[e.CaseID] = struct{}{}
	}
	return len(seen)
}
