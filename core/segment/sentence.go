// Package segment carries decoder input: tokenized sentences and the
// constraint annotations that pin parts of their translation.
package segment

import (
	"fmt"
	"strings"
)

// Sentence is one unit of input. Words are whitespace tokens of Text;
// constraints address word positions as half-open spans.
type Sentence struct {
	// ID is the position of the sentence in its batch, starting at 0.
	ID int

	// Text is the raw input line.
	Text string

	// Words holds the whitespace tokens of Text.
	Words []string

	Constraints []ConstraintSpan
}

// New tokenizes text into a sentence.
func New(id int, text string) *Sentence {
	return &Sentence{
		ID:    id,
		Text:  text,
		Words: strings.Fields(text),
	}
}

// Len returns the number of source words.
func (s *Sentence) Len() int { return len(s.Words) }

// Empty reports whether the sentence has no words.
func (s *Sentence) Empty() bool { return len(s.Words) == 0 }

// AddConstraint validates cs against the sentence bounds and attaches it.
func (s *Sentence) AddConstraint(cs ConstraintSpan) error {
	if cs.Start < 0 || cs.End > s.Len() || cs.End <= cs.Start {
		return fmt.Errorf("segment: constraint span [%d,%d) out of bounds for %d words",
			cs.Start, cs.End, s.Len())
	}
	s.Constraints = append(s.Constraints, cs)
	return nil
}

// SpanWords returns the words covered by [start, end).
func (s *Sentence) SpanWords(start, end int) []string {
	return s.Words[start:end]
}
