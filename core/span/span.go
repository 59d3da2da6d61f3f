// Package span provides source-side addressing for the decoder: half-open
// word spans and the input lattice they index into. Plain sentences are
// represented as chain lattices so the chart only ever sees one input shape.
package span

import "fmt"

// Span identifies a contiguous range of the input, half-open over word
// boundary indices: Start is the boundary before the first word covered,
// End the boundary after the last. A valid span has End > Start >= 0.
// Span is a comparable value type and is used as a map key.
type Span struct {
	Start int
	End   int
}

// New returns the span [start, end).
func New(start, end int) Span {
	return Span{Start: start, End: end}
}

// Width returns the number of boundary steps the span covers.
func (s Span) Width() int {
	return s.End - s.Start
}

// Valid reports whether the span satisfies End > Start >= 0.
func (s Span) Valid() bool {
	return s.Start >= 0 && s.End > s.Start
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}
