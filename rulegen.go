package rulegen

import "fmt"

// --- A general purpose interface for tokens --------------------------------

// TokType is a category type for a Token. Constants are defined by the scanner
// in package ruleslang.
type TokType int

// Tokens represent input tokens of rule files and tree s-expressions.
//
// An example would be a token for a capture name:
//
//    TokType = Ident       // identifier for this kind of tokens
//    Lexeme  = "x"         // lexeme how it appeared in the input stream
//    Span    = 67…68       // occured from byte position 67 in the input stream
//    Line    = 4           // on line 4 of the rule file
//
type Token interface {
	TokType() TokType
	Lexeme() string
	Value() interface{}
	Span() Span
	Line() int
}

// --- Spans ------------------------------------------------------------

// Span is a small type for capturing a length of input token run. A span denotes
// a start position and the position just behind the end.
type Span [2]uint64 // (x…y)

// From returns the start value of a span.
func (s Span) From() uint64 {
	return s[0]
}

// To returns the end value of a span.
func (s Span) To() uint64 {
	return s[1]
}

// Len returns the length of (x…y)
func (s Span) Len() uint64 {
	return s[1] - s[0]
}

func (s Span) IsNull() bool {
	return s == Span{}
}

func (s Span) Extend(other Span) Span {
	if s.IsNull() {
		return other
	}
	if other[0] < s[0] {
		s[0] = other[0]
	}
	if other[1] > s[1] {
		s[1] = other[1]
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("(%d…%d)", s[0], s[1])
}

// --- Locations --------------------------------------------------------

// Location is source-location metadata attached to tree nodes. Rewrites copy
// the location of a matched node to its replacement.
type Location struct {
	File string
	Line int
	Col  int
}

// IsUnknown is true for the zero location.
func (l Location) IsUnknown() bool {
	return l == Location{}
}

func (l Location) String() string {
	if l.IsUnknown() {
		return "<unknown>"
	}
	if l.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}
