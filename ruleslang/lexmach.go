package ruleslang

import (
	"fmt"
	"strings"

	"github.com/npillmayer/rulegen"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// LMAdapter is a lexmachine adapter for the rule language.
type LMAdapter struct {
	Lexer *lexmachine.Lexer
}

// NewLMAdapter creates a new lexmachine adapter. It receives a function for
// adding the token patterns of the language and a list of literals, which are
// matched verbatim.
//
// Literals and patterns are mapped to token values by tokenIds.
func NewLMAdapter(init func(*lexmachine.Lexer), literals []string, tokenIds map[string]int) (*LMAdapter, error) {
	adapter := &LMAdapter{}
	adapter.Lexer = lexmachine.NewLexer()
	init(adapter.Lexer)
	for _, lit := range literals {
		r := "\\" + strings.Join(strings.Split(lit, ""), "\\")
		adapter.Lexer.Add([]byte(r), makeAction(tokenIds[lit]))
	}
	if err := adapter.Lexer.Compile(); err != nil {
		tracer().Errorf("Error compiling DFA: %v", err)
		return nil, err
	}
	return adapter, nil
}

// Scanner creates a scanner for a given input.
func (lm *LMAdapter) Scanner(input string) (*LMScanner, error) {
	s, err := lm.Lexer.Scanner([]byte(input))
	if err != nil {
		return &LMScanner{}, err
	}
	return &LMScanner{scanner: s, Error: logError, line: 1}, nil
}

// LMScanner is a scanner type for lexmachine scanners.
type LMScanner struct {
	scanner *lexmachine.Scanner
	Error   func(error)
	line    int // line of the most recent token
}

// SetErrorHandler sets an error handler for the scanner.
func (lms *LMScanner) SetErrorHandler(h func(error)) {
	if h == nil {
		lms.Error = logError
		return
	}
	lms.Error = h
}

// Default error reporting function for lexmachine-based scanners
func logError(e error) {
	tracer().Errorf("scanner error: " + e.Error())
}

// ScanError is an error for input no token pattern matches.
type ScanError struct {
	Line   int
	Column int
	Text   string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("line %d:%d: unexpected input %q", e.Line, e.Column, e.Text)
}

// NextToken returns the next token of the input. Unmatched input is reported
// to the error handler and skipped. At the end of input, NextToken returns a
// token of type EOF.
func (lms *LMScanner) NextToken() rulegen.Token {
	tok, err, eof := lms.scanner.Next()
	for err != nil {
		if ui, is := err.(*machines.UnconsumedInput); is {
			lms.Error(&ScanError{Line: ui.StartLine, Column: ui.StartColumn, Text: string(ui.Text)})
			lms.scanner.TC = ui.FailTC
		} else {
			lms.Error(err)
		}
		tok, err, eof = lms.scanner.Next()
	}
	if eof {
		return token{toktype: EOF, line: lms.line}
	}
	t := tok.(*lexmachine.Token)
	lms.line = t.StartLine
	tracer().Debugf("token %d %q at line %d", t.Type, t.Lexeme, t.StartLine)
	return token{
		toktype: rulegen.TokType(t.Type),
		lexeme:  string(t.Lexeme),
		value:   t.Value,
		span:    rulegen.Span{uint64(t.TC), uint64(t.TC + len(t.Lexeme))},
		line:    t.StartLine,
		col:     t.StartColumn,
	}
}

// ---------------------------------------------------------------------------

// Skip is a pre-defined action which ignores the scanned match.
func Skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// makeAction is an action which wraps a scanned match into a token. The value
// of the token is its lexeme.
func makeAction(id int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(id, string(m.Bytes), m), nil
	}
}

// makeValueAction is like makeAction, but computes the token value from the
// lexeme.
func makeValueAction(id int, value func(lexeme string) interface{}) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(id, value(string(m.Bytes)), m), nil
	}
}

// --- Tokens ----------------------------------------------------------------

type token struct {
	toktype rulegen.TokType
	lexeme  string
	value   interface{}
	span    rulegen.Span
	line    int
	col     int
}

var _ rulegen.Token = token{}

func (t token) TokType() rulegen.TokType {
	return t.toktype
}

func (t token) Lexeme() string {
	return t.lexeme
}

func (t token) Value() interface{} {
	return t.value
}

func (t token) Span() rulegen.Span {
	return t.span
}

func (t token) Line() int {
	return t.line
}

func (t token) String() string {
	if t.toktype == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.lexeme)
}
