package ruleslang

import (
	"fmt"
	"os"
	"strings"

	"github.com/npillmayer/rulegen"
	"github.com/npillmayer/rulegen/ast"
	"github.com/npillmayer/rulegen/pattern"
	"github.com/npillmayer/rulegen/rules"
	"github.com/npillmayer/rulegen/schema"
	"github.com/pkg/errors"
)

// --- Grammar ---------------------------------------------------------------
//
// File       ::=  Rule*
// Rule       ::=  Expr '->' Expr Clause*
// Clause     ::=  'where' opaque
// Clause     ::=  'let' ident '=' opaque
// Clause     ::=  'check' ident '=' opaque
// Expr       ::=  ident ':' Operator
// Expr       ::=  Operator
// Expr       ::=  ident                       // wildcard
// Operator   ::=  ident Payload? Members?
// Payload    ::=  '[' (string | number | ident) ']'
// Members    ::=  '(' ( Member (',' Member)* )? ')'
// Member     ::=  Expr '...'?
// Member     ::=  '...'
//
// Tree       ::=  'nil'
// Tree       ::=  '(' ident (string | number)? Tree* ')'
//
// Comments starting with '//' are filtered by the scanner.

// parser is a recursive descent parser with one token of lookahead.
// Syntax errors are raised as panics of type parseError and recovered at the
// entry points.
type parser struct {
	file string
	src  string
	scan *LMScanner
	tok  token // lookahead
	prev token // most recently consumed token
	err  error // first scanner error
	isOp func(string) bool
}

type parseError struct {
	err *rules.Error
}

func newParser(file, src string) (*parser, error) {
	lm, err := Lexer()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create lexer")
	}
	sc, err := lm.Scanner(src)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create scanner")
	}
	p := &parser{file: file, src: src, scan: sc}
	sc.SetErrorHandler(func(e error) {
		if p.err == nil {
			p.err = e
		}
	})
	return p, nil
}

func (p *parser) recover(err *error) {
	if r := recover(); r != nil {
		pe, ok := r.(parseError)
		if !ok {
			panic(r)
		}
		tracer().Errorf(pe.err.Error())
		*err = pe.err
	}
}

func (p *parser) errorf(line int, format string, args ...interface{}) {
	panic(parseError{&rules.Error{File: p.file, Line: line, Msg: fmt.Sprintf(format, args...)}})
}

func (p *parser) next() token {
	p.prev = p.tok
	p.tok = p.scan.NextToken().(token)
	if p.err != nil {
		line := p.tok.line
		if se, ok := p.err.(*ScanError); ok {
			line = se.Line
		}
		p.errorf(line, "%v", p.err)
	}
	return p.prev
}

func (p *parser) expect(t rulegen.TokType) token {
	if p.tok.toktype != t {
		p.unexpected(tokenName(t))
	}
	return p.next()
}

func (p *parser) unexpected(wanted string) {
	p.errorf(p.tok.line, "expected %s, found %s", wanted, p.tok)
}

// --- Rules -----------------------------------------------------------------

// ParseRules reads the rules of a rule file. If s is not nil, identifiers which
// name an operator of s are read as operators even without members or payload.
//
// The first syntax error stops parsing and is returned as a *rules.Error.
func ParseRules(file, src string, s *schema.Schema) (rs []*pattern.Rule, err error) {
	p, err := newParser(file, src)
	if err != nil {
		return nil, err
	}
	if s != nil {
		p.isOp = s.Has
	}
	defer p.recover(&err)
	p.next()
	for p.tok.toktype != EOF {
		rs = append(rs, p.rule())
	}
	tracer().Infof("parsed %d rules from %s", len(rs), file)
	return rs, nil
}

// LoadRules reads and parses a rule file.
func LoadRules(path string, s *schema.Schema) ([]*pattern.Rule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read rule file %s", path)
	}
	return ParseRules(path, string(src), s)
}

func (p *parser) rule() *pattern.Rule {
	start := p.tok
	match := p.source(start, p.expr())
	p.expect(Arrow)
	rewrite := p.source(p.tok, p.expr())
	r := &pattern.Rule{Match: match, Rewrite: rewrite, File: p.file, Line: start.line}
	for p.clause(r) {
	}
	r.Resolve()
	tracer().Debugf("rule %s", r)
	return r
}

// source records the input text of an expression.
func (p *parser) source(start token, e *pattern.Expr) *pattern.Expr {
	span := start.span.Extend(p.prev.span)
	if !span.IsNull() && span.Len() > 0 && int(span.To()) <= len(p.src) {
		e.Source = strings.Join(strings.Fields(p.src[span.From():span.To()]), " ")
	}
	return e
}

// clause reads a guard or a binding. It returns false if the lookahead does not
// start a clause.
func (p *parser) clause(r *pattern.Rule) bool {
	if p.tok.toktype != Ident {
		return false
	}
	switch p.tok.lexeme {
	case kwWhere:
		kw := p.next()
		if r.Guard != nil {
			p.errorf(kw.line, "rule has more than one guard")
		}
		g := p.opaque()
		r.Guard = &g
	case kwLet, kwCheck:
		kw := p.next()
		name := p.expect(Ident)
		p.expect('=')
		r.Lets = append(r.Lets, pattern.Binding{
			Name:    name.lexeme,
			Expr:    p.opaque(),
			Checked: kw.lexeme == kwCheck,
			Line:    kw.line,
		})
	default:
		return false
	}
	return true
}

func (p *parser) opaque() pattern.Opaque {
	t := p.expect(Opaque)
	return pattern.NewOpaque(t.value.(string), t.line)
}

func (p *parser) expr() *pattern.Expr {
	id := p.expect(Ident)
	if p.tok.toktype == ':' {
		p.next()
		return p.operator(p.expect(Ident)).Named(id.lexeme)
	}
	if p.tok.toktype == '(' || p.tok.toktype == '[' || (p.isOp != nil && p.isOp(id.lexeme)) {
		return p.operator(id)
	}
	return pattern.Wildcard(id.lexeme).At(id.line)
}

func (p *parser) operator(op token) *pattern.Expr {
	e := pattern.Node(op.lexeme).At(op.line)
	if p.tok.toktype == '[' {
		p.next()
		switch p.tok.toktype {
		case String:
			e.WithLiteral(p.next().value.(string))
		case Number:
			e.WithLiteral(p.next().lexeme)
		case Ident:
			e.WithPayloadRef(p.next().lexeme)
		default:
			p.unexpected("payload")
		}
		p.expect(']')
	}
	if p.tok.toktype != '(' {
		return e
	}
	p.next()
	for p.tok.toktype != ')' {
		if len(e.Members) > 0 {
			p.expect(',')
		}
		var m *pattern.Expr
		if p.tok.toktype == Ellipsis {
			m = pattern.Wildcard("").At(p.next().line)
		} else {
			m = p.expr()
			if p.tok.toktype != Ellipsis {
				e.Members = append(e.Members, m)
				continue
			}
			p.next()
		}
		if e.HasSpread() {
			p.errorf(p.prev.line, "%s has more than one spread marker", e.Op)
		}
		e.Spread = len(e.Members)
		e.Members = append(e.Members, m)
	}
	p.expect(')')
	return e
}

// --- Trees -----------------------------------------------------------------

// ParseTree reads a tree s-expression and creates its nodes in t. Every node
// gets the location of its opening parenthesis. If src does not denote a valid
// tree for t's schema, ParseTree returns a *rules.Error; nodes created so far
// stay in t but are not reachable from any root.
func ParseTree(t *ast.Tree, file, src string) (v ast.NodeID, err error) {
	p, err := newParser(file, src)
	if err != nil {
		return ast.Nil, err
	}
	defer p.recover(&err)
	p.next()
	v = p.node(t)
	if p.tok.toktype != EOF {
		p.unexpected(tokenName(EOF))
	}
	return v, nil
}

func (p *parser) node(t *ast.Tree) ast.NodeID {
	if p.tok.toktype == Ident && p.tok.lexeme == kwNil {
		p.next()
		return ast.Nil
	}
	open := p.expect('(')
	op := p.expect(Ident)
	var payload string
	switch p.tok.toktype {
	case String:
		payload = p.next().value.(string)
	case Number:
		payload = p.next().lexeme
	}
	var kids []ast.NodeID
	for p.tok.toktype != ')' {
		if p.tok.toktype == EOF {
			p.unexpected("')'")
		}
		kids = append(kids, p.node(t))
	}
	p.expect(')')
	v, err := t.Make(op.lexeme, payload, kids)
	if err != nil {
		p.errorf(open.line, "%v", err)
	}
	t.SetLocation(v, rulegen.Location{File: p.file, Line: open.line, Col: open.col})
	return v
}
