package ruleslang

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/npillmayer/rulegen"
	"github.com/timtadh/lexmachine"
)

// Token types of the rule language. One-char literals use their character
// value as token type.
const (
	EOF rulegen.TokType = -(iota + 1)
	Ident
	String
	Number
	Opaque
	Arrow
	Ellipsis
)

// The tokens representing literal lexemes
var literals = []string{"(", ")", "[", "]", ",", ":", "=", "->", "..."}

// All of the pattern tokens
var tokens = []string{"ID", "STRING", "NUM", "OPAQUE"}

// Words with a meaning in clause position. They are scanned as identifiers.
const (
	kwWhere = "where"
	kwLet   = "let"
	kwCheck = "check"
	kwNil   = "nil"
)

// tokenIds will be set in initTokens()
var tokenIds map[string]int // A map from the token names to their token types

var initOnce sync.Once // monitors one-time initialization
func initTokens() {
	initOnce.Do(func() {
		tokenIds = make(map[string]int, len(tokens)+len(literals))
		tokenIds["ID"] = int(Ident)
		tokenIds["STRING"] = int(String)
		tokenIds["NUM"] = int(Number)
		tokenIds["OPAQUE"] = int(Opaque)
		tokenIds["->"] = int(Arrow)
		tokenIds["..."] = int(Ellipsis)
		for _, lit := range literals {
			if len(lit) == 1 {
				tokenIds[lit] = int(lit[0])
			}
		}
	})
}

// Token returns a token name and its type.
func Token(t string) (string, rulegen.TokType) {
	initTokens()
	id, ok := tokenIds[t]
	if !ok {
		panic(fmt.Errorf("unknown token: %s", t))
	}
	return t, rulegen.TokType(id)
}

var adapter *LMAdapter
var adapterErr error
var lexerOnce sync.Once

// Lexer returns the lexmachine lexer for the rule language. The DFA is compiled
// once.
func Lexer() (*LMAdapter, error) {
	lexerOnce.Do(func() {
		initTokens()
		init := func(lexer *lexmachine.Lexer) {
			lexer.Add([]byte(`//[^\n]*`), Skip) // skip comments
			lexer.Add([]byte(`\"([^"\\]|\\.)*\"`), makeValueAction(int(String), unquote))
			lexer.Add([]byte("`[^`]*`"), makeValueAction(int(Opaque), unbacktick))
			lexer.Add([]byte(`([a-z]|[A-Z]|_)([a-z]|[A-Z]|[0-9]|_)*`), makeAction(int(Ident)))
			lexer.Add([]byte(`\-?[0-9]+(\.[0-9]+)?`), makeAction(int(Number)))
			lexer.Add([]byte(`( |\t|\n|\r)+`), Skip)
		}
		adapter, adapterErr = NewLMAdapter(init, literals, tokenIds)
	})
	return adapter, adapterErr
}

func unquote(lexeme string) interface{} {
	if s, err := strconv.Unquote(lexeme); err == nil {
		return s
	}
	return lexeme[1 : len(lexeme)-1]
}

func unbacktick(lexeme string) interface{} {
	return strings.TrimSpace(lexeme[1 : len(lexeme)-1])
}

// tokenName is used for diagnostics.
func tokenName(t rulegen.TokType) string {
	switch t {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Opaque:
		return "`expression`"
	case Arrow:
		return "'->'"
	case Ellipsis:
		return "'...'"
	}
	return fmt.Sprintf("'%c'", rune(t))
}
