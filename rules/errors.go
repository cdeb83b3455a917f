package rules

import (
	"fmt"

	"github.com/npillmayer/rulegen/pattern"
	"github.com/pkg/errors"
)

// Error is a compile-time error of a rule file. Line is the line of the
// offending rule.
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func ruleError(r *pattern.Rule, format string, args ...interface{}) *Error {
	return &Error{File: r.File, Line: r.Line, Msg: fmt.Sprintf(format, args...)}
}

// invalidRule converts the error of a failed rule validation. Parts of a rule
// without a position of their own are reported at the line of the rule.
func invalidRule(r *pattern.Rule, err error) *Error {
	e := &Error{File: r.File, Line: r.Line, Msg: err.Error()}
	var verr *pattern.ValidationError
	if errors.As(err, &verr) {
		e.Msg = verr.Msg
		if verr.Line > 0 {
			e.Line = verr.Line
		}
	}
	return e
}
