package ast

import (
	"strconv"
	"strings"

	"github.com/npillmayer/schuko/tracing"
)

// String renders the subtree rooted at v as an s-expression:
//
//     (op_add (op_var "a") (op_int_const "0"))
//
// Absent optional fields are rendered as nil.
func (t *Tree) String(v NodeID) string {
	var b strings.Builder
	t.write(&b, v)
	return b.String()
}

func (t *Tree) write(b *strings.Builder, v NodeID) {
	if v == Nil {
		b.WriteString("nil")
		return
	}
	if t.IsRetired(v) {
		b.WriteString("<retired>")
		return
	}
	b.WriteByte('(')
	b.WriteString(t.Op(v))
	if p := t.Payload(v); p != "" {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(p))
	}
	for _, c := range t.Children(v) {
		b.WriteByte(' ')
		t.write(b, c)
	}
	b.WriteByte(')')
}

// Dump traces a subtree, one node per line, with indentation.
func (t *Tree) Dump(v NodeID, level tracing.TraceLevel) {
	if tracer().GetTraceLevel() < level {
		return
	}
	t.dump(v, 0, level)
}

func (t *Tree) dump(v NodeID, indent int, level tracing.TraceLevel) {
	pad := strings.Repeat("  ", indent)
	var line string
	if v == Nil {
		line = pad + "nil"
	} else {
		line = pad + t.Op(v)
		if p := t.Payload(v); p != "" {
			line += " " + strconv.Quote(p)
		}
		line += "  #" + strconv.Itoa(int(v)) + " @" + t.Location(v).String()
	}
	switch level {
	case tracing.LevelDebug:
		tracer().Debugf(line)
	case tracing.LevelInfo:
		tracer().Infof(line)
	default:
		tracer().Errorf(line)
	}
	if v == Nil {
		return
	}
	for _, c := range t.Children(v) {
		t.dump(c, indent+1, level)
	}
}
