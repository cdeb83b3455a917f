package codegen

import (
	"bytes"
	"fmt"
	"strings"
)

// Printer accumulates generated text. Lines are indented in fixed steps and may
// be annotated with the line of the rule file they originate from.
type Printer struct {
	Indent     string // one step of indentation
	Annotation string // prefix of line annotations, e.g. the rule file name
	buf        bytes.Buffer
	level      int
	lines      int
}

// NewPrinter creates a printer indenting with tabs.
func NewPrinter(annotation string) *Printer {
	return &Printer{Indent: "\t", Annotation: annotation}
}

// In increases the indentation level.
func (p *Printer) In() *Printer {
	p.level++
	return p
}

// Out decreases the indentation level.
func (p *Printer) Out() *Printer {
	if p.level == 0 {
		panic("printer: unbalanced indentation")
	}
	p.level--
	return p
}

// Printf writes an indented line.
func (p *Printer) Printf(format string, args ...interface{}) {
	p.WriteLine(fmt.Sprintf(format, args...), 0)
}

// WriteLine writes an indented line. If line is positive, the line is annotated
// with a reference to the rule file.
func (p *Printer) WriteLine(s string, line int) {
	if s != "" {
		p.buf.WriteString(strings.Repeat(p.Indent, p.level))
		p.buf.WriteString(s)
		if line > 0 {
			fmt.Fprintf(&p.buf, " // %s:%d", p.Annotation, line)
		}
	}
	p.buf.WriteByte('\n')
	p.lines++
}

// Blank writes an empty line.
func (p *Printer) Blank() {
	p.WriteLine("", 0)
}

// Comment writes text as a block of line comments.
func (p *Printer) Comment(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if l == "" {
			p.WriteLine("//", 0)
		} else {
			p.WriteLine("// "+l, 0)
		}
	}
}

// Lines returns the number of lines written so far.
func (p *Printer) Lines() int {
	return p.lines
}

// Bytes returns the accumulated text.
func (p *Printer) Bytes() []byte {
	return p.buf.Bytes()
}

func (p *Printer) String() string {
	return p.buf.String()
}
