/*
Package ruleslang reads rule files and tree s-expressions.

A rule file is a sequence of rules. Every rule has a match side, an arrow and a
rewrite side, optionally followed by a guard and auxiliary bindings:

    // comment
    op_add(x, op_int_const["0"]) -> x
    op_func_call["strlen"](s:op_string) -> op_int_const[n]
        where `len(s) > 0`
        let n = `lenOf(s)`
        check ok = `ok(s)`
    op_seq(xs...) -> op_block(xs...)

Identifiers followed by '(' or '[', or known to the schema, denote operators.
Other identifiers are wildcard captures; '_' matches anything without binding it.
'name:op(...)' binds a typed node. A trailing '...' marks the spread member of a
variadic operator. Text between backticks is passed through unchanged.

Trees are written as s-expressions, with nil for an absent optional field:

    (op_add (op_var "a") (op_int_const "0"))

The scanner is built on lexmachine.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package ruleslang

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.lang'.
func tracer() tracing.Trace {
	return tracing.Select("rulegen.lang")
}
