/*
Command rrepl is an interactive sandbox for rewrite rules.

rrepl loads a rule file and a schema, then reads tree s-expressions from the
command line and prints them after rewriting:

    rrepl -rules arith.rules -schema schema.yaml
    rrepl> (op_add (op_var "a") (op_int_const "0"))
    (op_var "a")

Rules with guards or bindings cannot be evaluated interactively and are
skipped. Lines starting with ':' are commands; enter :help for a list.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package main

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.repl'
func tracer() tracing.Trace {
	return tracing.Select("rulegen.repl")
}
