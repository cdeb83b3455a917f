/*
Package rewrite is the runtime support for compiled rewrite rules.

A rewrite pass walks the body of a function post-order. At every node it drives a
Dispatcher to a fixpoint: the dispatcher either rewrites the node or reports it
unchanged, and rewritten nodes are handed to the dispatcher again. A rule set
containing a cycle would never settle, therefore the number of consecutive
changes at a single node is capped by MaxAttempts.

Dispatchers come in two flavours: rules.Engine interprets a compiled rule
program, and package codegen emits Go source for a pass type with the same
contract.

All tree construction and retirement during a pass goes through a Context,
which is exclusively owned by the pass.

Configuration

If the global configuration flag "panic-on-rewrite-cycle" is set (see
schuko/gconf), a rewrite cycle panics instead of returning an error.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package rewrite

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.rewrite'.
func tracer() tracing.Trace {
	return tracing.Select("rulegen.rewrite")
}
