/*
Package schema describes the shape of every node kind of the tree IR.

A node kind (operator) has an ordered list of fixed fields, some of them possibly
optional, followed by at most one variadic range of children. The rule compiler
only ever queries the schema; it never changes it after loading.

Schemas are loaded from YAML (or JSON) files:

    version: 1.0.0
    wrappers:
      op_conv_int: expr
    ops:
      op_add:
        fields: [lhs, rhs]
      op_if:
        fields: [cond, true_case, {name: false_case, optional: true}]
      op_func_call:
        range: {name: args, min: 0}

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package schema

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.schema'.
func tracer() tracing.Trace {
	return tracing.Select("rulegen.schema")
}
