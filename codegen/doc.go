/*
Package codegen translates compiled rule programs to Go source.

For a rule file "arith.rules" two units are generated. The declaration unit
exports

    var RunArithRulesPass rewrite.PassFunc

and the implementation unit holds an unexported pass type with a Dispatch
method switching over the root operators of the rules, one method per
operator trying the rules in file order, and one method per rule. Rule methods
carry a transcript of the rule and line annotations referring back to the rule
file. Their behaviour is identical to the execution of the program by a
rules.Engine.

Guards and auxiliary bindings are copied verbatim into the generated code.
They may refer to captures by name, to the rewrite context as ctx and to the
tree as t.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package codegen

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.codegen'.
func tracer() tracing.Trace {
	return tracing.Select("rulegen.codegen")
}
