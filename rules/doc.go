/*
Package rules compiles rewrite rules into a program and executes it.

A rule file is a list of rules. Compile groups the rules by the operator at the
root of their patterns, keeping the order of the file within a group, and
compiles every rule into a Block: a sequence of matching steps, optionally a
guard and auxiliary bindings, and a commit which builds the replacement.

Matching

Matching steps load children of the matched node into registers and check
them: operator tags, literal payloads, the number of elements of variadic
ranges, and equality of repeated capture names. The first failing step aborts
the attempt of the current rule and the next rule of the group is tried. Not
matching is not an error.

Committing

If the replacement has the same root operator as the pattern and the operator
has a fixed arity, the matched node is updated in place. Otherwise a new tree is
built bottom up. A captured subtree is re-used on its first reference and
cloned on every other one, so that no node is owned twice. Nodes the rule
matched without naming them, and which are of a reclaimable kind, are retired
for re-use, as are nodes matched with the discard name "_".

Programs are executed by an Engine, or translated to Go source by package
codegen.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package rules

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.rules'.
func tracer() tracing.Trace {
	return tracing.Select("rulegen.rules")
}
