/*
Package rulegen compiles declarative tree-rewrite rules into matcher/rewriters
for a tagged tree intermediate representation.

Rules are written in a small pattern language, one rule per entry:

    op_add(x, op_int_const["0"]) -> x

Each rule consists of a pattern, a replacement, an optional guard and optional
auxiliary bindings. Package structure is as follows:

■ schema: Package schema describes the arity of every node kind (fixed fields and
an optional variadic range) and loads it from a schema file.

■ pattern: Package pattern holds the pattern expression model shared by the
match side and the replacement side of rules.

■ ast: Package ast implements an arena-backed tree of tagged nodes, with
retirement of unused nodes, cloning and location propagation.

■ rules: Package rules groups rules by their root operator and compiles them into
matching and rewriting steps. It contains an engine to execute them in-process.

■ rewrite: Package rewrite is the runtime used by the engine and by generated code:
an explicit context and the fixpoint driver.

■ codegen: Package codegen emits compiled rule files as Go source.

■ ruleslang: Package ruleslang parses rule files and tree s-expressions.

The base package contains data types which are used throughout all the other packages.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package rulegen
