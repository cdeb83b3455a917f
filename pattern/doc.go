/*
Package pattern holds the pattern expression model of rewrite rules.

The same tree shape is used for both sides of a rule. On the match side an
expression tests the shape of a node and captures sub-nodes; on the rewrite side
it describes the replacement to construct.

    op_add(x, op_int_const["0"]) -> x

Here the match side is an expression with operator op_add and two members, a
wildcard named x and a typed member op_int_const with literal payload "0". The
rewrite side is a single wildcard, referencing the capture x.

Guards and auxiliary bindings are opaque: they carry target-language text which
is never interpreted, only scanned for references to bound names.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package pattern
