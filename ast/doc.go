/*
Package ast implements the tree intermediate representation rewrite rules operate on.

Nodes live in an arena and are addressed by stable indices (NodeID). Every node
has an operator tag, a string payload, the fixed fields and the variadic range
its operator's schema entry declares, and a source location.

Ownership

Every node but the root of a tree has exactly one owner. Rewrites keep this
invariant by cloning a subtree whenever it would otherwise be referenced from two
places. Nodes which are not needed any more are retired: their slot goes to a
free list and will be handed out again by the next allocation. A retired node
must not be referenced again.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package ast

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.ast'.
func tracer() tracing.Trace {
	return tracing.Select("rulegen.ast")
}
