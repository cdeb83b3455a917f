/*
Command rulegen compiles rule files into Go rewrite passes.

Usage:

    rulegen generate RULES... SCHEMA [--out DIR] [--package NAME] [--watch]
    rulegen check RULES... SCHEMA

generate writes two files per rule file, <name>_rules.go and
<name>_rules_impl.go. Rule files are compiled concurrently; if any of them has
an error, no file is written. Outputs whose fingerprint matches the rules and
schema they were generated from are left untouched. With --watch, rulegen keeps
running and regenerates whenever one of its inputs changes.

check compiles the rule files without writing anything.

Flags may also be given in a configuration file (.rulegen.yaml in the current
directory or $HOME, or the file named by --config) or as environment variables
with prefix RULEGEN, e.g. RULEGEN_PACKAGE.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/
package main

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'rulegen.cli'.
func tracer() tracing.Trace {
	return tracing.Select("rulegen.cli")
}
