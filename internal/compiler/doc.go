// Package compiler turns rule specs written in CUE into rule trees.
//
// A rule spec is a CUE struct with a "rules" field holding one node:
//
//	rules: shape: {
//		total: {when: changed: "price", then: script: "doc.price * doc.qty"}
//		lines: items: scope: shape: sum: ref: "qty"
//	}
//
// Node forms: const, ref, script, max, min, when/then, shape, scope, items,
// chain. Any node may also set log: true to report its changes to the
// compiler's logger. Predicate forms: changed (a dotted path or a list of
// them), any, all, not.
package compiler
