package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/derive/internal/doc"
)

// CycleWarning reports fields of one shape that read each other.
//
// A single Apply never converges such fields: each only sees the other's
// value from before the pass, so the caller has to apply again. Cycles are
// warnings, not errors, because mutual recomputation is often intended.
type CycleWarning struct {
	Shape   string   `json:"shape"`   // Dotted location of the shape node
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles finds fields that depend on each other within every shape
// of a rule spec. Dependencies are the paths named by changed predicates,
// ref nodes, and max/min refs; scripts are opaque and contribute none.
//
// The algorithm:
//  1. For each shape, build a field → fields-it-reads graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
func AnalyzeCycles(v cue.Value) ([]CycleWarning, error) {
	root := v.LookupPath(cue.ParsePath(RulesField))
	if !root.Exists() {
		return nil, &CompileError{Field: RulesField, Message: "rules is required", Pos: v.Pos()}
	}
	var warnings []CycleWarning
	if err := walkShapes(RulesField, root, &warnings); err != nil {
		return nil, err
	}
	return warnings, nil
}

// walkShapes visits every shape node below v.
func walkShapes(field string, v cue.Value, warnings *[]CycleWarning) error {
	if v.IncompleteKind() != cue.StructKind {
		return nil
	}
	keys, err := labels(v)
	if err != nil {
		return err
	}
	for _, k := range keys {
		body := v.LookupPath(cue.MakePath(cue.Str(k)))
		at := field + "." + k
		switch k {
		case "shape":
			graph, err := shapeGraph(body)
			if err != nil {
				return err
			}
			for _, scc := range tarjanSCC(graph) {
				if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
					*warnings = append(*warnings, cycleSCCToWarning(at, scc, graph))
				}
			}
			iter, err := body.Fields()
			if err != nil {
				return formatCUEError(err)
			}
			for iter.Next() {
				if err := walkShapes(at+"."+iter.Label(), iter.Value(), warnings); err != nil {
					return err
				}
			}
		case "scope", "items", "then":
			if err := walkShapes(at, body, warnings); err != nil {
				return err
			}
		case "chain":
			list, err := body.List()
			if err != nil {
				return formatCUEError(err)
			}
			for i := 0; list.Next(); i++ {
				if err := walkShapes(fmt.Sprintf("%s[%d]", at, i), list.Value(), warnings); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// dependencyGraph maps a field to the sibling fields it reads.
type dependencyGraph map[string][]string

func shapeGraph(shape cue.Value) (dependencyGraph, error) {
	names, err := labels(shape)
	if err != nil {
		return nil, err
	}
	siblings := mapset.NewThreadUnsafeSet(names...)

	graph := make(dependencyGraph, len(names))
	for _, name := range names {
		reads := mapset.NewThreadUnsafeSet[string]()
		collectReads(shape.LookupPath(cue.MakePath(cue.Str(name))), reads)

		deps := reads.Intersect(siblings).ToSlice()
		slices.Sort(deps)
		graph[name] = deps
	}
	return graph, nil
}

// collectReads adds the first segment of every path a node reads from its
// ambient document. Scope and items narrow the document, so reads below
// them belong to another record and are skipped.
func collectReads(v cue.Value, reads mapset.Set[string]) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		if s, err := v.String(); err == nil {
			if p := doc.ParsePath(s); len(p) > 0 {
				reads.Add(p[0])
			}
		}
		return
	case cue.ListKind:
		if list, err := v.List(); err == nil {
			for list.Next() {
				collectReads(list.Value(), reads)
			}
		}
		return
	case cue.StructKind:
	default:
		return
	}

	iter, err := v.Fields()
	if err != nil {
		return
	}
	for iter.Next() {
		switch iter.Label() {
		case "changed", "ref":
			collectReads(iter.Value(), reads)
		case "max", "min":
			collectReads(iter.Value().LookupPath(cue.ParsePath("ref")), reads)
		case "when", "then", "any", "all", "not", "chain":
			collectReads(iter.Value(), reads)
		case "shape":
			if fields, err := iter.Value().Fields(); err == nil {
				for fields.Next() {
					collectReads(fields.Value(), reads)
				}
			}
		}
	}
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the output is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(shape string, scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		field := scc[0]
		return CycleWarning{
			Shape:   shape,
			Path:    []string{field, field},
			Message: fmt.Sprintf("field %s reads itself", field),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Shape:   shape,
		Path:    path,
		Message: fmt.Sprintf("fields read each other and need repeated application: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	members := mapset.NewThreadUnsafeSet(scc...)
	visited := mapset.NewThreadUnsafeSet[string]()

	start := scc[0]
	current := start
	path := []string{current}
	for {
		visited.Add(current)

		var next string
		for _, neighbor := range graph[current] {
			if members.Contains(neighbor) && (!visited.Contains(neighbor) || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
