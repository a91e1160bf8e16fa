// Package graph orders package bases so that dependencies are built first.
package graph

import (
	"fmt"
	"strings"

	"github.com/ralt/aurbuild/internal/srcinfo"
	"github.com/ralt/aurbuild/internal/version"
	"github.com/sirupsen/logrus"
)

// dependencyKeys are read from the base only. Dependencies between the
// packages of a split base are not modelled.
var dependencyKeys = []string{"depends", "makedepends", "checkdepends"}

// CycleError reports a dependency cycle. Path starts and ends with the same
// package base.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// candidate is a package base offering a name at some version.
type candidate struct {
	node    int
	version string
}

// Graph is the dependency graph over a universe of package bases. Nodes are
// indices into bases.
type Graph struct {
	bases    []*srcinfo.Base
	index    map[string]int
	names    map[string]candidate
	provides map[string][]candidate
	edges    [][]int
}

// New indexes bases and resolves their dependencies. carch selects the
// architecture-specific dependency and provides arrays.
func New(bases []*srcinfo.Base, carch string) (*Graph, error) {
	g := &Graph{
		bases:    bases,
		index:    make(map[string]int, len(bases)),
		names:    make(map[string]candidate),
		provides: make(map[string][]candidate),
		edges:    make([][]int, len(bases)),
	}

	for i, base := range bases {
		if _, ok := g.index[base.Name]; ok {
			return nil, fmt.Errorf("package base %s declared twice", base.Name)
		}
		g.index[base.Name] = i

		for _, pkg := range base.Packages() {
			if other, ok := g.names[pkg.Name]; ok {
				return nil, fmt.Errorf("package %s is declared by both %s and %s", pkg.Name, bases[other.node].Name, base.Name)
			}
			g.names[pkg.Name] = candidate{node: i, version: base.Version()}

			for _, key := range []string{"provides", "provides_" + carch} {
				for _, p := range pkg.Get(key) {
					name, ver, found := strings.Cut(p, "=")
					if !found || ver == "" {
						ver = base.Pkgver
					}
					g.provides[name] = append(g.provides[name], candidate{node: i, version: ver})
				}
			}
		}
	}

	for i, base := range bases {
		seen := map[int]bool{i: true}
		for _, c := range Requirements(base, carch) {
			for _, node := range g.resolve(c) {
				if !seen[node] {
					seen[node] = true
					g.edges[i] = append(g.edges[i], node)
				}
			}
		}
	}

	return g, nil
}

// Requirements returns the depends, makedepends and checkdepends of base,
// including the ones specific to carch.
func Requirements(base *srcinfo.Base, carch string) []version.Constraint {
	var out []version.Constraint
	for _, key := range dependencyKeys {
		for _, dep := range append(base.Get(key), base.Get(key+"_"+carch)...) {
			out = append(out, version.ParseConstraint(dep))
		}
	}
	return out
}

// resolve returns the nodes satisfying c, matching package names before
// provides entries. Names outside the universe resolve to nothing.
func (g *Graph) resolve(c version.Constraint) []int {
	var candidates []candidate
	if direct, ok := g.names[c.Name]; ok {
		candidates = []candidate{direct}
	} else {
		candidates = g.provides[c.Name]
	}

	var nodes []int
	for _, cand := range candidates {
		if !c.Satisfied(cand.version) {
			logrus.Debugf("%s %s does not satisfy %s", g.bases[cand.node].Name, cand.version, c)
			continue
		}
		nodes = append(nodes, cand.node)
	}
	return nodes
}

// Dependencies returns the package bases pkgbase directly depends on.
func (g *Graph) Dependencies(pkgbase string) []string {
	i, ok := g.index[pkgbase]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(g.edges[i]))
	for _, j := range g.edges[i] {
		deps = append(deps, g.bases[j].Name)
	}
	return deps
}

const (
	white = iota
	grey
	black
)

type frame struct {
	node int
	next int
}

// Order returns the package bases named in working so that every base comes
// after the bases it depends on. Bases outside working are traversed, which
// keeps transitive dependencies in order, but are not returned.
func (g *Graph) Order(working []string) ([]*srcinfo.Base, error) {
	selected := make([]bool, len(g.bases))
	roots := make([]int, 0, len(working))
	for _, name := range working {
		i, ok := g.index[name]
		if !ok {
			return nil, fmt.Errorf("unknown package base %s", name)
		}
		selected[i] = true
		roots = append(roots, i)
	}

	color := make([]int, len(g.bases))
	order := make([]*srcinfo.Base, 0, len(roots))
	var stack []frame

	for _, root := range roots {
		if color[root] != white {
			continue
		}
		color[root] = grey
		stack = append(stack, frame{node: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(g.edges[top.node]) {
				dep := g.edges[top.node][top.next]
				top.next++

				switch color[dep] {
				case white:
					color[dep] = grey
					stack = append(stack, frame{node: dep})
				case grey:
					return nil, g.cycle(stack, dep)
				}
				continue
			}

			color[top.node] = black
			if selected[top.node] {
				order = append(order, g.bases[top.node])
			}
			stack = stack[:len(stack)-1]
		}
	}

	return order, nil
}

// cycle extracts the path from the first occurrence of node on the stack.
func (g *Graph) cycle(stack []frame, node int) *CycleError {
	var path []string
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].node == node {
			for _, f := range stack[i:] {
				path = append(path, g.bases[f.node].Name)
			}
			break
		}
	}
	return &CycleError{Path: append(path, g.bases[node].Name)}
}
