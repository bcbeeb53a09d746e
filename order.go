package xsdgen

import (
	"cmp"
	"slices"
)

// DeclRef names a declaration placed by the orderer.
type DeclRef struct {
	Kind DeclKind
	Name QName
}

func (r DeclRef) String() string {
	return r.Kind.String() + " " + r.Name.String()
}

// Component is a strongly connected set of declarations. Recursive
// components reach themselves through their content and need an
// indirection at every containment point inside the component.
type Component struct {
	Decls     []DeclRef
	Recursive bool
}

// Order places every type and recursive group of m so that each
// component follows the components it depends on.
func Order(m *Model) []Component {
	var nodes []DeclRef
	for _, key := range sortedKeys(m.Types) {
		nodes = append(nodes, DeclRef{Kind: TypeKind, Name: m.Types[key].Name})
	}
	for _, key := range sortedKeys(m.Simple) {
		nodes = append(nodes, DeclRef{Kind: TypeKind, Name: m.Simple[key].Name})
	}
	for _, key := range sortedKeys(m.Groups) {
		nodes = append(nodes, DeclRef{Kind: GroupKind, Name: m.Groups[key].Name})
	}
	slices.SortFunc(nodes, func(a, b DeclRef) int {
		return cmp.Compare(a.String(), b.String())
	})

	edges := func(r DeclRef) []DeclRef { return m.dependencies(r) }
	var out []Component
	for _, scc := range StronglyConnected(nodes, DeclRef.String, edges) {
		slices.SortFunc(scc, func(a, b DeclRef) int {
			return cmp.Compare(a.String(), b.String())
		})
		c := Component{Decls: scc, Recursive: len(scc) > 1}
		if !c.Recursive {
			c.Recursive = slices.Contains(edges(scc[0]), scc[0])
		}
		out = append(out, c)
	}
	return out
}

// dependencies lists the declarations r refers to, in name order.
func (m *Model) dependencies(r DeclRef) []DeclRef {
	seen := make(map[string]bool)
	var deps []DeclRef
	addType := func(q QName) {
		if q.IsZero() || isBuiltin(q) {
			return
		}
		d := DeclRef{Kind: TypeKind, Name: q}
		if !seen[d.String()] {
			seen[d.String()] = true
			deps = append(deps, d)
		}
	}
	var walk func(p *Particle)
	walk = func(p *Particle) {
		if p == nil {
			return
		}
		switch p.Kind {
		case ElementRef:
			addType(p.Element.Type)
			for _, e := range p.Subst {
				addType(e.Type)
			}
		case GroupRef:
			d := DeclRef{Kind: GroupKind, Name: p.Ref}
			if !seen[d.String()] {
				seen[d.String()] = true
				deps = append(deps, d)
			}
		}
		for _, c := range p.Children {
			walk(c)
		}
	}

	key := r.Name.String()
	switch {
	case r.Kind == GroupKind:
		walk(m.Groups[key].Content)
	case m.Types[key] != nil:
		rt := m.Types[key]
		walk(rt.Content)
		for _, a := range rt.Attrs {
			addType(a.Type)
		}
		addType(rt.Simple)
	case m.Simple[key] != nil:
		rs := m.Simple[key]
		addType(rs.Item)
		for _, mem := range rs.Members {
			addType(mem)
		}
	}
	slices.SortFunc(deps, func(a, b DeclRef) int {
		return cmp.Compare(a.String(), b.String())
	})
	return deps
}

// StronglyConnected returns the strongly connected components of the
// graph over nodes, each component after every component it can reach.
// Nodes are visited in the given order, so the result is deterministic
// for a deterministic children function.
func StronglyConnected[Node any, Key comparable](
	nodes []Node,
	key func(Node) Key,
	children func(Node) []Node,
) [][]Node {
	type mark struct {
		index, low int
		onStack    bool
	}
	marks := make(map[Key]*mark)
	var stack []Node
	var out [][]Node
	next := 0

	var visit func(v Node) *mark
	visit = func(v Node) *mark {
		mv := &mark{index: next, low: next, onStack: true}
		marks[key(v)] = mv
		next++
		stack = append(stack, v)

		for _, w := range children(v) {
			mw, seen := marks[key(w)]
			switch {
			case !seen:
				mw = visit(w)
				mv.low = min(mv.low, mw.low)
			case mw.onStack:
				mv.low = min(mv.low, mw.index)
			}
		}

		if mv.low == mv.index {
			var scc []Node
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				marks[key(w)].onStack = false
				scc = append(scc, w)
				if key(w) == key(v) {
					break
				}
			}
			slices.Reverse(scc)
			out = append(out, scc)
		}
		return mv
	}

	for _, v := range nodes {
		if _, seen := marks[key(v)]; !seen {
			visit(v)
		}
	}
	return out
}
