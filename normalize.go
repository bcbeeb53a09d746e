package xsdgen

import (
	"slices"
	"sort"
)

// normalizer rewrites resolved content into canonical particles: named
// groups expanded, same-kind groups flattened, empty groups dropped.
type normalizer struct {
	m *Model
	g *SchemaGraph
	// expanding holds the named groups whose expansion is in progress;
	// a reference to one of them stays a GroupRef.
	expanding []QName
	recursive map[string]bool
	pending   []QName
}

// Normalize canonicalizes the content of every resolved complex type and
// collects the recursive named groups into m.Groups.
func Normalize(m *Model) error {
	n := &normalizer{m: m, g: m.Graph, recursive: make(map[string]bool)}
	for _, key := range sortedKeys(m.Types) {
		rt := m.Types[key]
		p, err := n.root(rt.Content, "complexType "+rt.Name.String())
		if err != nil {
			return err
		}
		rt.Content = p
	}
	for len(n.pending) > 0 {
		q := n.pending[0]
		n.pending = n.pending[1:]
		gd, _ := n.g.Group(q)
		n.expanding = []QName{q}
		p, err := n.root(gd.Content, "group "+q.String())
		if err != nil {
			return err
		}
		m.Groups[q.String()] = &ResolvedGroup{Name: q, Doc: gd.Doc, Content: p}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// root normalizes the content of a type or group. Only here may an all
// group appear.
func (n *normalizer) root(p *Particle, decl string) (*Particle, error) {
	out, err := n.particle(p, decl)
	if err != nil || out == nil {
		return nil, err
	}
	if out.Kind == AllParticle && (out.Max > 1 || out.Max == Unbounded) {
		return nil, &UnsupportedConstructError{Construct: "xs:all with maxOccurs > 1", Decl: decl, Position: out.Pos}
	}
	return out, nil
}

// particle returns the canonical copy of p, or nil when p can never
// match anything.
func (n *normalizer) particle(p *Particle, decl string) (*Particle, error) {
	if p == nil || p.Max == 0 {
		return nil, nil
	}
	switch p.Kind {
	case ElementRef:
		out := &Particle{Kind: ElementRef, Min: p.Min, Max: p.Max, Element: p.Element, Pos: p.Pos}
		if p.Element == nil {
			out.Ref = p.Ref
			out.Element, _ = n.m.Element(p.Ref)
			out.Subst = n.m.substitutes(p.Ref)
		}
		return out, nil

	case WildcardParticle:
		return &Particle{Kind: WildcardParticle, Min: p.Min, Max: p.Max, Wildcard: p.Wildcard, Pos: p.Pos}, nil

	case GroupRef:
		return n.groupRef(p, decl)

	case SequenceParticle, ChoiceParticle, AllParticle:
		out := &Particle{Kind: p.Kind, Min: p.Min, Max: p.Max, Pos: p.Pos}
		for _, c := range p.Children {
			nc, err := n.particle(c, decl)
			if err != nil {
				return nil, err
			}
			if nc == nil {
				continue
			}
			if nc.Kind == p.Kind && p.Kind != AllParticle && nc.Min == 1 && nc.Max == 1 {
				out.Children = append(out.Children, nc.Children...)
				continue
			}
			out.Children = append(out.Children, nc)
		}
		if len(out.Children) == 0 {
			return nil, nil
		}
		if len(out.Children) == 1 {
			if single, ok := withOccurs(out.Children[0], out.Min, out.Max); ok {
				return single, n.checkAll(single, decl)
			}
		}
		return out, n.checkAll(out, decl)
	}
	return nil, nil
}

// checkAll enforces that all groups only hold element and wildcard
// particles, and that no other group holds an all group.
func (n *normalizer) checkAll(p *Particle, decl string) error {
	for _, c := range p.Children {
		switch {
		case p.Kind == AllParticle && c.Kind != ElementRef && c.Kind != WildcardParticle:
			return &UnsupportedConstructError{Construct: "xs:" + c.Kind.String() + " inside xs:all", Decl: decl, Position: c.Pos}
		case p.Kind != AllParticle && c.Kind == AllParticle:
			return &UnsupportedConstructError{Construct: "xs:all nested in xs:" + p.Kind.String(), Decl: decl, Position: c.Pos}
		}
	}
	return nil
}

// groupRef expands a named group in place unless it is already being
// expanded, in which case the reference is kept and the group is
// recorded as recursive.
func (n *normalizer) groupRef(p *Particle, decl string) (*Particle, error) {
	if slices.Contains(n.expanding, p.Ref) {
		key := p.Ref.String()
		if !n.recursive[key] {
			n.recursive[key] = true
			n.pending = append(n.pending, p.Ref)
		}
		return &Particle{Kind: GroupRef, Min: p.Min, Max: p.Max, Ref: p.Ref, Pos: p.Pos}, nil
	}
	gd, _ := n.g.Group(p.Ref)
	n.expanding = append(n.expanding, p.Ref)
	inner, err := n.particle(gd.Content, decl)
	n.expanding = n.expanding[:len(n.expanding)-1]
	if err != nil || inner == nil {
		return nil, err
	}
	if out, ok := withOccurs(inner, p.Min, p.Max); ok {
		return out, nil
	}
	wrap := &Particle{Kind: SequenceParticle, Min: p.Min, Max: p.Max, Children: []*Particle{inner}, Pos: p.Pos}
	return wrap, n.checkAll(wrap, decl)
}

// withOccurs applies the occurrence bounds of a group to its only
// child when the product is expressible as one pair of bounds.
func withOccurs(p *Particle, min, max int) (*Particle, bool) {
	switch {
	case min == 1 && max == 1:
		return p, true
	case p.Min == 1 && p.Max == 1:
		out := *p
		out.Min, out.Max = min, max
		return &out, true
	}
	return nil, false
}
