package xsdgen

import (
	"log/slog"
	"sort"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

// Model is the resolved form of a schema graph. Every reference in it
// names an existing declaration; complex types carry their flattened
// attribute sets and canonical content.
type Model struct {
	Graph *SchemaGraph
	// Elements are the global elements in name order, with element types
	// inherited from substitution group heads filled in.
	Elements []*ElementDecl
	Types    map[string]*ResolvedType
	Simple   map[string]*ResolvedSimple
	// Groups holds the named model groups that refer to themselves and
	// are therefore kept as GroupRef particles.
	Groups map[string]*ResolvedGroup

	elements map[string]*ElementDecl
	members  map[string][]*ElementDecl
}

// ResolvedType is a complex type after derivation and normalization.
type ResolvedType struct {
	Name       QName
	Anonymous  bool
	Doc        string
	Attrs      []*ResolvedAttr
	AnyAttr    *xsdrt.Wildcard
	Content    *Particle
	Simple     QName
	Mixed      bool
	Abstract   bool
	Derivation Derivation
	Base       QName
	// Unverified is set on a restriction whose content could not be
	// shown to be reachable in its base.
	Unverified bool
}

// ResolvedAttr is an attribute use with references and groups expanded.
type ResolvedAttr struct {
	Name       QName
	Type       QName
	Required   bool
	Default    string
	HasDefault bool
	Fixed      string
	HasFixed   bool
}

// ResolvedSimple is a simple type with its restriction chain flattened
// onto a builtin base.
type ResolvedSimple struct {
	Name      QName
	Anonymous bool
	Doc       string
	Variety   xsdrt.Variety
	// Base is the local name of the builtin an atomic type restricts.
	Base    string
	Facets  []xsdrt.Facet
	Item    QName
	Members []QName
}

// ResolvedGroup is a recursive model group.
type ResolvedGroup struct {
	Name    QName
	Doc     string
	Content *Particle
}

// Element returns the resolved global element name.
func (m *Model) Element(name QName) (*ElementDecl, bool) {
	e, ok := m.elements[name.String()]
	return e, ok
}

func isBuiltin(q QName) bool {
	return q.Namespace == XSDNamespace && (q.Local == "anyType" || xsdrt.IsBuiltinType(q.Local))
}

// resolver checks that every reference in a frozen graph names a
// declaration of the right kind.
type resolver struct {
	g      *SchemaGraph
	logger *slog.Logger
}

// Resolve checks every reference of g and returns a model with global
// element types settled. Derivation and normalization fill in the rest.
func Resolve(g *SchemaGraph, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &resolver{g: g, logger: logger}
	if err := r.check(); err != nil {
		return nil, err
	}
	m := &Model{
		Graph:    g,
		Types:    make(map[string]*ResolvedType),
		Simple:   make(map[string]*ResolvedSimple),
		Groups:   make(map[string]*ResolvedGroup),
		elements: make(map[string]*ElementDecl),
		members:  make(map[string][]*ElementDecl),
	}
	for _, e := range g.Elements() {
		resolved := *e
		if resolved.Type.IsZero() {
			t, err := r.headType(e)
			if err != nil {
				return nil, err
			}
			resolved.Type = t
		}
		m.Elements = append(m.Elements, &resolved)
		m.elements[resolved.Name.String()] = &resolved
	}
	for _, e := range m.Elements {
		if !e.SubstitutionGroup.IsZero() {
			head := e.SubstitutionGroup.String()
			m.members[head] = append(m.members[head], e)
		}
	}
	return m, nil
}

// headType follows substitution group heads until one declares a type.
func (r *resolver) headType(e *ElementDecl) (QName, error) {
	seen := map[QName]bool{e.Name: true}
	chain := []QName{e.Name}
	for cur := e; ; {
		if !cur.Type.IsZero() {
			return cur.Type, nil
		}
		if cur.SubstitutionGroup.IsZero() {
			return xsdrt.XSD("anyType"), nil
		}
		chain = append(chain, cur.SubstitutionGroup)
		if seen[cur.SubstitutionGroup] {
			return QName{}, &InvalidDerivationError{
				Type:   e.Name,
				Chain:  chain,
				Reason: "circular substitution group",
			}
		}
		seen[cur.SubstitutionGroup] = true
		cur, _ = r.g.Element(cur.SubstitutionGroup)
	}
}

// shadowed reports whether a declared type is hidden by the builtin of
// the same name.
func shadowed(td *TypeDef) bool {
	return isBuiltin(td.Name)
}

func (r *resolver) check() error {
	for _, td := range r.g.Types() {
		if shadowed(td) {
			r.logger.Debug("builtin type shadows declaration", "type", td.Name.String())
			continue
		}
		if err := r.checkType(td); err != nil {
			return err
		}
	}
	for _, e := range r.g.Elements() {
		if err := r.checkElement(e.Name, ElementKind, e); err != nil {
			return err
		}
		if !e.SubstitutionGroup.IsZero() {
			if _, ok := r.g.Element(e.SubstitutionGroup); !ok {
				return r.unresolved(e.Name, ElementKind, e.SubstitutionGroup, ElementKind, e.Pos)
			}
		}
	}
	for _, a := range r.g.Attributes() {
		if !r.simpleExists(a.Type) {
			return r.unresolved(a.Name, AttributeKind, a.Type, TypeKind, a.Pos)
		}
	}
	for _, gd := range r.g.Groups() {
		if err := r.checkParticle(gd.Name, GroupKind, gd.Content); err != nil {
			return err
		}
	}
	for _, ag := range r.g.AttributeGroups() {
		if err := r.checkAttrs(ag.Name, AttributeGroupKind, ag.Attrs, ag.Groups, ag.Pos); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) unresolved(from QName, fromKind DeclKind, target QName, kind DeclKind, pos Position) error {
	return &UnresolvedReferenceError{From: from, FromKind: fromKind, Target: target, Kind: kind, Position: pos}
}

func (r *resolver) typeExists(q QName) bool {
	if isBuiltin(q) {
		return true
	}
	_, ok := r.g.Type(q)
	return ok
}

func (r *resolver) simpleExists(q QName) bool {
	if isBuiltin(q) {
		return q.Local != "anyType"
	}
	td, ok := r.g.Type(q)
	return ok && td.Simple != nil
}

func (r *resolver) checkType(td *TypeDef) error {
	if st := td.Simple; st != nil {
		switch st.Variety {
		case xsdrt.Atomic:
			if !r.simpleExists(st.Base) {
				return r.unresolved(td.Name, TypeKind, st.Base, TypeKind, td.Pos)
			}
		case xsdrt.List:
			if !r.simpleExists(st.Item) {
				return r.unresolved(td.Name, TypeKind, st.Item, TypeKind, td.Pos)
			}
		case xsdrt.Union:
			for _, m := range st.Members {
				if !r.simpleExists(m) {
					return r.unresolved(td.Name, TypeKind, m, TypeKind, td.Pos)
				}
			}
		}
		return nil
	}
	ct := td.Complex
	if ct.Derivation != NoDerivation && !r.typeExists(ct.Base) {
		return r.unresolved(td.Name, TypeKind, ct.Base, TypeKind, td.Pos)
	}
	if err := r.checkAttrs(td.Name, TypeKind, ct.Attrs, ct.AttrGroups, td.Pos); err != nil {
		return err
	}
	return r.checkParticle(td.Name, TypeKind, ct.Content)
}

func (r *resolver) checkAttrs(from QName, kind DeclKind, attrs []*AttributeUse, groups []QName, pos Position) error {
	for _, a := range attrs {
		if !a.Ref.IsZero() {
			if _, ok := r.g.Attribute(a.Ref); !ok {
				return r.unresolved(from, kind, a.Ref, AttributeKind, a.Pos)
			}
			continue
		}
		if !r.simpleExists(a.Type) {
			return r.unresolved(from, kind, a.Type, TypeKind, a.Pos)
		}
	}
	for _, ref := range groups {
		if _, ok := r.g.AttributeGroup(ref); !ok {
			return r.unresolved(from, kind, ref, AttributeGroupKind, pos)
		}
	}
	return nil
}

func (r *resolver) checkElement(from QName, kind DeclKind, e *ElementDecl) error {
	if !e.Type.IsZero() && !r.typeExists(e.Type) {
		return r.unresolved(from, kind, e.Type, TypeKind, e.Pos)
	}
	return nil
}

func (r *resolver) checkParticle(from QName, kind DeclKind, p *Particle) error {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case ElementRef:
		if p.Element != nil {
			return r.checkElement(from, kind, p.Element)
		}
		if _, ok := r.g.Element(p.Ref); !ok {
			return r.unresolved(from, kind, p.Ref, ElementKind, p.Pos)
		}
	case GroupRef:
		if _, ok := r.g.Group(p.Ref); !ok {
			return r.unresolved(from, kind, p.Ref, GroupKind, p.Pos)
		}
	}
	for _, c := range p.Children {
		if err := r.checkParticle(from, kind, c); err != nil {
			return err
		}
	}
	return nil
}

// substitutes returns every non-abstract element that may appear in
// place of head, following substitution groups transitively, in name
// order.
func (m *Model) substitutes(head QName) []*ElementDecl {
	seen := map[string]bool{head.String(): true}
	var out []*ElementDecl
	queue := []string{head.String()}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range m.members[cur] {
			key := e.Name.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			queue = append(queue, key)
			if !e.Abstract {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.Compare(out[j].Name) < 0
	})
	return out
}
