package xsdgen

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

// deriver flattens derivation chains. Types are resolved depth-first
// along their bases; a type met again while its own chain is still open
// closes a cycle.
type deriver struct {
	m        *Model
	g        *SchemaGraph
	strict   bool
	logger   *slog.Logger
	visiting map[string]bool
	stack    []QName
}

// Derive computes the attribute set and base-merged content of every
// complex type and flattens every simple type onto its builtin base.
func Derive(m *Model, cfg *Config, logger *slog.Logger) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &deriver{
		m:        m,
		g:        m.Graph,
		strict:   cfg.StrictRestrictions,
		logger:   logger,
		visiting: make(map[string]bool),
	}
	for _, td := range d.g.Types() {
		if shadowed(td) {
			continue
		}
		var err error
		if td.Simple != nil {
			_, err = d.simple(td.Name)
		} else {
			_, err = d.complex(td.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// enter marks q as being resolved and reports a cycle if it already is.
func (d *deriver) enter(q QName) error {
	key := q.String()
	if d.visiting[key] {
		start := slices.Index(d.stack, q)
		chain := append(slices.Clone(d.stack[start:]), q)
		return &InvalidDerivationError{Type: q, Chain: chain, Reason: "circular derivation"}
	}
	d.visiting[key] = true
	d.stack = append(d.stack, q)
	return nil
}

func (d *deriver) leave(q QName) {
	delete(d.visiting, q.String())
	d.stack = d.stack[:len(d.stack)-1]
}

// simple resolves a simple type. Builtins resolve to themselves and are
// not recorded in the model.
func (d *deriver) simple(q QName) (*ResolvedSimple, error) {
	if isBuiltin(q) {
		return &ResolvedSimple{Name: q, Variety: xsdrt.Atomic, Base: q.Local}, nil
	}
	if rs, ok := d.m.Simple[q.String()]; ok {
		return rs, nil
	}
	td, ok := d.g.Type(q)
	if !ok || td.Simple == nil {
		return nil, &UnresolvedReferenceError{Target: q, Kind: TypeKind}
	}
	if err := d.enter(q); err != nil {
		return nil, err
	}
	defer d.leave(q)

	st := td.Simple
	rs := &ResolvedSimple{Name: q, Anonymous: td.Anonymous, Doc: td.Doc, Variety: st.Variety}
	switch st.Variety {
	case xsdrt.Atomic:
		base, err := d.simple(st.Base)
		if err != nil {
			return nil, err
		}
		rs.Variety = base.Variety
		rs.Base = base.Base
		rs.Item = base.Item
		rs.Members = base.Members
		rs.Facets = append(slices.Clone(base.Facets), st.Facets...)
	case xsdrt.List:
		item, err := d.simple(st.Item)
		if err != nil {
			return nil, err
		}
		if item.Variety == xsdrt.List {
			return nil, &InvalidDerivationError{Type: q, Base: st.Item, Reason: "list item type cannot be a list"}
		}
		rs.Item = st.Item
	case xsdrt.Union:
		for _, member := range st.Members {
			if _, err := d.simple(member); err != nil {
				return nil, err
			}
		}
		rs.Members = slices.Clone(st.Members)
	}
	d.m.Simple[q.String()] = rs
	return rs, nil
}

// complex resolves a complex type and its base chain.
func (d *deriver) complex(q QName) (*ResolvedType, error) {
	if rt, ok := d.m.Types[q.String()]; ok {
		return rt, nil
	}
	td, _ := d.g.Type(q)
	if err := d.enter(q); err != nil {
		return nil, err
	}
	defer d.leave(q)

	ct := td.Complex
	rt := &ResolvedType{
		Name:       q,
		Anonymous:  td.Anonymous,
		Doc:        td.Doc,
		Mixed:      ct.Mixed,
		Abstract:   ct.Abstract,
		Derivation: ct.Derivation,
		Base:       ct.Base,
	}
	own, prohibited, err := d.attributes(q, ct.Attrs, ct.AttrGroups)
	if err != nil {
		return nil, err
	}
	anyAttr, err := d.anyAttribute(ct)
	if err != nil {
		return nil, err
	}

	switch {
	case ct.Derivation == NoDerivation:
		rt.Attrs = own
		rt.AnyAttr = anyAttr
		rt.Content = ct.Content

	case ct.Base == xsdrt.XSD("anyType"):
		if ct.SimpleContent {
			return nil, &InvalidDerivationError{Type: q, Base: ct.Base, Reason: "simpleContent requires a simple base or a complex type with simple content"}
		}
		rt.Attrs = own
		rt.AnyAttr = anyAttr
		rt.Content = ct.Content

	case d.isSimple(ct.Base):
		if !ct.SimpleContent || ct.Derivation != Extension {
			return nil, &InvalidDerivationError{Type: q, Base: ct.Base, Reason: "a simple base can only be extended through simpleContent"}
		}
		rt.Simple = ct.Base
		rt.Attrs = own
		rt.AnyAttr = anyAttr

	default:
		base, err := d.complex(ct.Base)
		if err != nil {
			return nil, err
		}
		if ct.SimpleContent {
			err = d.simpleContent(rt, base, ct)
		} else {
			err = d.complexContent(rt, base, ct)
		}
		if err != nil {
			return nil, err
		}
		if ct.Derivation == Extension {
			rt.Attrs = extendAttrs(base.Attrs, own)
			rt.AnyAttr = anyAttr
			if rt.AnyAttr == nil {
				rt.AnyAttr = base.AnyAttr
			}
		} else {
			if rt.Attrs, err = d.restrictAttrs(q, base, own, prohibited); err != nil {
				return nil, err
			}
			rt.AnyAttr = anyAttr
		}
	}
	d.m.Types[q.String()] = rt
	return rt, nil
}

func (d *deriver) isSimple(q QName) bool {
	if isBuiltin(q) {
		return q.Local != "anyType"
	}
	td, ok := d.g.Type(q)
	return ok && td.Simple != nil
}

func (d *deriver) simpleContent(rt, base *ResolvedType, ct *ComplexDef) error {
	if base.Simple.IsZero() {
		return &InvalidDerivationError{Type: rt.Name, Base: base.Name, Reason: "base type does not have simple content"}
	}
	rt.Simple = base.Simple
	if ct.Derivation != Restriction || len(ct.Facets) == 0 {
		return nil
	}
	// The narrowed text gets a simple type of its own.
	inner, err := d.simple(base.Simple)
	if err != nil {
		return err
	}
	name := QName{Namespace: rt.Name.Namespace, Local: rt.Name.Local + "#simple"}
	d.m.Simple[name.String()] = &ResolvedSimple{
		Name:      name,
		Anonymous: true,
		Variety:   inner.Variety,
		Base:      inner.Base,
		Item:      inner.Item,
		Members:   inner.Members,
		Facets:    append(slices.Clone(inner.Facets), ct.Facets...),
	}
	rt.Simple = name
	return nil
}

func (d *deriver) complexContent(rt, base *ResolvedType, ct *ComplexDef) error {
	if !base.Simple.IsZero() {
		return &InvalidDerivationError{Type: rt.Name, Base: base.Name, Reason: "complexContent cannot derive from a type with simple content"}
	}
	if ct.Derivation == Extension {
		rt.Mixed = ct.Mixed || base.Mixed
		rt.Content = extendContent(base.Content, ct.Content)
		return nil
	}
	rt.Content = ct.Content
	if ok, name := d.restricts(rt.Content, base.Content); !ok {
		if d.strict {
			return &InvalidDerivationError{
				Type:   rt.Name,
				Base:   base.Name,
				Reason: fmt.Sprintf("element %s is not part of the base content", name),
			}
		}
		rt.Unverified = true
		d.logger.Warn("restriction content not verified against base",
			"type", rt.Name.String(),
			"base", base.Name.String(),
			"element", name.String())
	}
	return nil
}

// extendContent appends own content after the base content.
func extendContent(base, own *Particle) *Particle {
	switch {
	case base == nil:
		return own
	case own == nil:
		return base
	}
	return &Particle{
		Kind:     SequenceParticle,
		Min:      1,
		Max:      1,
		Children: []*Particle{base, own},
		Pos:      own.Pos,
	}
}

// restricts checks that every element the restricted content can match
// is admitted somewhere by the base content. It returns the first
// offending name.
func (d *deriver) restricts(own, base *Particle) (bool, QName) {
	allowed := make(map[QName]bool)
	var wild []*xsdrt.Wildcard
	d.reachable(base, allowed, &wild, make(map[string]bool))

	used := make(map[QName]bool)
	var ownWild []*xsdrt.Wildcard
	d.reachable(own, used, &ownWild, make(map[string]bool))

	names := make([]QName, 0, len(used))
	for n := range used {
		names = append(names, n)
	}
	slices.SortFunc(names, QName.Compare)
	for _, n := range names {
		if allowed[n] {
			continue
		}
		if slices.ContainsFunc(wild, func(w *xsdrt.Wildcard) bool { return w.Matches(n.Namespace) }) {
			continue
		}
		return false, n
	}
	if len(ownWild) > 0 && len(wild) == 0 {
		return false, QName{Local: "any"}
	}
	return true, QName{}
}

// reachable collects the element names and wildcards of p, entering
// named groups once.
func (d *deriver) reachable(p *Particle, names map[QName]bool, wild *[]*xsdrt.Wildcard, groups map[string]bool) {
	if p == nil || p.Max == 0 {
		return
	}
	switch p.Kind {
	case ElementRef:
		if p.Element != nil {
			names[p.Element.Name] = true
			return
		}
		names[p.Ref] = true
		for _, e := range d.m.substitutes(p.Ref) {
			names[e.Name] = true
		}
	case WildcardParticle:
		*wild = append(*wild, p.Wildcard)
	case GroupRef:
		key := p.Ref.String()
		if groups[key] {
			return
		}
		groups[key] = true
		if gd, ok := d.g.Group(p.Ref); ok {
			d.reachable(gd.Content, names, wild, groups)
		}
	default:
		for _, c := range p.Children {
			d.reachable(c, names, wild, groups)
		}
	}
}

// attributes expands attribute references and groups into a flat set.
// Prohibited uses are returned separately by name.
func (d *deriver) attributes(from QName, uses []*AttributeUse, groups []QName) ([]*ResolvedAttr, map[QName]bool, error) {
	var out []*ResolvedAttr
	prohibited := make(map[QName]bool)
	seen := make(map[QName]Position)
	var visit func(uses []*AttributeUse, groups []QName, chain []QName) error
	visit = func(uses []*AttributeUse, groups []QName, chain []QName) error {
		for _, u := range uses {
			a := d.attribute(u)
			if pos, dup := seen[a.Name]; dup {
				return &IngestError{
					Location:  u.Pos.File,
					Position:  u.Pos,
					Construct: fmt.Sprintf("duplicate attribute %s in %s", a.Name, from),
					Err:       fmt.Errorf("first declared at %s", pos),
				}
			}
			seen[a.Name] = u.Pos
			if u.Use == ProhibitedUse {
				prohibited[a.Name] = true
				continue
			}
			out = append(out, a)
		}
		for _, ref := range groups {
			if slices.Contains(chain, ref) {
				return &InvalidDerivationError{
					Type:   from,
					Chain:  append(slices.Clone(chain), ref),
					Reason: "circular attribute group reference",
				}
			}
			ag, _ := d.g.AttributeGroup(ref)
			if err := visit(ag.Attrs, ag.Groups, append(chain, ref)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(uses, groups, nil); err != nil {
		return nil, nil, err
	}
	return out, prohibited, nil
}

// attribute resolves one use. A reference takes the global declaration's
// name and type; value constraints on the use win over the declaration's.
func (d *deriver) attribute(u *AttributeUse) *ResolvedAttr {
	a := &ResolvedAttr{
		Name:       u.Name,
		Type:       u.Type,
		Required:   u.Use == RequiredUse,
		Default:    u.Default,
		HasDefault: u.HasDefault,
		Fixed:      u.Fixed,
		HasFixed:   u.HasFixed,
	}
	if u.Ref.IsZero() {
		return a
	}
	decl, _ := d.g.Attribute(u.Ref)
	a.Name = decl.Name
	a.Type = decl.Type
	if !a.HasDefault && !a.HasFixed {
		a.Default, a.HasDefault = decl.Default, decl.HasDefault
		a.Fixed, a.HasFixed = decl.Fixed, decl.HasFixed
	}
	return a
}

// anyAttribute returns the type's own attribute wildcard, or the first
// one contributed by its attribute groups.
func (d *deriver) anyAttribute(ct *ComplexDef) (*xsdrt.Wildcard, error) {
	if ct.AnyAttr != nil {
		return ct.AnyAttr, nil
	}
	seen := make(map[QName]bool)
	queue := slices.Clone(ct.AttrGroups)
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if seen[ref] {
			continue
		}
		seen[ref] = true
		ag, _ := d.g.AttributeGroup(ref)
		if ag.AnyAttr != nil {
			return ag.AnyAttr, nil
		}
		queue = append(queue, ag.Groups...)
	}
	return nil, nil
}

// extendAttrs is the base set followed by the attributes the extension
// adds; a redeclared attribute replaces the base's in place.
func extendAttrs(base, own []*ResolvedAttr) []*ResolvedAttr {
	out := slices.Clone(base)
	for _, a := range own {
		i := slices.IndexFunc(out, func(b *ResolvedAttr) bool { return b.Name == a.Name })
		if i >= 0 {
			out[i] = a
			continue
		}
		out = append(out, a)
	}
	return out
}

// restrictAttrs checks that each own attribute narrows the base's and
// returns the base set with redeclared attributes replaced and
// prohibited ones removed. Attributes the base admits only through its
// wildcard are appended.
func (d *deriver) restrictAttrs(q QName, base *ResolvedType, own []*ResolvedAttr, prohibited map[QName]bool) ([]*ResolvedAttr, error) {
	byName := make(map[QName]*ResolvedAttr, len(own))
	for _, a := range own {
		byName[a.Name] = a
	}
	var out []*ResolvedAttr
	for _, b := range base.Attrs {
		if prohibited[b.Name] {
			if b.Required {
				return nil, &InvalidDerivationError{Type: q, Base: base.Name,
					Reason: fmt.Sprintf("required attribute %s cannot be prohibited", b.Name)}
			}
			continue
		}
		a, ok := byName[b.Name]
		if !ok {
			out = append(out, b)
			continue
		}
		delete(byName, b.Name)
		if b.Required && !a.Required {
			return nil, &InvalidDerivationError{Type: q, Base: base.Name,
				Reason: fmt.Sprintf("attribute %s must remain required", a.Name)}
		}
		if b.HasFixed && (!a.HasFixed || a.Fixed != b.Fixed) {
			return nil, &InvalidDerivationError{Type: q, Base: base.Name,
				Reason: fmt.Sprintf("attribute %s must keep fixed value '%s'", a.Name, b.Fixed)}
		}
		if !d.assignable(a.Type, b.Type) {
			return nil, &InvalidDerivationError{Type: q, Base: base.Name,
				Reason: fmt.Sprintf("type %s of attribute %s does not derive from %s", a.Type, a.Name, b.Type)}
		}
		out = append(out, a)
	}
	for _, a := range own {
		if _, extra := byName[a.Name]; !extra {
			continue
		}
		if base.AnyAttr == nil || !base.AnyAttr.Matches(a.Name.Namespace) {
			return nil, &InvalidDerivationError{Type: q, Base: base.Name,
				Reason: fmt.Sprintf("attribute %s is not declared in the base type", a.Name)}
		}
		out = append(out, a)
	}
	return out, nil
}

// assignable reports whether simple type derived is base or restricts it.
func (d *deriver) assignable(derived, base QName) bool {
	if base == xsdrt.XSD("anySimpleType") {
		return true
	}
	seen := make(map[QName]bool)
	for cur := derived; !seen[cur]; {
		seen[cur] = true
		if cur == base {
			return true
		}
		if isBuiltin(cur) {
			return isBuiltin(base) && xsdrt.DerivesFrom(cur.Local, base.Local)
		}
		td, ok := d.g.Type(cur)
		if !ok || td.Simple == nil || td.Simple.Variety != xsdrt.Atomic {
			return false
		}
		cur = td.Simple.Base
	}
	return false
}
