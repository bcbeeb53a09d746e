package xsdgen

import (
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

// fieldKind is what feeds a generated struct field.
type fieldKind uint8

const (
	attrField fieldKind = iota
	anyAttrField
	textField
	childField
)

// container is how a field holds its values.
type container uint8

const (
	single container = iota
	optional
	repeated
)

// conv is how a builder value becomes a field value.
type conv uint8

const (
	// assertValue stores value.(Item).
	assertValue conv = iota
	// assertDeref stores *value.(*Item).
	assertDeref
	// listConv stores xsdrt.ListOf[ListItem](value).
	listConv
	// storeAny stores the value as is.
	storeAny
)

// field is one field of a generated struct.
type field struct {
	Name      string
	Kind      fieldKind
	Slot      int
	Item      string
	Container container
	Conv      conv
	ListItem  string
	// Source names the schema construct the field holds.
	Source string
}

// GoType is the declared type of the field.
func (f *field) GoType() string {
	switch f.Container {
	case optional:
		return "*" + f.Item
	case repeated:
		return "[]" + f.Item
	}
	return f.Item
}

// shape is a generated struct implementing xsdrt.Builder.
type shape struct {
	Name   string
	Doc    string
	Fields []*field
	// Nested lists the shapes of model groups this shape holds, by slot.
	Nested map[int]*shape
	// NilField names the field recording xsi:nil; empty unless the type
	// is used by a nillable element.
	NilField string

	scope  *fieldScope
	slots  int
	attrs  int
	counts map[ParticleKind]int
}

func newShape(name, doc string) *shape {
	return &shape{
		Name:   name,
		Doc:    doc,
		Nested: make(map[int]*shape),
		scope:  newFieldScope(),
		counts: make(map[ParticleKind]int),
	}
}

func (s *shape) add(f *field) *field {
	f.Name = s.scope.name(f.Name)
	switch f.Kind {
	case attrField:
		f.Slot = s.attrs
		s.attrs++
	case childField:
		f.Slot = s.slots
		s.slots++
	case anyAttrField:
		f.Slot = xsdrt.AnyAttrSlot
	}
	s.Fields = append(s.Fields, f)
	return f
}

// alias is a generated type alias for a named simple type.
type alias struct {
	Name   string
	Target string
	Doc    string
}

// entry is a global element with generated Parse and Decode functions.
type entry struct {
	Element *ElementDecl
	Suffix  string
	GoType  string
	// ListItem is set when the element has a list type; the decoded
	// []any is converted with xsdrt.ListOf.
	ListItem string
}

// Lowered is a model translated to the runtime grammar together with
// the Go declarations that represent its values.
type Lowered struct {
	Program *xsdrt.Program
	Order   []Component
	// Names maps type and group keys to Go type names.
	Names map[string]string

	shapes  map[string][]*shape
	aliases map[string]*alias
	entries []*entry
}

type lowerer struct {
	m        *Model
	namer    *Namer
	boxed    map[string]bool
	nillable map[string]bool
	out      *Lowered
}

// Lower builds the grammar tables and Go shapes for m, naming
// declarations in component order.
func Lower(m *Model, order []Component, namer *Namer) *Lowered {
	l := &lowerer{
		m:        m,
		namer:    namer,
		boxed:    make(map[string]bool),
		nillable: nillableTypes(m),
		out: &Lowered{
			Program: &xsdrt.Program{
				Types:  make(map[string]*xsdrt.Type),
				Simple: make(map[string]*xsdrt.Simple),
				Groups: make(map[string]*xsdrt.Group),
			},
			Order:   order,
			Names:   make(map[string]string),
			shapes:  make(map[string][]*shape),
			aliases: make(map[string]*alias),
		},
	}
	for _, c := range order {
		for _, d := range c.Decls {
			key := d.Name.String()
			if c.Recursive && d.Kind == TypeKind {
				l.boxed[key] = true
			}
			if d.Kind == GroupKind {
				l.out.Names["group "+key] = namer.Decl(d.Name)
				continue
			}
			l.out.Names[key] = namer.Decl(d.Name)
		}
	}
	for _, c := range order {
		for _, d := range c.Decls {
			key := d.Name.String()
			switch {
			case d.Kind == GroupKind:
				l.group(m.Groups[key])
			case m.Types[key] != nil:
				l.complexType(m.Types[key])
			default:
				l.simpleType(m.Simple[key])
			}
		}
	}
	for _, e := range m.Elements {
		l.out.Program.Elements = append(l.out.Program.Elements, &xsdrt.Element{
			Name:     e.Name,
			Type:     e.Type.String(),
			Nillable: e.Nillable,
			Abstract: e.Abstract,
		})
		if e.Abstract {
			continue
		}
		base := namer.prefixes[e.Name.Namespace] + namer.Ident(e.Name.Local)
		parse := namer.Reserve("Parse" + base)
		ent := &entry{
			Element: e,
			Suffix:  strings.TrimPrefix(parse, "Parse"),
			GoType:  l.valueType(e.Type, true),
		}
		if rs, ok := m.Simple[e.Type.String()]; ok && rs.Variety == xsdrt.List {
			ent.ListItem = l.simpleGoType(rs.Item)
		}
		l.out.entries = append(l.out.entries, ent)
		namer.Reserve("Decode" + strings.TrimPrefix(parse, "Parse"))
	}
	return l.out
}

// nillableTypes collects the types of nillable element declarations.
func nillableTypes(m *Model) map[string]bool {
	out := make(map[string]bool)
	mark := func(e *ElementDecl) {
		if e != nil && e.Nillable {
			out[e.Type.String()] = true
		}
	}
	var walk func(p *Particle)
	walk = func(p *Particle) {
		if p == nil {
			return
		}
		mark(p.Element)
		for _, e := range p.Subst {
			mark(e)
		}
		for _, c := range p.Children {
			walk(c)
		}
	}
	for _, e := range m.Elements {
		mark(e)
	}
	for _, rt := range m.Types {
		walk(rt.Content)
	}
	for _, rg := range m.Groups {
		walk(rg.Content)
	}
	return out
}

// goName is the Go type name of a declared simple or complex type.
func (l *lowerer) goName(q QName) string {
	return l.out.Names[q.String()]
}

func (l *lowerer) simpleType(rs *ResolvedSimple) {
	key := rs.Name.String()
	st := &xsdrt.Simple{
		Key:     key,
		Name:    rs.Name,
		Variety: rs.Variety,
		Base:    rs.Base,
		Facets:  rs.Facets,
	}
	if !rs.Item.IsZero() {
		st.Item = rs.Item.String()
	}
	for _, m := range rs.Members {
		st.Members = append(st.Members, m.String())
	}
	l.out.Program.Simple[key] = st

	var target string
	switch rs.Variety {
	case xsdrt.List:
		target = "[]" + l.simpleGoType(rs.Item)
	case xsdrt.Union:
		target = "any"
	default:
		target = builtinGoType(rs.Base)
	}
	l.out.aliases[key] = &alias{Name: l.goName(rs.Name), Target: target, Doc: rs.Doc}
}

func builtinGoType(local string) string {
	if bt := xsdrt.GetBuiltinType(local); bt != nil {
		return bt.GoType
	}
	return "string"
}

// simpleGoType is the Go type of values of a simple type.
func (l *lowerer) simpleGoType(q QName) string {
	if isBuiltin(q) {
		return builtinGoType(q.Local)
	}
	return l.goName(q)
}

// variety reports the variety of a simple type, builtins being atomic.
func (l *lowerer) variety(q QName) xsdrt.Variety {
	if rs, ok := l.m.Simple[q.String()]; ok {
		return rs.Variety
	}
	return xsdrt.Atomic
}

// nilable reports whether the zero value of a simple type's Go
// representation already means absent.
func (l *lowerer) nilable(q QName) bool {
	switch l.variety(q) {
	case xsdrt.List, xsdrt.Union:
		return true
	}
	goType := builtinGoType(q.Local)
	if rs, ok := l.m.Simple[q.String()]; ok {
		goType = builtinGoType(rs.Base)
	}
	return strings.HasPrefix(goType, "[]") || strings.HasPrefix(goType, "*")
}

// simpleField fills the conversion of a field holding simple type q.
func (l *lowerer) simpleField(f *field, q QName) *field {
	f.Item = l.simpleGoType(q)
	switch l.variety(q) {
	case xsdrt.List:
		f.Conv = listConv
		f.ListItem = l.simpleGoType(l.m.Simple[q.String()].Item)
	case xsdrt.Union:
		f.Conv = storeAny
	default:
		f.Conv = assertValue
	}
	return f
}

// valueType is the Go type element values of type q are held in. top
// is set for the result type of generated Parse functions.
func (l *lowerer) valueType(q QName, top bool) string {
	switch {
	case q == xsdrt.XSD("anyType"):
		return "*xsdrt.Node"
	case l.m.Types[q.String()] != nil:
		if top {
			return "*" + l.goName(q)
		}
		return l.goName(q)
	}
	return l.simpleGoType(q)
}

func (l *lowerer) complexType(rt *ResolvedType) {
	key := rt.Name.String()
	name := l.goName(rt.Name)
	s := newShape(name, rt.Doc)
	t := &xsdrt.Type{
		Key:     key,
		Name:    rt.Name,
		AnyAttr: rt.AnyAttr,
		Mixed:   rt.Mixed,
	}
	for _, a := range rt.Attrs {
		f := l.simpleField(&field{Name: l.namer.Ident(a.Name.Local), Kind: attrField, Source: "attribute " + a.Name.Local}, a.Type)
		if !a.Required && !a.HasDefault && !a.HasFixed && !l.nilable(a.Type) {
			f.Container = optional
		}
		s.add(f)
		t.Attrs = append(t.Attrs, &xsdrt.AttrUse{
			Slot:       f.Slot,
			Name:       a.Name,
			Type:       a.Type.String(),
			Required:   a.Required,
			Default:    a.Default,
			HasDefault: a.HasDefault,
			Fixed:      a.Fixed,
			HasFixed:   a.HasFixed,
		})
	}
	if rt.AnyAttr != nil {
		s.add(&field{Name: "AnyAttrs", Kind: anyAttrField, Item: "xsdrt.Attr", Container: repeated, Source: "anyAttribute"})
	}
	switch {
	case !rt.Simple.IsZero():
		t.Simple = rt.Simple.String()
		s.add(l.simpleField(&field{Name: "Value", Kind: textField, Source: "simple content"}, rt.Simple))
	case rt.Mixed:
		s.add(&field{Name: "Text", Kind: textField, Item: "string", Source: "mixed text"})
	}
	if l.nillable[key] {
		s.NilField = s.scope.name("Nil")
	}
	shapes := []*shape{s}
	t.Content = l.particle(s, rt.Content, false, &shapes)
	l.out.Program.Types[key] = t
	l.out.shapes[key] = shapes
}

func (l *lowerer) group(rg *ResolvedGroup) {
	key := rg.Name.String()
	name := l.out.Names["group "+key]
	s := newShape(name, rg.Doc)
	shapes := []*shape{s}
	g := &xsdrt.Group{Key: key, Name: rg.Name}
	g.Content = l.particle(s, rg.Content, false, &shapes)
	l.out.Program.Groups[key] = g
	l.out.shapes["group "+key] = shapes
}

// particle lowers p into the runtime grammar, adding the fields it
// fills to s. A model group matching at most once writes into s
// directly; a repeated one gets a nested shape per occurrence. opt is
// set when an enclosing group written into s may leave p unmatched.
func (l *lowerer) particle(s *shape, p *Particle, opt bool, shapes *[]*shape) *xsdrt.Particle {
	if p == nil {
		return nil
	}
	rp := &xsdrt.Particle{Min: p.Min, Max: p.Max}
	switch p.Kind {
	case ElementRef:
		e := p.Element
		rp.Kind = xsdrt.ElementParticle
		rp.Name = e.Name
		rp.Type = e.Type.String()
		rp.Nillable = e.Nillable
		rp.Abstract = e.Abstract
		rp.Label = e.Name.Local
		for _, m := range p.Subst {
			rp.Subst = append(rp.Subst, xsdrt.Member{Name: m.Name, Type: m.Type.String(), Nillable: m.Nillable})
		}
		rp.Slot = s.add(l.elementField(p, opt)).Slot

	case WildcardParticle:
		rp.Kind = xsdrt.AnyParticle
		rp.Wildcard = p.Wildcard
		rp.Label = "any"
		f := &field{Name: "Any", Kind: childField, Item: "*xsdrt.Node", Source: "wildcard"}
		if p.Max != 1 {
			f.Container = repeated
		}
		rp.Slot = s.add(f).Slot

	case GroupRef:
		rp.Kind = xsdrt.GroupParticle
		rp.Group = p.Ref.String()
		rp.Label = p.Ref.Local
		f := &field{
			Name:   l.namer.Ident(p.Ref.Local),
			Kind:   childField,
			Item:   "*" + l.out.Names["group "+p.Ref.String()],
			Source: "group " + p.Ref.Local,
		}
		if p.Max != 1 {
			f.Container = repeated
		}
		rp.Slot = s.add(f).Slot

	default:
		switch p.Kind {
		case SequenceParticle:
			rp.Kind = xsdrt.SequenceParticle
		case ChoiceParticle:
			rp.Kind = xsdrt.ChoiceParticle
		case AllParticle:
			rp.Kind = xsdrt.AllParticle
		}
		rp.Label = p.Kind.String()
		owner := s
		if p.Max == 1 {
			rp.Slot = xsdrt.Inline
			opt = opt || p.Min == 0
		} else {
			opt = false
			s.counts[p.Kind]++
			kind := l.namer.Ident(p.Kind.String())
			nested := newShape(l.namer.Reserve(s.Name+kind+strconv.Itoa(s.counts[p.Kind])), "")
			f := s.add(&field{
				Name:      kind + strconv.Itoa(s.counts[p.Kind]),
				Kind:      childField,
				Item:      "*" + nested.Name,
				Container: repeated,
				Source:    p.Kind.String(),
			})
			rp.Slot = f.Slot
			s.Nested[f.Slot] = nested
			*shapes = append(*shapes, nested)
			owner = nested
		}
		if p.Kind == ChoiceParticle {
			opt = true
		}
		for _, c := range p.Children {
			rp.Children = append(rp.Children, l.particle(owner, c, opt, shapes))
		}
	}
	return rp
}

// elementField decides how a struct holds the values of an element
// particle. An element that may be absent gets a pointer field unless
// the zero value of its type already means absent.
func (l *lowerer) elementField(p *Particle, opt bool) *field {
	e := p.Element
	f := &field{Name: l.namer.Ident(e.Name.Local), Kind: childField, Source: "element " + e.Name.Local}
	repeat := p.Max != 1
	absent := opt || p.Min == 0

	types := make(map[QName]bool)
	if !e.Abstract {
		types[e.Type] = true
	}
	for _, m := range p.Subst {
		types[m.Type] = true
	}
	typ := e.Type
	if len(types) > 1 {
		f.Item = "any"
		f.Conv = storeAny
		if repeat {
			f.Container = repeated
		}
		return f
	}
	for t := range types {
		typ = t
	}

	switch {
	case typ == xsdrt.XSD("anyType"):
		f.Item = "*xsdrt.Node"
	case l.m.Types[typ.String()] != nil:
		name := l.goName(typ)
		boxed := l.boxed[typ.String()]
		switch {
		case repeat && boxed, !repeat && (boxed || absent):
			f.Item = "*" + name
		default:
			f.Item = name
			f.Conv = assertDeref
		}
	default:
		l.simpleField(f, typ)
		if !repeat && absent && !l.nilable(typ) {
			f.Container = optional
		}
	}
	if repeat {
		f.Container = repeated
	}
	return f
}
