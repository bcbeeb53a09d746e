package xsdgen

import (
	"fmt"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
	"github.com/tidwall/btree"
)

// XSDNamespace is the XML Schema namespace
const XSDNamespace = xsdrt.XSDNamespace

// QName represents a qualified XML name
type QName = xsdrt.QName

// Position locates a construct in a schema document.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.Line == 0 {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// DeclKind is the symbol space a declaration lives in.
type DeclKind uint8

const (
	TypeKind DeclKind = iota + 1
	ElementKind
	AttributeKind
	GroupKind
	AttributeGroupKind
)

func (k DeclKind) String() string {
	switch k {
	case TypeKind:
		return "type"
	case ElementKind:
		return "element"
	case AttributeKind:
		return "attribute"
	case GroupKind:
		return "group"
	case AttributeGroupKind:
		return "attributeGroup"
	default:
		return fmt.Sprintf("DeclKind(%d)", uint8(k))
	}
}

// TypeDef is a simple or complex type definition. Exactly one of Simple
// and Complex is set.
type TypeDef struct {
	Name      QName
	Anonymous bool
	Doc       string
	Pos       Position
	Simple    *SimpleDef
	Complex   *ComplexDef
}

// SimpleDef is the body of a simple type definition.
type SimpleDef struct {
	Variety xsdrt.Variety
	// Base is the restriction base of an atomic or restricted type.
	Base    QName
	Facets  []xsdrt.Facet
	Item    QName
	Members []QName
}

// Derivation is how a complex type relates to its base.
type Derivation uint8

const (
	NoDerivation Derivation = iota
	Extension
	Restriction
)

func (d Derivation) String() string {
	switch d {
	case Extension:
		return "extension"
	case Restriction:
		return "restriction"
	default:
		return "none"
	}
}

// ComplexDef is the body of a complex type definition.
type ComplexDef struct {
	Attrs         []*AttributeUse
	AttrGroups    []QName
	AnyAttr       *xsdrt.Wildcard
	Content       *Particle
	Mixed         bool
	Abstract      bool
	Derivation    Derivation
	Base          QName
	SimpleContent bool
	// Facets narrow the base of a simpleContent restriction.
	Facets []xsdrt.Facet
}

// ElementDecl represents an element declaration. Global declarations
// live in the graph; local ones hang off their particle.
type ElementDecl struct {
	Name              QName
	Type              QName
	Global            bool
	Nillable          bool
	Abstract          bool
	SubstitutionGroup QName
	Default           string
	Fixed             string
	Doc               string
	Pos               Position
}

// AttributeUse is the requirement level of an attribute
type AttributeUse struct {
	Name       QName
	Ref        QName
	Type       QName
	Use        Use
	Default    string
	HasDefault bool
	Fixed      string
	HasFixed   bool
	Pos        Position
}

// Use represents attribute usage (required, optional, prohibited)
type Use string

const (
	OptionalUse   Use = "optional"
	RequiredUse   Use = "required"
	ProhibitedUse Use = "prohibited"
)

// AttributeDecl is a global attribute declaration.
type AttributeDecl struct {
	Name       QName
	Type       QName
	Default    string
	HasDefault bool
	Fixed      string
	HasFixed   bool
	Doc        string
	Pos        Position
}

// GroupDef is a named model group.
type GroupDef struct {
	Name    QName
	Content *Particle
	Doc     string
	Pos     Position
}

// AttributeGroupDef is a named attribute group.
type AttributeGroupDef struct {
	Name    QName
	Attrs   []*AttributeUse
	Groups  []QName
	AnyAttr *xsdrt.Wildcard
	Pos     Position
}

// ParticleKind tags the variants of Particle.
type ParticleKind uint8

const (
	EmptyParticle ParticleKind = iota
	SequenceParticle
	ChoiceParticle
	AllParticle
	ElementRef
	GroupRef
	WildcardParticle
)

func (k ParticleKind) String() string {
	switch k {
	case SequenceParticle:
		return "sequence"
	case ChoiceParticle:
		return "choice"
	case AllParticle:
		return "all"
	case ElementRef:
		return "element"
	case GroupRef:
		return "group"
	case WildcardParticle:
		return "any"
	default:
		return "empty"
	}
}

// Particle is a content model node. An ElementRef either names a global
// element in Ref or carries a local declaration in Element; after
// normalization Element is always set and Subst lists the substitution
// group members accepted in its place.
type Particle struct {
	Kind     ParticleKind
	Min      int
	Max      int
	Children []*Particle
	Ref      QName
	Element  *ElementDecl
	Subst    []*ElementDecl
	Wildcard *xsdrt.Wildcard
	Pos      Position
}

// Unbounded is the Max of maxOccurs="unbounded".
const Unbounded = xsdrt.Unbounded

// SchemaGraph is the symbol table of one compilation. It is populated
// per document, merged at a single barrier, then frozen; later stages
// only read it.
type SchemaGraph struct {
	types      btree.Map[string, *TypeDef]
	elements   btree.Map[string, *ElementDecl]
	attributes btree.Map[string, *AttributeDecl]
	groups     btree.Map[string, *GroupDef]
	attrGroups btree.Map[string, *AttributeGroupDef]
	frozen     bool
}

// NewSchemaGraph returns an empty graph.
func NewSchemaGraph() *SchemaGraph {
	return &SchemaGraph{}
}

func add[V any](g *SchemaGraph, m *btree.Map[string, V], kind DeclKind, name QName, pos Position, v V) error {
	if g.frozen {
		return fmt.Errorf("schema graph is frozen")
	}
	if _, dup := m.Get(name.String()); dup {
		return &IngestError{
			Location:  pos.File,
			Position:  pos,
			Construct: fmt.Sprintf("duplicate %s %s", kind, name),
		}
	}
	m.Set(name.String(), v)
	return nil
}

func (g *SchemaGraph) AddType(t *TypeDef) error {
	return add(g, &g.types, TypeKind, t.Name, t.Pos, t)
}

func (g *SchemaGraph) AddElement(e *ElementDecl) error {
	return add(g, &g.elements, ElementKind, e.Name, e.Pos, e)
}

func (g *SchemaGraph) AddAttribute(a *AttributeDecl) error {
	return add(g, &g.attributes, AttributeKind, a.Name, a.Pos, a)
}

func (g *SchemaGraph) AddGroup(gd *GroupDef) error {
	return add(g, &g.groups, GroupKind, gd.Name, gd.Pos, gd)
}

func (g *SchemaGraph) AddAttributeGroup(ag *AttributeGroupDef) error {
	return add(g, &g.attrGroups, AttributeGroupKind, ag.Name, ag.Pos, ag)
}

func (g *SchemaGraph) Type(name QName) (*TypeDef, bool) {
	return g.types.Get(name.String())
}

func (g *SchemaGraph) Element(name QName) (*ElementDecl, bool) {
	return g.elements.Get(name.String())
}

func (g *SchemaGraph) Attribute(name QName) (*AttributeDecl, bool) {
	return g.attributes.Get(name.String())
}

func (g *SchemaGraph) Group(name QName) (*GroupDef, bool) {
	return g.groups.Get(name.String())
}

func (g *SchemaGraph) AttributeGroup(name QName) (*AttributeGroupDef, bool) {
	return g.attrGroups.Get(name.String())
}

func values[V any](m *btree.Map[string, V]) []V {
	out := make([]V, 0, m.Len())
	m.Scan(func(_ string, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Types returns every type definition ordered by qualified name.
func (g *SchemaGraph) Types() []*TypeDef { return values(&g.types) }

// Elements returns the global element declarations ordered by name.
func (g *SchemaGraph) Elements() []*ElementDecl { return values(&g.elements) }

// Attributes returns the global attribute declarations ordered by name.
func (g *SchemaGraph) Attributes() []*AttributeDecl { return values(&g.attributes) }

// Groups returns the named model groups ordered by name.
func (g *SchemaGraph) Groups() []*GroupDef { return values(&g.groups) }

// AttributeGroups returns the named attribute groups ordered by name.
func (g *SchemaGraph) AttributeGroups() []*AttributeGroupDef { return values(&g.attrGroups) }

// Merge adds every declaration of other to g. Duplicates are errors.
func (g *SchemaGraph) Merge(other *SchemaGraph) error {
	for _, t := range other.Types() {
		if err := g.AddType(t); err != nil {
			return err
		}
	}
	for _, e := range other.Elements() {
		if err := g.AddElement(e); err != nil {
			return err
		}
	}
	for _, a := range other.Attributes() {
		if err := g.AddAttribute(a); err != nil {
			return err
		}
	}
	for _, gd := range other.Groups() {
		if err := g.AddGroup(gd); err != nil {
			return err
		}
	}
	for _, ag := range other.AttributeGroups() {
		if err := g.AddAttributeGroup(ag); err != nil {
			return err
		}
	}
	return nil
}

// Freeze makes the graph read-only.
func (g *SchemaGraph) Freeze() {
	g.frozen = true
}

// Frozen reports whether Freeze has been called.
func (g *SchemaGraph) Frozen() bool {
	return g.frozen
}

// Snapshot is a comparable view of a graph's declarations.
type Snapshot struct {
	Types           []*TypeDef
	Elements        []*ElementDecl
	Attributes      []*AttributeDecl
	Groups          []*GroupDef
	AttributeGroups []*AttributeGroupDef
}

// Snapshot returns every declaration in name order.
func (g *SchemaGraph) Snapshot() Snapshot {
	return Snapshot{
		Types:           g.Types(),
		Elements:        g.Elements(),
		Attributes:      g.Attributes(),
		Groups:          g.Groups(),
		AttributeGroups: g.AttributeGroups(),
	}
}
