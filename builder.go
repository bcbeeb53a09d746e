package xsdgen

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

// Document is one parsed schema document.
type Document struct {
	Location string
	Root     *xsdrt.Node
	// Namespace is the target namespace a chameleon include adopts when
	// the document declares none.
	Namespace string
}

// docBuilder walks one schema document and records its declarations.
type docBuilder struct {
	graph             *SchemaGraph
	location          string
	tns               string
	qualifyElements   bool
	qualifyAttributes bool
	lenient           map[string]bool
	logger            *slog.Logger
	anonymous         map[string]int
}

// BuildDocument runs the model builder over one document and returns the
// declarations it contributes.
func BuildDocument(doc Document, cfg *Config, logger *slog.Logger) (*SchemaGraph, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &docBuilder{
		graph:     NewSchemaGraph(),
		location:  doc.Location,
		lenient:   cfg.lenientSet(),
		logger:    logger,
		anonymous: make(map[string]int),
	}
	if err := b.schema(doc.Root, doc.Namespace); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// BuildGraph builds and merges documents in order, then freezes the
// result. The loader does the same work in parallel.
func BuildGraph(docs []Document, cfg *Config, logger *slog.Logger) (*SchemaGraph, error) {
	g := NewSchemaGraph()
	for _, doc := range docs {
		part, err := BuildDocument(doc, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := g.Merge(part); err != nil {
			return nil, err
		}
	}
	g.Freeze()
	return g, nil
}

func isXSD(n *xsdrt.Node, local string) bool {
	return n.Name.Namespace == XSDNamespace && n.Name.Local == local
}

// xsdChildren returns the children of n in the XML Schema namespace.
func xsdChildren(n *xsdrt.Node) []*xsdrt.Node {
	var out []*xsdrt.Node
	for _, child := range n.Elements() {
		if child.Name.Namespace == XSDNamespace {
			out = append(out, child)
		}
	}
	return out
}

func (b *docBuilder) schema(root *xsdrt.Node, chameleon string) error {
	if root == nil || !isXSD(root, "schema") {
		return &IngestError{Location: b.location, Construct: "document root must be xs:schema element"}
	}

	// Parse attributes
	if tns, ok := root.AttrLocal("targetNamespace"); ok {
		b.tns = strings.TrimSpace(tns)
	} else {
		b.tns = chameleon
	}
	var err error
	if b.qualifyElements, err = b.formDefault(root, "elementFormDefault"); err != nil {
		return err
	}
	if b.qualifyAttributes, err = b.formDefault(root, "attributeFormDefault"); err != nil {
		return err
	}

	for _, child := range xsdChildren(root) {
		if err := b.topLevel(child); err != nil {
			return err
		}
	}
	return nil
}

func (b *docBuilder) topLevel(n *xsdrt.Node) error {
	switch n.Name.Local {
	case "element":
		decl, err := b.element(n, true, "")
		if err != nil {
			return err
		}
		return b.graph.AddElement(decl)
	case "attribute":
		return b.globalAttribute(n)
	case "simpleType":
		name, _, err := b.checkNameRef(n, true)
		if err != nil {
			return err
		}
		_, err = b.simpleType(n, QName{Namespace: b.tns, Local: name}, false, name)
		return err
	case "complexType":
		name, _, err := b.checkNameRef(n, true)
		if err != nil {
			return err
		}
		_, err = b.complexType(n, QName{Namespace: b.tns, Local: name}, false, name)
		return err
	case "group":
		return b.group(n)
	case "attributeGroup":
		return b.attributeGroup(n)
	case "import", "include", "annotation":
		// import/include are followed by the loader
		return nil
	case "notation":
		return b.unsupported("notation", n, "schema")
	case "redefine":
		return b.unsupported("redefine", n, "schema")
	case "override":
		return b.unsupported("override", n, "schema")
	case "defaultOpenContent":
		return b.unsupported("openContent", n, "schema")
	default:
		return b.fail(n, "unknown XSD element: %s", n.Name.Local)
	}
}

// unsupported rejects a construct the compiler does not model, unless its
// category is configured as lenient.
func (b *docBuilder) unsupported(category string, n *xsdrt.Node, decl string) error {
	if b.lenient[category] {
		b.logger.Warn("skipping unsupported construct",
			"construct", "xs:"+n.Name.Local,
			"decl", decl,
			"location", b.pos(n).String())
		return nil
	}
	return &UnsupportedConstructError{
		Construct: "xs:" + n.Name.Local,
		Category:  category,
		Decl:      decl,
		Position:  b.pos(n),
	}
}

// anonymousName synthesizes the name of an inline type. The '#' keeps
// it out of the NCName space, so it can never collide with a declared
// name.
func (b *docBuilder) anonymousName(hint, kind string) QName {
	local := hint + "#" + kind
	b.anonymous[local]++
	if n := b.anonymous[local]; n > 1 {
		local += strconv.Itoa(n)
	}
	return QName{Namespace: b.tns, Local: local}
}

// documentation collects the text of xs:annotation/xs:documentation.
func documentation(n *xsdrt.Node) string {
	var docs []string
	for _, ann := range xsdChildren(n) {
		if ann.Name.Local != "annotation" {
			continue
		}
		for _, d := range xsdChildren(ann) {
			if d.Name.Local == "documentation" {
				if text := strings.TrimSpace(d.TextContent()); text != "" {
					docs = append(docs, text)
				}
			}
		}
	}
	return strings.Join(docs, "\n")
}

// element parses an element declaration. Local declarations are returned
// without being registered; hint names their inline types.
func (b *docBuilder) element(n *xsdrt.Node, global bool, hint string) (*ElementDecl, error) {
	name, _, err := b.checkNameRef(n, global)
	if err != nil {
		return nil, err
	}
	decl := &ElementDecl{
		Name:   QName{Namespace: b.tns, Local: name},
		Global: global,
		Doc:    documentation(n),
		Pos:    b.pos(n),
	}
	if !global {
		qualify, err := b.qualified(n, b.qualifyElements)
		if err != nil {
			return nil, err
		}
		if !qualify {
			decl.Name.Namespace = ""
		}
		hint = hint + "." + name
	} else {
		hint = name
	}

	// Parse attributes
	if decl.Nillable, err = b.boolAttr(n, "nillable"); err != nil {
		return nil, err
	}
	if decl.Abstract, err = b.boolAttr(n, "abstract"); err != nil {
		return nil, err
	}
	if decl.SubstitutionGroup, _, err = b.qname(n, "substitutionGroup"); err != nil {
		return nil, err
	}
	if !global && !decl.SubstitutionGroup.IsZero() {
		return nil, b.fail(n, "local element cannot have a substitutionGroup")
	}
	if decl.Default, _, decl.Fixed, _, err = b.valueConstraint(n); err != nil {
		return nil, err
	}
	typeName, hasType, err := b.qname(n, "type")
	if err != nil {
		return nil, err
	}
	decl.Type = typeName

	// Parse child elements for inline type definitions
	inline := false
	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "simpleType", "complexType":
			if hasType || inline {
				return nil, b.fail(n, "element cannot have both 'type' attribute and inline type definition")
			}
			inline = true
			anon := b.anonymousName(hint, "element")
			if child.Name.Local == "simpleType" {
				_, err = b.simpleType(child, anon, true, hint)
			} else {
				_, err = b.complexType(child, anon, true, hint)
			}
			if err != nil {
				return nil, err
			}
			decl.Type = anon
		case "key", "keyref", "unique":
			if err := b.unsupported("identity-constraint", child, "element "+decl.Name.String()); err != nil {
				return nil, err
			}
		case "alternative":
			if err := b.unsupported("alternative", child, "element "+decl.Name.String()); err != nil {
				return nil, err
			}
		default:
			return nil, b.fail(child, "unexpected %s in element declaration", child.Name.Local)
		}
	}
	if decl.Type.IsZero() {
		if !decl.SubstitutionGroup.IsZero() {
			// The head's type is taken once references are resolved.
			return decl, nil
		}
		decl.Type = xsdrt.XSD("anyType")
	}
	return decl, nil
}

// complexType parses a complex type definition and registers it.
func (b *docBuilder) complexType(n *xsdrt.Node, name QName, anonymous bool, hint string) (*TypeDef, error) {
	if anonymous {
		if _, ok := n.AttrLocal("name"); ok {
			return nil, b.fail(n, "anonymous complexType cannot have a name")
		}
	}
	ct := &ComplexDef{}
	var err error
	if ct.Mixed, err = b.boolAttr(n, "mixed"); err != nil {
		return nil, err
	}
	if ct.Abstract, err = b.boolAttr(n, "abstract"); err != nil {
		return nil, err
	}
	td := &TypeDef{Name: name, Anonymous: anonymous, Doc: documentation(n), Pos: b.pos(n), Complex: ct}
	decl := "complexType " + name.String()

	var body []*xsdrt.Node
	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "simpleContent":
			if err := b.simpleContent(child, ct, hint, decl); err != nil {
				return nil, err
			}
		case "complexContent":
			if err := b.complexContent(child, ct, hint, decl); err != nil {
				return nil, err
			}
		default:
			body = append(body, child)
		}
	}
	if len(body) > 0 && (ct.SimpleContent || ct.Derivation != NoDerivation) {
		return nil, b.fail(body[0], "unexpected %s after content derivation", body[0].Name.Local)
	}
	if err := b.complexBody(body, ct, hint, decl); err != nil {
		return nil, err
	}
	return td, b.graph.AddType(td)
}

// complexBody parses the content model and attribute declarations shared
// by complexType, extension and restriction.
func (b *docBuilder) complexBody(children []*xsdrt.Node, ct *ComplexDef, hint, decl string) error {
	for _, child := range children {
		switch child.Name.Local {
		case "annotation":
		case "sequence", "choice", "all", "group":
			if ct.Content != nil {
				return b.fail(child, "content model already defined")
			}
			if len(ct.Attrs) > 0 || len(ct.AttrGroups) > 0 || ct.AnyAttr != nil {
				return b.fail(child, "content model must precede attribute declarations")
			}
			p, err := b.particle(child, hint, decl)
			if err != nil {
				return err
			}
			ct.Content = p
		case "attribute":
			use, err := b.attributeUse(child, hint)
			if err != nil {
				return err
			}
			ct.Attrs = append(ct.Attrs, use)
		case "attributeGroup":
			ref, err := b.groupRef(child)
			if err != nil {
				return err
			}
			ct.AttrGroups = append(ct.AttrGroups, ref)
		case "anyAttribute":
			ct.AnyAttr = b.wildcard(child)
		case "assert":
			if err := b.unsupported("assert", child, decl); err != nil {
				return err
			}
		case "openContent":
			if err := b.unsupported("openContent", child, decl); err != nil {
				return err
			}
		default:
			return b.fail(child, "unexpected %s in %s", child.Name.Local, decl)
		}
	}
	return nil
}

// derivation reads the base of an extension or restriction.
func (b *docBuilder) derivation(n *xsdrt.Node, ct *ComplexDef) error {
	switch n.Name.Local {
	case "extension":
		ct.Derivation = Extension
	case "restriction":
		ct.Derivation = Restriction
	default:
		return b.fail(n, "expected extension or restriction, found %s", n.Name.Local)
	}
	base, ok, err := b.qname(n, "base")
	if err != nil {
		return err
	}
	if !ok {
		return b.fail(n, "%s must have 'base' attribute", n.Name.Local)
	}
	ct.Base = base
	return nil
}

// derivationChild returns the single extension or restriction child of
// a simpleContent or complexContent element.
func (b *docBuilder) derivationChild(n *xsdrt.Node) (*xsdrt.Node, error) {
	var found *xsdrt.Node
	for _, child := range xsdChildren(n) {
		if child.Name.Local == "annotation" {
			continue
		}
		if found != nil {
			return nil, b.fail(child, "%s must contain exactly one extension or restriction", n.Name.Local)
		}
		found = child
	}
	if found == nil {
		return nil, b.fail(n, "%s must contain exactly one extension or restriction", n.Name.Local)
	}
	return found, nil
}

func (b *docBuilder) complexContent(n *xsdrt.Node, ct *ComplexDef, hint, decl string) error {
	if ct.Derivation != NoDerivation {
		return b.fail(n, "content derivation already defined")
	}
	if _, ok := n.AttrLocal("mixed"); ok {
		mixed, err := b.boolAttr(n, "mixed")
		if err != nil {
			return err
		}
		ct.Mixed = mixed
	}
	d, err := b.derivationChild(n)
	if err != nil {
		return err
	}
	if err := b.derivation(d, ct); err != nil {
		return err
	}
	return b.complexBody(xsdChildren(d), ct, hint, decl)
}

func (b *docBuilder) simpleContent(n *xsdrt.Node, ct *ComplexDef, hint, decl string) error {
	if ct.Derivation != NoDerivation {
		return b.fail(n, "content derivation already defined")
	}
	ct.SimpleContent = true
	d, err := b.derivationChild(n)
	if err != nil {
		return err
	}
	if err := b.derivation(d, ct); err != nil {
		return err
	}

	var body []*xsdrt.Node
	for _, child := range xsdChildren(d) {
		switch {
		case child.Name.Local == "sequence" || child.Name.Local == "choice" ||
			child.Name.Local == "all" || child.Name.Local == "group":
			return b.fail(child, "simpleContent cannot have a content model")
		case ct.Derivation == Restriction && xsdrt.IsFacet(child.Name.Local):
			ct.Facets = b.addFacet(ct.Facets, child)
		case ct.Derivation == Restriction && child.Name.Local == "simpleType":
			return b.fail(child, "inline base type in simpleContent restriction is not supported")
		default:
			body = append(body, child)
		}
	}
	return b.complexBody(body, ct, hint, decl)
}

// addFacet appends a facet, merging enumeration and pattern values of
// the same derivation step.
func (b *docBuilder) addFacet(facets []xsdrt.Facet, n *xsdrt.Node) []xsdrt.Facet {
	value, _ := n.AttrLocal("value")
	kind := n.Name.Local
	if kind == "enumeration" || kind == "pattern" {
		for i := range facets {
			if facets[i].Kind == kind {
				facets[i].Values = append(facets[i].Values, value)
				return facets
			}
		}
		return append(facets, xsdrt.Facet{Kind: kind, Values: []string{value}})
	}
	return append(facets, xsdrt.Facet{Kind: kind, Value: value})
}

// simpleType parses a simple type definition and registers it.
func (b *docBuilder) simpleType(n *xsdrt.Node, name QName, anonymous bool, hint string) (*TypeDef, error) {
	if anonymous {
		if _, ok := n.AttrLocal("name"); ok {
			return nil, b.fail(n, "anonymous simpleType cannot have a name")
		}
	}
	st := &SimpleDef{}
	td := &TypeDef{Name: name, Anonymous: anonymous, Doc: documentation(n), Pos: b.pos(n), Simple: st}

	// Parse restriction, list, or union
	count := 0
	for _, child := range xsdChildren(n) {
		var err error
		switch child.Name.Local {
		case "annotation":
			continue
		case "restriction":
			st.Variety = xsdrt.Atomic
			err = b.restriction(child, st, hint)
		case "list":
			st.Variety = xsdrt.List
			err = b.list(child, st, hint)
		case "union":
			st.Variety = xsdrt.Union
			err = b.union(child, st, hint)
		default:
			return nil, b.fail(child, "unexpected %s in simpleType", child.Name.Local)
		}
		if err != nil {
			return nil, err
		}
		count++
	}
	if count != 1 {
		return nil, b.fail(n, "simpleType must have exactly one of restriction, list, or union")
	}
	return td, b.graph.AddType(td)
}

func (b *docBuilder) restriction(n *xsdrt.Node, st *SimpleDef, hint string) error {
	base, hasBase, err := b.qname(n, "base")
	if err != nil {
		return err
	}
	st.Base = base
	for _, child := range xsdChildren(n) {
		switch {
		case child.Name.Local == "annotation":
		case child.Name.Local == "simpleType":
			if hasBase || !st.Base.IsZero() {
				return b.fail(n, "restriction cannot have both 'base' attribute and inline simpleType")
			}
			anon := b.anonymousName(hint, "base")
			if _, err := b.simpleType(child, anon, true, hint); err != nil {
				return err
			}
			st.Base = anon
		case xsdrt.IsFacet(child.Name.Local):
			st.Facets = b.addFacet(st.Facets, child)
		case child.Name.Local == "assertion" || child.Name.Local == "explicitTimezone":
			if err := b.unsupported("assert", child, "simpleType "+hint); err != nil {
				return err
			}
		default:
			return b.fail(child, "unexpected %s in restriction", child.Name.Local)
		}
	}
	if st.Base.IsZero() {
		return b.fail(n, "restriction must have either 'base' attribute or inline simpleType")
	}
	return nil
}

func (b *docBuilder) list(n *xsdrt.Node, st *SimpleDef, hint string) error {
	item, hasItem, err := b.qname(n, "itemType")
	if err != nil {
		return err
	}
	st.Item = item
	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "simpleType":
			if hasItem || !st.Item.IsZero() {
				return b.fail(n, "list cannot have both 'itemType' attribute and inline simpleType")
			}
			anon := b.anonymousName(hint, "item")
			if _, err := b.simpleType(child, anon, true, hint); err != nil {
				return err
			}
			st.Item = anon
		default:
			return b.fail(child, "unexpected %s in list", child.Name.Local)
		}
	}
	if st.Item.IsZero() {
		return b.fail(n, "list must have either 'itemType' attribute or inline simpleType")
	}
	return nil
}

func (b *docBuilder) union(n *xsdrt.Node, st *SimpleDef, hint string) error {
	if v, ok := n.AttrLocal("memberTypes"); ok {
		for _, lexical := range strings.Fields(v) {
			q, err := n.ResolveQName(lexical)
			if err != nil {
				return b.fail(n, "invalid memberTypes: %w", err)
			}
			st.Members = append(st.Members, q)
		}
	}
	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "simpleType":
			anon := b.anonymousName(hint, "member")
			if _, err := b.simpleType(child, anon, true, hint); err != nil {
				return err
			}
			st.Members = append(st.Members, anon)
		default:
			return b.fail(child, "unexpected %s in union", child.Name.Local)
		}
	}
	if len(st.Members) == 0 {
		return b.fail(n, "union must have member types")
	}
	return nil
}

// particle parses a model group or a group reference.
func (b *docBuilder) particle(n *xsdrt.Node, hint, decl string) (*Particle, error) {
	min, max, err := b.parseOccurs(n)
	if err != nil {
		return nil, err
	}
	p := &Particle{Min: min, Max: max, Pos: b.pos(n)}
	switch n.Name.Local {
	case "group":
		ref, err := b.groupRef(n)
		if err != nil {
			return nil, err
		}
		p.Kind = GroupRef
		p.Ref = ref
		return p, nil
	case "sequence":
		p.Kind = SequenceParticle
	case "choice":
		p.Kind = ChoiceParticle
	case "all":
		p.Kind = AllParticle
		if max > 1 || max == Unbounded {
			return nil, b.fail(n, "all group cannot have maxOccurs greater than 1")
		}
	}

	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "element":
			c, err := b.elementParticle(child, hint)
			if err != nil {
				return nil, err
			}
			p.Children = append(p.Children, c)
		case "any":
			cmin, cmax, err := b.parseOccurs(child)
			if err != nil {
				return nil, err
			}
			p.Children = append(p.Children, &Particle{
				Kind:     WildcardParticle,
				Min:      cmin,
				Max:      cmax,
				Wildcard: b.wildcard(child),
				Pos:      b.pos(child),
			})
		case "group":
			if p.Kind == AllParticle {
				if err := b.unsupported("group-in-all", child, decl); err != nil {
					return nil, err
				}
				continue
			}
			c, err := b.particle(child, hint, decl)
			if err != nil {
				return nil, err
			}
			p.Children = append(p.Children, c)
		case "sequence", "choice":
			if p.Kind == AllParticle {
				return nil, b.fail(child, "all group can only contain elements")
			}
			c, err := b.particle(child, hint, decl)
			if err != nil {
				return nil, err
			}
			p.Children = append(p.Children, c)
		case "all":
			if err := b.unsupported("nested-all", child, decl); err != nil {
				return nil, err
			}
		default:
			return nil, b.fail(child, "unexpected %s in %s", child.Name.Local, n.Name.Local)
		}
	}
	return p, nil
}

// elementParticle parses an element reference or local declaration
// inside a model group.
func (b *docBuilder) elementParticle(n *xsdrt.Node, hint string) (*Particle, error) {
	min, max, err := b.parseOccurs(n)
	if err != nil {
		return nil, err
	}
	p := &Particle{Kind: ElementRef, Min: min, Max: max, Pos: b.pos(n)}
	if _, ok := n.AttrLocal("ref"); ok {
		if _, _, err := b.checkNameRef(n, false); err != nil {
			return nil, err
		}
		if p.Ref, _, err = b.qname(n, "ref"); err != nil {
			return nil, err
		}
		return p, nil
	}
	if p.Element, err = b.element(n, false, hint); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *docBuilder) groupRef(n *xsdrt.Node) (QName, error) {
	if _, ok := n.AttrLocal("name"); ok {
		return QName{}, b.fail(n, "%s reference cannot have a name", n.Name.Local)
	}
	ref, ok, err := b.qname(n, "ref")
	if err != nil {
		return QName{}, err
	}
	if !ok {
		return QName{}, b.fail(n, "%s reference must have a 'ref' attribute", n.Name.Local)
	}
	return ref, nil
}

func (b *docBuilder) wildcard(n *xsdrt.Node) *xsdrt.Wildcard {
	ns, _ := n.AttrLocal("namespace")
	process, _ := n.AttrLocal("processContents")
	return xsdrt.NewWildcard(ns, strings.TrimSpace(process), b.tns)
}

// attributeUse parses a local attribute declaration or reference.
func (b *docBuilder) attributeUse(n *xsdrt.Node, hint string) (*AttributeUse, error) {
	name, _, err := b.checkNameRef(n, false)
	if err != nil {
		return nil, err
	}
	use := &AttributeUse{Use: OptionalUse, Pos: b.pos(n)}
	if v, ok := n.AttrLocal("use"); ok {
		switch u := Use(strings.TrimSpace(v)); u {
		case OptionalUse, RequiredUse, ProhibitedUse:
			use.Use = u
		default:
			return nil, b.fail(n, "invalid use value '%s': must be 'optional', 'required', or 'prohibited'", v)
		}
	}
	if use.Default, use.HasDefault, use.Fixed, use.HasFixed, err = b.valueConstraint(n); err != nil {
		return nil, err
	}
	if use.HasDefault && use.Use != OptionalUse {
		return nil, b.fail(n, "attribute with a default must be optional")
	}

	if _, isRef := n.AttrLocal("ref"); isRef {
		if use.Ref, _, err = b.qname(n, "ref"); err != nil {
			return nil, err
		}
		use.Name = use.Ref
		for _, child := range xsdChildren(n) {
			if child.Name.Local != "annotation" {
				return nil, b.fail(child, "attribute reference cannot declare a type")
			}
		}
		return use, nil
	}

	qualify, err := b.qualified(n, b.qualifyAttributes)
	if err != nil {
		return nil, err
	}
	use.Name = QName{Local: name}
	if qualify {
		use.Name.Namespace = b.tns
	}
	if use.Type, err = b.attributeType(n, hint+"@"+name); err != nil {
		return nil, err
	}
	return use, nil
}

// attributeType reads the type attribute or inline simpleType of an
// attribute declaration. Untyped attributes are anySimpleType.
func (b *docBuilder) attributeType(n *xsdrt.Node, hint string) (QName, error) {
	typeName, hasType, err := b.qname(n, "type")
	if err != nil {
		return QName{}, err
	}
	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "simpleType":
			if hasType || !typeName.IsZero() {
				return QName{}, b.fail(n, "attribute cannot have both 'type' attribute and inline simpleType")
			}
			anon := b.anonymousName(hint, "attribute")
			if _, err := b.simpleType(child, anon, true, hint); err != nil {
				return QName{}, err
			}
			typeName = anon
		default:
			return QName{}, b.fail(child, "unexpected %s in attribute declaration", child.Name.Local)
		}
	}
	if typeName.IsZero() {
		typeName = xsdrt.XSD("anySimpleType")
	}
	return typeName, nil
}

func (b *docBuilder) globalAttribute(n *xsdrt.Node) error {
	name, _, err := b.checkNameRef(n, true)
	if err != nil {
		return err
	}
	if _, ok := n.AttrLocal("use"); ok {
		return b.fail(n, "global attribute cannot have a 'use' attribute")
	}
	decl := &AttributeDecl{
		Name: QName{Namespace: b.tns, Local: name},
		Doc:  documentation(n),
		Pos:  b.pos(n),
	}
	if decl.Default, decl.HasDefault, decl.Fixed, decl.HasFixed, err = b.valueConstraint(n); err != nil {
		return err
	}
	if decl.Type, err = b.attributeType(n, "@"+name); err != nil {
		return err
	}
	return b.graph.AddAttribute(decl)
}

func (b *docBuilder) group(n *xsdrt.Node) error {
	name, _, err := b.checkNameRef(n, true)
	if err != nil {
		return err
	}
	gd := &GroupDef{
		Name: QName{Namespace: b.tns, Local: name},
		Doc:  documentation(n),
		Pos:  b.pos(n),
	}
	decl := "group " + gd.Name.String()
	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "sequence", "choice", "all":
			if gd.Content != nil {
				return b.fail(child, "group must contain exactly one model group")
			}
			if _, ok := child.AttrLocal("minOccurs"); ok {
				return b.fail(child, "model group in a named group cannot have minOccurs")
			}
			if _, ok := child.AttrLocal("maxOccurs"); ok {
				return b.fail(child, "model group in a named group cannot have maxOccurs")
			}
			if gd.Content, err = b.particle(child, name, decl); err != nil {
				return err
			}
		default:
			return b.fail(child, "unexpected %s in group", child.Name.Local)
		}
	}
	if gd.Content == nil {
		return b.fail(n, "group must contain exactly one model group")
	}
	return b.graph.AddGroup(gd)
}

func (b *docBuilder) attributeGroup(n *xsdrt.Node) error {
	name, _, err := b.checkNameRef(n, true)
	if err != nil {
		return err
	}
	ag := &AttributeGroupDef{
		Name: QName{Namespace: b.tns, Local: name},
		Pos:  b.pos(n),
	}
	for _, child := range xsdChildren(n) {
		switch child.Name.Local {
		case "annotation":
		case "attribute":
			use, err := b.attributeUse(child, name)
			if err != nil {
				return err
			}
			ag.Attrs = append(ag.Attrs, use)
		case "attributeGroup":
			ref, err := b.groupRef(child)
			if err != nil {
				return err
			}
			ag.Groups = append(ag.Groups, ref)
		case "anyAttribute":
			ag.AnyAttr = b.wildcard(child)
		default:
			return b.fail(child, "unexpected %s in attributeGroup", child.Name.Local)
		}
	}
	return b.graph.AddAttributeGroup(ag)
}

// reference is an include or import found in a schema document.
type reference struct {
	Location  string
	Namespace string
	Include   bool
	Pos       Position
}

// references lists the include and import directives of a document.
func references(doc Document) []reference {
	var refs []reference
	if doc.Root == nil {
		return nil
	}
	for _, child := range xsdChildren(doc.Root) {
		if child.Name.Local != "include" && child.Name.Local != "import" {
			continue
		}
		loc, ok := child.AttrLocal("schemaLocation")
		if !ok || strings.TrimSpace(loc) == "" {
			continue
		}
		ns, _ := child.AttrLocal("namespace")
		refs = append(refs, reference{
			Location:  strings.TrimSpace(loc),
			Namespace: ns,
			Include:   child.Name.Local == "include",
			Pos:       Position{File: doc.Location, Line: child.Line, Column: child.Column},
		})
	}
	return refs
}

func (r reference) String() string {
	kind := "import"
	if r.Include {
		kind = "include"
	}
	return fmt.Sprintf("%s %s", kind, r.Location)
}
