package xsdgen

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

// Decl is one top-level declaration of generated code. Decls are
// produced in emission order; the writer only formats them.
type Decl struct {
	Name string
	Kind string
	Body string
}

// printer accumulates Go source text.
type printer struct {
	sb strings.Builder
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(&p.sb, format, args...)
}

func (p *printer) String() string {
	return p.sb.String()
}

// docComment renders text as Go comment lines.
func docComment(p *printer, text string) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			p.printf("//\n")
			continue
		}
		p.printf("// %s\n", line)
	}
}

// Generate produces the declarations of the generated package: value
// types in dependency order, per-element entry points, the package
// decoder, and the embedded grammar.
func Generate(l *Lowered) []Decl {
	var decls []Decl
	for _, c := range l.Order {
		for _, d := range c.Decls {
			key := d.Name.String()
			if d.Kind == GroupKind {
				key = "group " + key
			}
			if a, ok := l.aliases[key]; ok {
				decls = append(decls, aliasDecl(a, d.Name))
				continue
			}
			for _, s := range l.shapes[key] {
				decls = append(decls, shapeDecls(s, d)...)
			}
		}
	}
	for _, e := range l.entries {
		decls = append(decls, entryDecls(e)...)
	}

	var p printer
	p.printf("// Decode decodes a document whose root is any global element of the schema.\n")
	p.printf("func Decode(r io.Reader) (any, error) {\n\treturn Program.Decode(r)\n}\n")
	decls = append(decls, Decl{Name: "Decode", Kind: "func", Body: p.String()})
	decls = append(decls, Decl{Name: "Program", Kind: "var", Body: programDecl(l)})
	return decls
}

func aliasDecl(a *alias, name QName) Decl {
	var p printer
	if a.Doc != "" {
		docComment(&p, a.Doc)
	} else {
		p.printf("// %s is the simple type %s.\n", a.Name, name.Local)
	}
	p.printf("type %s = %s\n", a.Name, a.Target)
	return Decl{Name: a.Name, Kind: "type", Body: p.String()}
}

func shapeDecls(s *shape, owner DeclRef) []Decl {
	var p printer
	switch {
	case s.Doc != "":
		docComment(&p, s.Doc)
	default:
		p.printf("// %s holds a value of %s %s.\n", s.Name, owner.Kind, owner.Name.Local)
	}
	p.printf("type %s struct {\n", s.Name)
	for _, f := range s.Fields {
		p.printf("\t%s %s // %s\n", f.Name, f.GoType(), f.Source)
	}
	if s.NilField != "" {
		p.printf("\t%s bool // xsi:nil\n", s.NilField)
	}
	p.printf("}\n")
	decls := []Decl{{Name: s.Name, Kind: "type", Body: p.String()}}

	decls = append(decls,
		Decl{Name: s.Name + ".SetAttr", Kind: "func", Body: setAttrFunc(s)},
		Decl{Name: s.Name + ".SetText", Kind: "func", Body: setTextFunc(s)},
		Decl{Name: s.Name + ".Add", Kind: "func", Body: addFunc(s)},
		Decl{Name: s.Name + ".Nested", Kind: "func", Body: nestedFunc(s)},
	)
	if s.NilField != "" {
		var n printer
		n.printf("func (x *%s) SetNil() {\n\tx.%s = true\n}\n", s.Name, s.NilField)
		decls = append(decls, Decl{Name: s.Name + ".SetNil", Kind: "func", Body: n.String()})
	}
	return decls
}

// store writes the statements that convert value and store it in f.
func store(p *printer, f *field) {
	target := "x." + f.Name
	put := func(v string) {
		if f.Container == repeated {
			p.printf("\t\t%s = append(%s, %s)\n", target, target, v)
			return
		}
		p.printf("\t\t%s = %s\n", target, v)
	}
	switch f.Conv {
	case storeAny:
		put("value")
	case listConv:
		put(fmt.Sprintf("xsdrt.ListOf[%s](value)", f.ListItem))
	case assertDeref:
		p.printf("\t\tv, ok := value.(*%s)\n", f.Item)
		p.printf("\t\tif !ok {\n\t\t\treturn xsdrt.SlotError(slot, value)\n\t\t}\n")
		put("*v")
	default:
		if f.Container == optional {
			// a nilled element leaves the field unset
			p.printf("\t\tif value == nil {\n\t\t\treturn nil\n\t\t}\n")
			p.printf("\t\tv, ok := value.(%s)\n", f.Item)
			p.printf("\t\tif !ok {\n\t\t\treturn xsdrt.SlotError(slot, value)\n\t\t}\n")
			put("&v")
			return
		}
		p.printf("\t\tv, ok := value.(%s)\n", f.Item)
		p.printf("\t\tif !ok && value != nil {\n\t\t\treturn xsdrt.SlotError(slot, value)\n\t\t}\n")
		put("v")
	}
}

func slotFunc(s *shape, method string, kinds ...fieldKind) string {
	var p printer
	p.printf("func (x *%s) %s(slot int, value any) error {\n", s.Name, method)
	var fields []*field
	for _, f := range s.Fields {
		for _, k := range kinds {
			if f.Kind == k {
				fields = append(fields, f)
			}
		}
	}
	if len(fields) == 0 {
		p.printf("\treturn xsdrt.SlotError(slot, value)\n}\n")
		return p.String()
	}
	p.printf("\tswitch slot {\n")
	for _, f := range fields {
		if f.Kind == anyAttrField {
			p.printf("\tcase xsdrt.AnyAttrSlot:\n")
		} else {
			p.printf("\tcase %d:\n", f.Slot)
		}
		store(&p, f)
	}
	p.printf("\tdefault:\n\t\treturn xsdrt.SlotError(slot, value)\n\t}\n\treturn nil\n}\n")
	return p.String()
}

func setAttrFunc(s *shape) string {
	return slotFunc(s, "SetAttr", attrField, anyAttrField)
}

func addFunc(s *shape) string {
	return slotFunc(s, "Add", childField)
}

func setTextFunc(s *shape) string {
	var p printer
	p.printf("func (x *%s) SetText(value any) error {\n", s.Name)
	for _, f := range s.Fields {
		if f.Kind != textField {
			continue
		}
		p.printf("\tconst slot = 0\n")
		var body printer
		store(&body, f)
		// store indents for a case clause
		p.printf("%s", strings.ReplaceAll(body.String(), "\t\t", "\t"))
		p.printf("\treturn nil\n}\n")
		return p.String()
	}
	p.printf("\treturn xsdrt.SlotError(0, value)\n}\n")
	return p.String()
}

func nestedFunc(s *shape) string {
	var p printer
	p.printf("func (x *%s) Nested(slot int) xsdrt.Builder {\n", s.Name)
	slots := make([]int, 0, len(s.Nested))
	for slot := range s.Nested {
		slots = append(slots, slot)
	}
	slices.Sort(slots)
	if len(slots) > 0 {
		p.printf("\tswitch slot {\n")
		for _, slot := range slots {
			p.printf("\tcase %d:\n\t\treturn new(%s)\n", slot, s.Nested[slot].Name)
		}
		p.printf("\t}\n")
	}
	p.printf("\treturn nil\n}\n")
	return p.String()
}

func entryDecls(e *entry) []Decl {
	name := e.Element.Name
	var parse printer
	if e.Element.Doc != "" {
		docComment(&parse, e.Element.Doc)
		parse.printf("//\n")
	}
	parse.printf("// Parse%s decodes a document whose root is the %s element.\n", e.Suffix, name.Local)
	parse.printf("func Parse%s(r io.Reader) (%s, error) {\n", e.Suffix, e.GoType)
	parse.printf("\troot, err := xsdrt.Decode(r)\n")
	parse.printf("\tif err != nil {\n\t\tvar zero %s\n\t\treturn zero, err\n\t}\n", e.GoType)
	parse.printf("\treturn Decode%s(root)\n}\n", e.Suffix)

	var decode printer
	decode.printf("// Decode%s decodes a %s element.\n", e.Suffix, name.Local)
	decode.printf("func Decode%s(root *xsdrt.Node) (%s, error) {\n", e.Suffix, e.GoType)
	decode.printf("\tvar x %s\n", e.GoType)
	decode.printf("\tv, err := Program.DecodeElement(root, %s)\n", qnameLit(name))
	decode.printf("\tif err != nil {\n\t\treturn x, err\n\t}\n")
	if e.ListItem != "" {
		decode.printf("\tx = xsdrt.ListOf[%s](v)\n\treturn x, nil\n}\n", e.ListItem)
	} else {
		decode.printf("\tx, _ = v.(%s)\n\treturn x, nil\n}\n", e.GoType)
	}

	return []Decl{
		{Name: "Parse" + e.Suffix, Kind: "func", Body: parse.String()},
		{Name: "Decode" + e.Suffix, Kind: "func", Body: decode.String()},
	}
}

func qnameLit(q QName) string {
	if q.Namespace == "" {
		return fmt.Sprintf("xsdrt.QName{Local: %s}", strconv.Quote(q.Local))
	}
	return fmt.Sprintf("xsdrt.QName{Namespace: %s, Local: %s}", strconv.Quote(q.Namespace), strconv.Quote(q.Local))
}

// programDecl renders the grammar as a composite literal.
func programDecl(l *Lowered) string {
	prog := l.Program
	var p printer
	p.printf("// Program is the grammar generated decoders match documents against.\n")
	p.printf("var Program = &xsdrt.Program{\n")

	p.printf("Elements: []*xsdrt.Element{\n")
	for _, e := range prog.Elements {
		p.printf("{Name: %s, Type: %s", qnameLit(e.Name), strconv.Quote(e.Type))
		if e.Nillable {
			p.printf(", Nillable: true")
		}
		if e.Abstract {
			p.printf(", Abstract: true")
		}
		p.printf("},\n")
	}
	p.printf("},\n")

	p.printf("Types: map[string]*xsdrt.Type{\n")
	for _, key := range sortedKeys(prog.Types) {
		t := prog.Types[key]
		p.printf("%s: {\n", strconv.Quote(key))
		p.printf("Key: %s,\nName: %s,\n", strconv.Quote(t.Key), qnameLit(t.Name))
		if len(t.Attrs) > 0 {
			p.printf("Attrs: []*xsdrt.AttrUse{\n")
			for _, a := range t.Attrs {
				attrLit(&p, a)
			}
			p.printf("},\n")
		}
		if t.AnyAttr != nil {
			p.printf("AnyAttr: %s,\n", wildcardLit(t.AnyAttr))
		}
		if t.Content != nil {
			p.printf("Content: ")
			particleLit(&p, t.Content)
			p.printf(",\n")
		}
		if t.Simple != "" {
			p.printf("Simple: %s,\n", strconv.Quote(t.Simple))
		}
		if t.Mixed {
			p.printf("Mixed: true,\n")
		}
		p.printf("New: func() xsdrt.Builder { return new(%s) },\n", l.Names[key])
		p.printf("},\n")
	}
	p.printf("},\n")

	if len(prog.Simple) > 0 {
		p.printf("Simple: map[string]*xsdrt.Simple{\n")
		for _, key := range sortedKeys(prog.Simple) {
			simpleLit(&p, prog.Simple[key])
		}
		p.printf("},\n")
	}

	if len(prog.Groups) > 0 {
		p.printf("Groups: map[string]*xsdrt.Group{\n")
		for _, key := range sortedKeys(prog.Groups) {
			g := prog.Groups[key]
			p.printf("%s: {\nKey: %s,\nName: %s,\n", strconv.Quote(key), strconv.Quote(g.Key), qnameLit(g.Name))
			if g.Content != nil {
				p.printf("Content: ")
				particleLit(&p, g.Content)
				p.printf(",\n")
			}
			p.printf("New: func() xsdrt.Builder { return new(%s) },\n", l.Names["group "+key])
			p.printf("},\n")
		}
		p.printf("},\n")
	}
	p.printf("}\n")
	return p.String()
}

func attrLit(p *printer, a *xsdrt.AttrUse) {
	p.printf("{Slot: %d, Name: %s, Type: %s", a.Slot, qnameLit(a.Name), strconv.Quote(a.Type))
	if a.Required {
		p.printf(", Required: true")
	}
	if a.HasDefault {
		p.printf(", Default: %s, HasDefault: true", strconv.Quote(a.Default))
	}
	if a.HasFixed {
		p.printf(", Fixed: %s, HasFixed: true", strconv.Quote(a.Fixed))
	}
	p.printf("},\n")
}

func wildcardLit(w *xsdrt.Wildcard) string {
	process := "xsdrt.StrictProcess"
	switch w.Process {
	case xsdrt.LaxProcess:
		process = "xsdrt.LaxProcess"
	case xsdrt.SkipProcess:
		process = "xsdrt.SkipProcess"
	}
	return fmt.Sprintf("&xsdrt.Wildcard{Namespace: %s, Target: %s, Process: %s}",
		strconv.Quote(w.Namespace), strconv.Quote(w.Target), process)
}

var particleKinds = map[xsdrt.Kind]string{
	xsdrt.ElementParticle:  "xsdrt.ElementParticle",
	xsdrt.SequenceParticle: "xsdrt.SequenceParticle",
	xsdrt.ChoiceParticle:   "xsdrt.ChoiceParticle",
	xsdrt.AllParticle:      "xsdrt.AllParticle",
	xsdrt.AnyParticle:      "xsdrt.AnyParticle",
	xsdrt.GroupParticle:    "xsdrt.GroupParticle",
}

func bound(n int) string {
	if n == xsdrt.Unbounded {
		return "xsdrt.Unbounded"
	}
	return strconv.Itoa(n)
}

func particleLit(p *printer, part *xsdrt.Particle) {
	p.printf("&xsdrt.Particle{\nKind: %s,\nMin: %d,\nMax: %s,\n", particleKinds[part.Kind], part.Min, bound(part.Max))
	if part.Slot == xsdrt.Inline {
		p.printf("Slot: xsdrt.Inline,\n")
	} else {
		p.printf("Slot: %d,\n", part.Slot)
	}
	p.printf("Label: %s,\n", strconv.Quote(part.Label))
	switch part.Kind {
	case xsdrt.ElementParticle:
		p.printf("Name: %s,\nType: %s,\n", qnameLit(part.Name), strconv.Quote(part.Type))
		if part.Nillable {
			p.printf("Nillable: true,\n")
		}
		if part.Abstract {
			p.printf("Abstract: true,\n")
		}
		if len(part.Subst) > 0 {
			p.printf("Subst: []xsdrt.Member{\n")
			for _, m := range part.Subst {
				p.printf("{Name: %s, Type: %s", qnameLit(m.Name), strconv.Quote(m.Type))
				if m.Nillable {
					p.printf(", Nillable: true")
				}
				p.printf("},\n")
			}
			p.printf("},\n")
		}
	case xsdrt.AnyParticle:
		p.printf("Wildcard: %s,\n", wildcardLit(part.Wildcard))
	case xsdrt.GroupParticle:
		p.printf("Group: %s,\n", strconv.Quote(part.Group))
	}
	if len(part.Children) > 0 {
		p.printf("Children: []*xsdrt.Particle{\n")
		for _, c := range part.Children {
			particleLit(p, c)
			p.printf(",\n")
		}
		p.printf("},\n")
	}
	p.printf("}")
}

var varieties = map[xsdrt.Variety]string{
	xsdrt.Atomic: "xsdrt.Atomic",
	xsdrt.List:   "xsdrt.List",
	xsdrt.Union:  "xsdrt.Union",
}

func simpleLit(p *printer, st *xsdrt.Simple) {
	p.printf("%s: {\nKey: %s,\nName: %s,\nVariety: %s,\n",
		strconv.Quote(st.Key), strconv.Quote(st.Key), qnameLit(st.Name), varieties[st.Variety])
	if st.Base != "" {
		p.printf("Base: %s,\n", strconv.Quote(st.Base))
	}
	if len(st.Facets) > 0 {
		p.printf("Facets: []xsdrt.Facet{\n")
		for _, f := range st.Facets {
			p.printf("{Kind: %s", strconv.Quote(f.Kind))
			if f.Value != "" {
				p.printf(", Value: %s", strconv.Quote(f.Value))
			}
			if len(f.Values) > 0 {
				quoted := make([]string, len(f.Values))
				for i, v := range f.Values {
					quoted[i] = strconv.Quote(v)
				}
				p.printf(", Values: []string{%s}", strings.Join(quoted, ", "))
			}
			p.printf("},\n")
		}
		p.printf("},\n")
	}
	if st.Item != "" {
		p.printf("Item: %s,\n", strconv.Quote(st.Item))
	}
	if len(st.Members) > 0 {
		quoted := make([]string, len(st.Members))
		for i, m := range st.Members {
			quoted[i] = strconv.Quote(m)
		}
		p.printf("Members: []string{%s},\n", strings.Join(quoted, ", "))
	}
	p.printf("},\n")
}
