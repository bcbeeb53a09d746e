package xsdrt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personNS = "urn:person"

func pn(local string) QName {
	return QName{Namespace: personNS, Local: local}
}

func elem(local, typ string, slot, min, max int) *Particle {
	return &Particle{Kind: ElementParticle, Name: pn(local), Type: typ, Slot: slot, Min: min, Max: max, Label: local}
}

func group(kind Kind, slot, min, max int, children ...*Particle) *Particle {
	return &Particle{Kind: kind, Slot: slot, Min: min, Max: max, Label: kind.String(), Children: children}
}

// personProgram is the grammar of
//
//	<person id="..." status="active|...">
//	  <name/> <age/>? <email/>*
//	</person>
func personProgram() *Program {
	person := &Type{
		Key:  pn("Person").String(),
		Name: pn("Person"),
		Attrs: []*AttrUse{
			{Slot: 0, Name: QName{Local: "id"}, Type: xsdKey("ID"), Required: true},
			{Slot: 1, Name: QName{Local: "status"}, Type: xsdKey("string"), Default: "active", HasDefault: true},
			{Slot: 2, Name: QName{Local: "version"}, Type: xsdKey("decimal"), Fixed: "2.0", HasFixed: true},
		},
		AnyAttr: NewWildcard("##other", "lax", personNS),
		Content: group(SequenceParticle, Inline, 1, 1,
			elem("name", xsdKey("string"), 0, 1, 1),
			elem("age", xsdKey("int"), 1, 0, 1),
			elem("email", xsdKey("string"), 2, 0, Unbounded),
		),
	}
	return &Program{
		Elements: []*Element{{Name: pn("person"), Type: person.Key}},
		Types:    map[string]*Type{person.Key: person},
	}
}

func decodeString(t *testing.T, p *Program, doc string) (any, error) {
	t.Helper()
	root, err := DecodeBytes([]byte(doc))
	require.NoError(t, err)
	return p.DecodeNode(root)
}

func TestDecodePerson(t *testing.T) {
	p := personProgram()
	v, err := decodeString(t, p, `<person xmlns="urn:person" xmlns:x="urn:x" id="p1" x:note="hi">
		<name>Ann</name>
		<age> 30 </age>
		<email>a@example.com</email>
		<email>b@example.com</email>
	</person>`)
	require.NoError(t, err)

	person, ok := v.(*Value)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, pn("person"), person.Element)
	assert.Equal(t, pn("Person").String(), person.Type)
	assert.Equal(t, []any{"Ann"}, person.Get(0))
	assert.Equal(t, []any{int64(30)}, person.Get(1))
	assert.Equal(t, []any{"a@example.com", "b@example.com"}, person.Get(2))

	id, _ := person.Attr(0)
	assert.Equal(t, "p1", id)
	status, ok := person.Attr(1)
	assert.True(t, ok, "default attribute value is filled in")
	assert.Equal(t, "active", status)
	version, _ := person.Attr(2)
	assert.Equal(t, "2.0", version)
	assert.Equal(t, []Attr{{Name: QName{Namespace: "urn:x", Local: "note"}, Value: "hi"}}, person.Any)
}

func TestDecodePersonErrors(t *testing.T) {
	p := personProgram()

	tests := []struct {
		name      string
		doc       string
		particle  string
		attribute string
		reason    string
	}{
		{
			name:     "missing required element",
			doc:      `<person xmlns="urn:person" id="p1"><age>30</age></person>`,
			particle: "name",
			reason:   "expected {urn:person}name, found {urn:person}age",
		},
		{
			name:     "empty content",
			doc:      `<person xmlns="urn:person" id="p1"/>`,
			particle: "name",
			reason:   "found end of person",
		},
		{
			name:     "too many occurrences",
			doc:      `<person xmlns="urn:person" id="p1"><name>A</name><age>1</age><age>2</age></person>`,
			particle: "age",
			reason:   "exceeds maxOccurs 1",
		},
		{
			name:   "out of order",
			doc:    `<person xmlns="urn:person" id="p1"><name>A</name><email>e</email><age>1</age></person>`,
			reason: "unexpected element in content of {urn:person}person",
		},
		{
			name:      "missing required attribute",
			doc:       `<person xmlns="urn:person"><name>A</name></person>`,
			attribute: "id",
			reason:    "required attribute is missing",
		},
		{
			name:      "undeclared attribute",
			doc:       `<person xmlns="urn:person" id="p1" extra="1"><name>A</name></person>`,
			attribute: "extra",
			reason:    "attribute not allowed",
		},
		{
			name:      "fixed attribute mismatch",
			doc:       `<person xmlns="urn:person" id="p1" version="1.0"><name>A</name></person>`,
			attribute: "version",
			reason:    "does not match fixed value '2.0'",
		},
		{
			name:   "text in element-only content",
			doc:    `<person xmlns="urn:person" id="p1">hello<name>A</name></person>`,
			reason: "character data not allowed",
		},
		{
			name:   "element in simple content",
			doc:    `<person xmlns="urn:person" id="p1"><name><b/></name></person>`,
			reason: "not allowed in simple content",
		},
		{
			name:   "undeclared root",
			doc:    `<nobody xmlns="urn:person"/>`,
			reason: "no global element declaration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeString(t, p, tt.doc)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Equal(t, tt.particle, verr.Particle)
			assert.Equal(t, tt.attribute, verr.Attribute.Local)
			assert.Contains(t, verr.Reason, tt.reason)
			assert.Positive(t, verr.Line)
		})
	}
}

func TestDecodeLexicalError(t *testing.T) {
	_, err := decodeString(t, personProgram(), `<person xmlns="urn:person" id="p1"><name>A</name><age>old</age></person>`)
	var lexErr *LexicalError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, "old", lexErr.Text)
	assert.Equal(t, "int", lexErr.Type)
	assert.Positive(t, lexErr.Line)
}

func TestDecodeElement(t *testing.T) {
	p := personProgram()
	root, err := DecodeBytes([]byte(`<person xmlns="urn:person" id="p1"><name>A</name></person>`))
	require.NoError(t, err)

	_, err = p.DecodeElement(root, pn("person"))
	assert.NoError(t, err)
	_, err = p.DecodeElement(root, pn("other"))
	assert.ErrorContains(t, err, "expected root element")

	v, err := p.Decode(strings.NewReader(`<person xmlns="urn:person" id="p2"><name>B</name></person>`))
	require.NoError(t, err)
	id, _ := v.(*Value).Attr(0)
	assert.Equal(t, "p2", id)
}

func TestDecodeChoice(t *testing.T) {
	shape := &Type{
		Key: pn("Shape").String(),
		Content: group(ChoiceParticle, Inline, 0, Unbounded,
			elem("circle", xsdKey("int"), 0, 1, 1),
			elem("square", xsdKey("int"), 1, 1, 1),
			// Never chosen: circle is the leftmost alternative.
			elem("circle", xsdKey("string"), 2, 1, 1),
		),
	}
	p := &Program{
		Elements: []*Element{{Name: pn("shapes"), Type: shape.Key}},
		Types:    map[string]*Type{shape.Key: shape},
	}

	v, err := decodeString(t, p, `<shapes xmlns="urn:person"><square>2</square><circle>1</circle><square>3</square></shapes>`)
	require.NoError(t, err)
	got := v.(*Value)
	assert.Equal(t, []any{int64(1)}, got.Get(0))
	assert.Equal(t, []any{int64(2), int64(3)}, got.Get(1))
	assert.Empty(t, got.Get(2))

	v, err = decodeString(t, p, `<shapes xmlns="urn:person"/>`)
	require.NoError(t, err)
	assert.Empty(t, v.(*Value).Slots)
}

func TestDecodeNestedGroup(t *testing.T) {
	entries := &Type{
		Key: pn("Map").String(),
		Content: group(SequenceParticle, 0, 1, Unbounded,
			elem("key", xsdKey("string"), 0, 1, 1),
			elem("value", xsdKey("int"), 1, 0, 1),
		),
	}
	p := &Program{
		Elements: []*Element{{Name: pn("map"), Type: entries.Key}},
		Types:    map[string]*Type{entries.Key: entries},
	}

	v, err := decodeString(t, p, `<map xmlns="urn:person"><key>a</key><value>1</value><key>b</key></map>`)
	require.NoError(t, err)
	pairs := v.(*Value).Get(0)
	require.Len(t, pairs, 2)
	first := pairs[0].(*Value)
	assert.Equal(t, []any{"a"}, first.Get(0))
	assert.Equal(t, []any{int64(1)}, first.Get(1))
	second := pairs[1].(*Value)
	assert.Equal(t, []any{"b"}, second.Get(0))
	assert.Empty(t, second.Get(1))

	_, err = decodeString(t, p, `<map xmlns="urn:person"><value>1</value></map>`)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "key", verr.Particle)
}

func TestDecodeAll(t *testing.T) {
	record := &Type{
		Key: pn("Record").String(),
		Content: group(AllParticle, Inline, 1, 1,
			elem("a", xsdKey("string"), 0, 1, 1),
			elem("b", xsdKey("string"), 1, 0, 1),
		),
	}
	p := &Program{
		Elements: []*Element{{Name: pn("record"), Type: record.Key}},
		Types:    map[string]*Type{record.Key: record},
	}

	v, err := decodeString(t, p, `<record xmlns="urn:person"><b>2</b><a>1</a></record>`)
	require.NoError(t, err)
	assert.Equal(t, []any{"1"}, v.(*Value).Get(0))
	assert.Equal(t, []any{"2"}, v.(*Value).Get(1))

	_, err = decodeString(t, p, `<record xmlns="urn:person"><b>2</b></record>`)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a", verr.Particle)

	_, err = decodeString(t, p, `<record xmlns="urn:person"><a>1</a><a>1</a></record>`)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a", verr.Particle)
	assert.Contains(t, verr.Reason, "exceeds maxOccurs 1")
}

func TestDecodeRecursiveType(t *testing.T) {
	tree := &Type{
		Key: pn("Tree").String(),
		Attrs: []*AttrUse{
			{Slot: 0, Name: QName{Local: "depth"}, Type: xsdKey("int"), Required: true},
		},
		Content: group(SequenceParticle, Inline, 1, 1,
			elem("tree", pn("Tree").String(), 0, 0, Unbounded),
		),
	}
	p := &Program{
		Elements: []*Element{{Name: pn("tree"), Type: tree.Key}},
		Types:    map[string]*Type{tree.Key: tree},
	}

	var sb strings.Builder
	for i := 1; i <= 5; i++ {
		sb.WriteString(`<tree xmlns="urn:person" depth="` + string(rune('0'+i)) + `">`)
	}
	for i := 0; i < 5; i++ {
		sb.WriteString(`</tree>`)
	}
	v, err := decodeString(t, p, sb.String())
	require.NoError(t, err)

	depth := 0
	for node := v.(*Value); ; {
		depth++
		d, _ := node.Attr(0)
		assert.Equal(t, int64(depth), d)
		children := node.Get(0)
		if len(children) == 0 {
			break
		}
		require.Len(t, children, 1)
		node = children[0].(*Value)
	}
	assert.Equal(t, 5, depth)
}

func TestDecodeRecursiveGroup(t *testing.T) {
	const key = "group {urn:person}items"
	items := &Group{
		Key: key,
		Content: group(SequenceParticle, Inline, 1, 1,
			elem("item", xsdKey("string"), 0, 1, 1),
			&Particle{Kind: GroupParticle, Group: key, Slot: 1, Min: 0, Max: 1, Label: "items"},
		),
	}
	list := &Type{
		Key:     pn("List").String(),
		Content: &Particle{Kind: GroupParticle, Group: key, Slot: 0, Min: 1, Max: 1, Label: "items"},
	}
	p := &Program{
		Elements: []*Element{{Name: pn("list"), Type: list.Key}},
		Types:    map[string]*Type{list.Key: list},
		Groups:   map[string]*Group{key: items},
	}

	v, err := decodeString(t, p, `<list xmlns="urn:person"><item>a</item><item>b</item><item>c</item></list>`)
	require.NoError(t, err)

	var got []any
	next := v.(*Value).Get(0)
	for len(next) == 1 {
		g := next[0].(*Value)
		assert.Equal(t, key, g.Type)
		got = append(got, g.Get(0)...)
		next = g.Get(1)
	}
	assert.Equal(t, []any{"a", "b", "c"}, got)

	_, err = decodeString(t, p, `<list xmlns="urn:person"/>`)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "items", verr.Particle)
}

func TestDecodeNil(t *testing.T) {
	note := elem("note", xsdKey("string"), 0, 1, 1)
	note.Nillable = true
	doc := &Type{
		Key:     pn("Doc").String(),
		Content: group(SequenceParticle, Inline, 1, 1, note, elem("title", xsdKey("string"), 1, 0, 1)),
	}
	p := &Program{
		Elements: []*Element{{Name: pn("doc"), Type: doc.Key}},
		Types:    map[string]*Type{doc.Key: doc},
	}
	const xsi = `xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`

	v, err := decodeString(t, p, `<doc xmlns="urn:person" `+xsi+`><note xsi:nil="true"/></doc>`)
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, v.(*Value).Get(0))

	_, err = decodeString(t, p, `<doc xmlns="urn:person" `+xsi+`><note xsi:nil="true">text</note></doc>`)
	assert.ErrorContains(t, err, "nilled element must be empty")

	_, err = decodeString(t, p, `<doc xmlns="urn:person" `+xsi+`><note/><title xsi:nil="true"/></doc>`)
	assert.ErrorContains(t, err, "not nillable")
}

// nilRecorder is a builder that records SetNil, as generated types do.
type nilRecorder struct {
	Value
	nilled bool
}

func (r *nilRecorder) SetNil() {
	r.nilled = true
}

func TestDecodeNilCustomBuilder(t *testing.T) {
	box := &Type{Key: pn("Box").String(), New: func() Builder { return &nilRecorder{} }}
	item := elem("box", box.Key, 0, 1, 1)
	item.Nillable = true
	holder := &Type{
		Key:     pn("Holder").String(),
		Content: group(SequenceParticle, Inline, 1, 1, item),
	}
	p := &Program{
		Elements: []*Element{{Name: pn("holder"), Type: holder.Key}},
		Types:    map[string]*Type{holder.Key: holder, box.Key: box},
	}

	v, err := decodeString(t, p, `<holder xmlns="urn:person" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><box xsi:nil="true"/></holder>`)
	require.NoError(t, err)
	got := v.(*Value).Get(0)
	require.Len(t, got, 1)
	rec, ok := got[0].(*nilRecorder)
	require.True(t, ok, "%T", got[0])
	assert.True(t, rec.nilled)

	v, err = decodeString(t, p, `<holder xmlns="urn:person"><box/></holder>`)
	require.NoError(t, err)
	assert.False(t, v.(*Value).Get(0)[0].(*nilRecorder).nilled)
}

func TestDecodeMixedAndSimpleContent(t *testing.T) {
	para := &Type{
		Key:     pn("Para").String(),
		Mixed:   true,
		Content: group(SequenceParticle, Inline, 1, 1, elem("b", xsdKey("string"), 0, 0, Unbounded)),
	}
	price := &Type{
		Key:    pn("Price").String(),
		Attrs:  []*AttrUse{{Slot: 0, Name: QName{Local: "currency"}, Type: xsdKey("token"), Default: "USD", HasDefault: true}},
		Simple: xsdKey("decimal"),
	}
	p := &Program{
		Elements: []*Element{
			{Name: pn("para"), Type: para.Key},
			{Name: pn("price"), Type: price.Key},
		},
		Types: map[string]*Type{para.Key: para, price.Key: price},
	}

	v, err := decodeString(t, p, `<para xmlns="urn:person">Hello <b>big</b> world</para>`)
	require.NoError(t, err)
	assert.Equal(t, "Hello  world", v.(*Value).Text)
	assert.Equal(t, []any{"big"}, v.(*Value).Get(0))

	v, err = decodeString(t, p, `<price xmlns="urn:person"> 9.99 </price>`)
	require.NoError(t, err)
	assert.Equal(t, "9.99", v.(*Value).Text)
	currency, _ := v.(*Value).Attr(0)
	assert.Equal(t, "USD", currency)

	_, err = decodeString(t, p, `<price xmlns="urn:person">cheap</price>`)
	var lexErr *LexicalError
	assert.ErrorAs(t, err, &lexErr)
}

func TestDecodeWildcards(t *testing.T) {
	ext := &Type{
		Key: pn("Ext").String(),
		Content: group(SequenceParticle, Inline, 1, 1,
			&Particle{Kind: AnyParticle, Slot: 0, Min: 0, Max: Unbounded, Label: "any", Wildcard: NewWildcard("##other", "lax", personNS)},
		),
	}
	strict := &Type{
		Key: pn("Strict").String(),
		Content: group(SequenceParticle, Inline, 1, 1,
			&Particle{Kind: AnyParticle, Slot: 0, Min: 1, Max: 1, Label: "any", Wildcard: NewWildcard("##any", "strict", personNS)},
		),
	}
	p := &Program{
		Elements: []*Element{
			{Name: pn("ext"), Type: ext.Key},
			{Name: pn("strict"), Type: strict.Key},
			{Name: QName{Namespace: "urn:x", Local: "known"}, Type: xsdKey("string")},
		},
		Types: map[string]*Type{ext.Key: ext, strict.Key: strict},
	}

	v, err := decodeString(t, p, `<ext xmlns="urn:person" xmlns:x="urn:x"><x:a><x:b/></x:a><x:c/></ext>`)
	require.NoError(t, err)
	nodes := v.(*Value).Get(0)
	require.Len(t, nodes, 2)
	assert.Equal(t, QName{Namespace: "urn:x", Local: "a"}, nodes[0].(*Node).Name)
	assert.Len(t, nodes[0].(*Node).Elements(), 1)

	_, err = decodeString(t, p, `<ext xmlns="urn:person"><name/></ext>`)
	assert.ErrorContains(t, err, "unexpected element", "##other excludes the target namespace")

	_, err = decodeString(t, p, `<strict xmlns="urn:person" xmlns:x="urn:x"><x:known/></strict>`)
	assert.NoError(t, err)
	_, err = decodeString(t, p, `<strict xmlns="urn:person" xmlns:x="urn:x"><x:unknown/></strict>`)
	assert.ErrorContains(t, err, "processContents='strict'")
}

func TestDecodeSubstitution(t *testing.T) {
	head := elem("shape", xsdKey("string"), 0, 1, Unbounded)
	head.Abstract = true
	head.Subst = []Member{
		{Name: pn("circle"), Type: xsdKey("int")},
		{Name: pn("label"), Type: xsdKey("string")},
	}
	drawing := &Type{Key: pn("Drawing").String(), Content: group(SequenceParticle, Inline, 1, 1, head)}
	p := &Program{
		Elements: []*Element{
			{Name: pn("drawing"), Type: drawing.Key},
			{Name: pn("shape"), Type: xsdKey("string"), Abstract: true},
		},
		Types: map[string]*Type{drawing.Key: drawing},
	}

	v, err := decodeString(t, p, `<drawing xmlns="urn:person"><circle>3</circle><label>x</label></drawing>`)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3), "x"}, v.(*Value).Get(0))

	_, err = decodeString(t, p, `<drawing xmlns="urn:person"><shape>3</shape></drawing>`)
	assert.Error(t, err, "abstract head cannot appear")

	_, err = decodeString(t, p, `<shape xmlns="urn:person">3</shape>`)
	assert.ErrorContains(t, err, "abstract")
}

func TestDecodeDepthLimit(t *testing.T) {
	tree := &Type{
		Key:     pn("Tree").String(),
		Content: group(SequenceParticle, Inline, 1, 1, elem("tree", pn("Tree").String(), 0, 0, 1)),
	}
	p := &Program{
		Elements: []*Element{{Name: pn("tree"), Type: tree.Key}},
		Types:    map[string]*Type{tree.Key: tree},
	}

	root := &Node{Name: pn("tree")}
	n := root
	for i := 0; i < MaxDepth+1; i++ {
		child := &Node{Name: pn("tree")}
		n.Children = []Child{{Elem: child}}
		n = child
	}
	_, err := p.DecodeNode(root)
	assert.ErrorContains(t, err, "nesting exceeds")
}

func TestLink(t *testing.T) {
	p := &Program{
		Elements: []*Element{{Name: pn("a"), Type: pn("Missing").String()}},
	}
	assert.ErrorContains(t, p.Link(), "unknown type")
	_, ok := p.Element(pn("a"))
	assert.False(t, ok)

	p = &Program{
		Elements: []*Element{
			{Name: pn("a"), Type: xsdKey("string")},
			{Name: pn("a"), Type: xsdKey("int")},
		},
	}
	assert.ErrorContains(t, p.Link(), "duplicate global element")

	bad := &Type{Key: "t", Content: &Particle{Kind: GroupParticle, Group: "nope", Min: 1, Max: 1}}
	p = &Program{Types: map[string]*Type{"t": bad}}
	assert.ErrorContains(t, p.Link(), "unknown group")

	p = personProgram()
	require.NoError(t, p.Link())
	e, ok := p.Element(pn("person"))
	require.True(t, ok)
	assert.Equal(t, pn("Person").String(), e.Type)
}
