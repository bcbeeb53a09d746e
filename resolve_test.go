package xsdgen

import (
	"testing"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolveSchema builds and resolves one inline schema body.
func resolveSchema(t *testing.T, body string) (*Model, error) {
	t.Helper()
	g, err := BuildGraph([]Document{schemaDoc(t, "test.xsd", schemaSource(body))}, nil, nil)
	require.NoError(t, err)
	return Resolve(g, nil)
}

func TestResolveUnresolved(t *testing.T) {
	tests := []struct {
		name string
		body string
		want UnresolvedReferenceError
	}{
		{
			name: "extension base",
			body: `<xs:complexType name="t"><xs:complexContent><xs:extension base="ex:missing"/></xs:complexContent></xs:complexType>`,
			want: UnresolvedReferenceError{From: ex("t"), FromKind: TypeKind, Target: ex("missing"), Kind: TypeKind},
		},
		{
			name: "element type",
			body: `<xs:element name="e" type="ex:missing"/>`,
			want: UnresolvedReferenceError{From: ex("e"), FromKind: ElementKind, Target: ex("missing"), Kind: TypeKind},
		},
		{
			name: "element ref",
			body: `<xs:group name="g"><xs:sequence><xs:element ref="ex:missing"/></xs:sequence></xs:group>`,
			want: UnresolvedReferenceError{From: ex("g"), FromKind: GroupKind, Target: ex("missing"), Kind: ElementKind},
		},
		{
			name: "group ref",
			body: `<xs:complexType name="t"><xs:group ref="ex:missing"/></xs:complexType>`,
			want: UnresolvedReferenceError{From: ex("t"), FromKind: TypeKind, Target: ex("missing"), Kind: GroupKind},
		},
		{
			name: "attribute group ref",
			body: `<xs:attributeGroup name="ag"><xs:attributeGroup ref="ex:missing"/></xs:attributeGroup>`,
			want: UnresolvedReferenceError{From: ex("ag"), FromKind: AttributeGroupKind, Target: ex("missing"), Kind: AttributeGroupKind},
		},
		{
			name: "attribute ref",
			body: `<xs:complexType name="t"><xs:attribute ref="ex:missing"/></xs:complexType>`,
			want: UnresolvedReferenceError{From: ex("t"), FromKind: TypeKind, Target: ex("missing"), Kind: AttributeKind},
		},
		{
			name: "attribute of complex type",
			body: `<xs:complexType name="c"/><xs:attribute name="a" type="ex:c"/>`,
			want: UnresolvedReferenceError{From: ex("a"), FromKind: AttributeKind, Target: ex("c"), Kind: TypeKind},
		},
		{
			name: "substitution head",
			body: `<xs:element name="e" substitutionGroup="ex:missing"/>`,
			want: UnresolvedReferenceError{From: ex("e"), FromKind: ElementKind, Target: ex("missing"), Kind: ElementKind},
		},
		{
			name: "union member",
			body: `<xs:simpleType name="u"><xs:union memberTypes="xs:int ex:missing"/></xs:simpleType>`,
			want: UnresolvedReferenceError{From: ex("u"), FromKind: TypeKind, Target: ex("missing"), Kind: TypeKind},
		},
		{
			name: "unknown builtin",
			body: `<xs:simpleType name="s"><xs:restriction base="xs:strin"/></xs:simpleType>`,
			want: UnresolvedReferenceError{From: ex("s"), FromKind: TypeKind, Target: xsdrt.XSD("strin"), Kind: TypeKind},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveSchema(t, tt.body)
			var unresolved *UnresolvedReferenceError
			require.ErrorAs(t, err, &unresolved)
			got := *unresolved
			got.Position = Position{}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "test.xsd", unresolved.Position.File)
		})
	}
}

func TestResolveForwardReferencesAcrossDocuments(t *testing.T) {
	base := schemaDoc(t, "base.xsd", schemaSource(`<xs:complexType name="base">
		<xs:sequence><xs:element name="id" type="xs:string"/></xs:sequence>
	</xs:complexType>`))
	derived := schemaDoc(t, "derived.xsd", schemaSource(`<xs:complexType name="derived">
		<xs:complexContent><xs:extension base="ex:base"/></xs:complexContent>
	</xs:complexType>
	<xs:element name="item" type="ex:derived"/>`))

	for _, docs := range [][]Document{{base, derived}, {derived, base}} {
		g, err := BuildGraph(docs, nil, nil)
		require.NoError(t, err)
		m, err := Resolve(g, nil)
		require.NoError(t, err, "document order must not matter")
		e, ok := m.Element(ex("item"))
		require.True(t, ok)
		assert.Equal(t, ex("derived"), e.Type)
	}
}

func TestResolveUnresolvedAcrossDocuments(t *testing.T) {
	base := schemaDoc(t, "base.xsd", schemaSource(`<xs:complexType name="base">
		<xs:sequence><xs:element name="id" type="xs:string"/></xs:sequence>
	</xs:complexType>
	<xs:element name="item" type="ex:derived"/>`))
	derived := schemaDoc(t, "derived.xsd", schemaSource(`<xs:complexType name="derived">
		<xs:complexContent><xs:extension base="ex:missingBase"/></xs:complexContent>
	</xs:complexType>`))

	var errs []UnresolvedReferenceError
	for _, docs := range [][]Document{{base, derived}, {derived, base}} {
		g, err := BuildGraph(docs, nil, nil)
		require.NoError(t, err)
		_, err = Resolve(g, nil)
		var unresolved *UnresolvedReferenceError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, ex("missingBase"), unresolved.Target)
		assert.Equal(t, ex("derived"), unresolved.From)
		assert.Equal(t, "derived.xsd", unresolved.Position.File)
		errs = append(errs, *unresolved)
	}
	assert.Equal(t, errs[0], errs[1], "document order must not change the error")
}

func TestResolveSubstitutionHeads(t *testing.T) {
	m, err := resolveSchema(t, `
		<xs:element name="shape" type="ex:shapeType" abstract="true"/>
		<xs:element name="polygon" substitutionGroup="ex:shape" abstract="true"/>
		<xs:element name="square" substitutionGroup="ex:polygon"/>
		<xs:element name="circle" type="ex:circleType" substitutionGroup="ex:shape"/>
		<xs:element name="loose"/>
		<xs:complexType name="shapeType"/>
		<xs:complexType name="circleType">
			<xs:complexContent><xs:extension base="ex:shapeType"/></xs:complexContent>
		</xs:complexType>`)
	require.NoError(t, err)

	square, ok := m.Element(ex("square"))
	require.True(t, ok)
	assert.Equal(t, ex("shapeType"), square.Type, "type comes from the nearest typed head")
	loose, _ := m.Element(ex("loose"))
	assert.Equal(t, xsdrt.XSD("anyType"), loose.Type)

	var subst []string
	for _, e := range m.substitutes(ex("shape")) {
		subst = append(subst, e.Name.Local)
	}
	assert.Equal(t, []string{"circle", "square"}, subst, "abstract members are skipped")
	assert.Empty(t, m.substitutes(ex("circle")))

	// The graph keeps the declarations as written.
	decl, _ := m.Graph.Element(ex("square"))
	assert.True(t, decl.Type.IsZero())
}

func TestResolveCircularSubstitution(t *testing.T) {
	_, err := resolveSchema(t, `
		<xs:element name="a" substitutionGroup="ex:b"/>
		<xs:element name="b" substitutionGroup="ex:a"/>`)
	var derivation *InvalidDerivationError
	require.ErrorAs(t, err, &derivation)
	assert.Equal(t, "circular substitution group", derivation.Reason)
	assert.Equal(t, []QName{ex("a"), ex("b"), ex("a")}, derivation.Chain)
}
