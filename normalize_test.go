package xsdgen

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// normalizeSchema runs every model stage over one inline schema body.
func normalizeSchema(t *testing.T, body string) (*Model, error) {
	t.Helper()
	m, err := deriveSchema(t, nil, body)
	require.NoError(t, err)
	return m, Normalize(m)
}

// shapeOf renders a particle tree compactly: kinds, element names and
// occurrence bounds.
func shapeOf(p *Particle) string {
	if p == nil {
		return "<nil>"
	}
	var s string
	switch p.Kind {
	case ElementRef:
		s = p.Element.Name.Local
	case GroupRef:
		s = "group " + p.Ref.Local
	case WildcardParticle:
		s = "any"
	default:
		s = p.Kind.String() + "("
		for i, c := range p.Children {
			if i > 0 {
				s += " "
			}
			s += shapeOf(c)
		}
		s += ")"
	}
	switch {
	case p.Min == 1 && p.Max == 1:
	case p.Min == 0 && p.Max == 1:
		s += "?"
	case p.Min == 0 && p.Max == Unbounded:
		s += "*"
	case p.Min == 1 && p.Max == Unbounded:
		s += "+"
	default:
		s += fmt.Sprintf("{%d,%d}", p.Min, p.Max)
	}
	return s
}

func TestNormalizeGroups(t *testing.T) {
	m, err := normalizeSchema(t, `
		<xs:group name="names">
			<xs:sequence>
				<xs:element name="first" type="xs:string"/>
				<xs:element name="last" type="xs:string"/>
			</xs:sequence>
		</xs:group>
		<xs:group name="contact">
			<xs:choice>
				<xs:element name="email" type="xs:string"/>
				<xs:element name="phone" type="xs:string"/>
			</xs:choice>
		</xs:group>
		<xs:complexType name="person">
			<xs:sequence>
				<xs:group ref="ex:names"/>
				<xs:sequence>
					<xs:element name="age" type="xs:int" minOccurs="0"/>
				</xs:sequence>
				<xs:group ref="ex:contact" maxOccurs="unbounded"/>
				<xs:sequence minOccurs="0"><xs:element name="note" type="xs:string"/></xs:sequence>
				<xs:choice><xs:sequence/></xs:choice>
				<xs:element name="never" type="xs:string" minOccurs="0" maxOccurs="0"/>
			</xs:sequence>
		</xs:complexType>`)
	require.NoError(t, err)

	rt := m.Types[ex("person").String()]
	assert.Equal(t, "sequence(first last age? choice(email phone)+ note?)", shapeOf(rt.Content))
	assert.Empty(t, m.Groups)
}

func TestNormalizeElementReferences(t *testing.T) {
	m, err := normalizeSchema(t, `
		<xs:element name="shape" type="xs:string" abstract="true"/>
		<xs:element name="circle" type="xs:string" substitutionGroup="ex:shape"/>
		<xs:element name="square" type="xs:int" substitutionGroup="ex:shape"/>
		<xs:complexType name="drawing">
			<xs:sequence><xs:element ref="ex:shape" maxOccurs="unbounded"/></xs:sequence>
		</xs:complexType>`)
	require.NoError(t, err)

	p := m.Types[ex("drawing").String()].Content
	require.Equal(t, ElementRef, p.Kind)
	assert.Equal(t, Unbounded, p.Max)
	assert.Equal(t, ex("shape"), p.Ref)
	require.NotNil(t, p.Element)
	assert.True(t, p.Element.Abstract)
	require.Len(t, p.Subst, 2)
	assert.Equal(t, ex("circle"), p.Subst[0].Name)
	assert.Equal(t, ex("square"), p.Subst[1].Name)
}

func TestNormalizeRecursiveGroup(t *testing.T) {
	m, err := normalizeSchema(t, `
		<xs:group name="expr">
			<xs:choice>
				<xs:element name="value" type="xs:int"/>
				<xs:sequence>
					<xs:element name="op" type="xs:string"/>
					<xs:group ref="ex:expr" maxOccurs="unbounded"/>
				</xs:sequence>
			</xs:choice>
		</xs:group>
		<xs:complexType name="formula">
			<xs:group ref="ex:expr"/>
		</xs:complexType>`)
	require.NoError(t, err)

	rt := m.Types[ex("formula").String()]
	assert.Equal(t, "choice(value sequence(op group expr+))", shapeOf(rt.Content))
	require.Contains(t, m.Groups, ex("expr").String())
	g := m.Groups[ex("expr").String()]
	assert.Equal(t, ex("expr"), g.Name)
	assert.Equal(t, "choice(value sequence(op group expr+))", shapeOf(g.Content))
}

func TestNormalizeAll(t *testing.T) {
	m, err := normalizeSchema(t, `
		<xs:group name="props">
			<xs:all>
				<xs:element name="a" type="xs:string"/>
				<xs:element name="b" type="xs:string" minOccurs="0"/>
			</xs:all>
		</xs:group>
		<xs:complexType name="onlyAll"><xs:group ref="ex:props"/></xs:complexType>`)
	require.NoError(t, err)
	assert.Equal(t, "all(a b?)", shapeOf(m.Types[ex("onlyAll").String()].Content))

	_, err = normalizeSchema(t, `
		<xs:group name="props">
			<xs:all>
				<xs:element name="a" type="xs:string"/>
				<xs:element name="b" type="xs:string"/>
			</xs:all>
		</xs:group>
		<xs:complexType name="mixedAll">
			<xs:sequence>
				<xs:group ref="ex:props"/>
				<xs:element name="c" type="xs:string"/>
			</xs:sequence>
		</xs:complexType>`)
	var unsupported *UnsupportedConstructError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "xs:all nested in xs:sequence", unsupported.Construct)
	assert.Equal(t, "complexType {http://example.com}mixedAll", unsupported.Decl)
}

func TestNormalizeEmptyContent(t *testing.T) {
	m, err := normalizeSchema(t, `
		<xs:complexType name="empty">
			<xs:sequence><xs:choice/><xs:sequence/></xs:sequence>
			<xs:attribute name="a" type="xs:string"/>
		</xs:complexType>`)
	require.NoError(t, err)
	assert.Nil(t, m.Types[ex("empty").String()].Content)
}
