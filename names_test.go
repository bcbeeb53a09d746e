package xsdgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "complexType-list.item", want: []string{"complex", "Type", "list", "item"}},
		{in: "person.name#element", want: []string{"person", "name", "element"}},
		{in: "HTTPServer", want: []string{"HTTPServer"}},
		{in: "utf8Value", want: []string{"utf8", "Value"}},
		{in: "@lang#attribute", want: []string{"lang", "attribute"}},
		{in: "__", want: nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitWords(tt.in), tt.in)
	}
}

func TestIdent(t *testing.T) {
	n := NewNamer(nil)
	tests := map[string]string{
		"person":                "Person",
		"xmlLang":               "XmlLang",
		"complexType-list.item": "ComplexTypeListItem",
		"person.name#element":   "PersonNameElement",
		"HTTPServer":            "HTTPServer",
		"type":                  "Type",
		"2":                     "X2",
		"":                      "X",
		"_":                     "X",
	}
	for in, want := range tests {
		assert.Equal(t, want, n.Ident(in), "%q", in)
	}
}

func TestNamerReserve(t *testing.T) {
	n := NewNamer(nil)
	assert.Equal(t, "Person", n.Reserve("Person"))
	assert.Equal(t, "Person2", n.Reserve("Person"))
	assert.Equal(t, "Person3", n.Reserve("Person"))
	assert.Equal(t, "Program_", n.Reserve("Program"))
	assert.Equal(t, "Decode_", n.Reserve("Decode"))
	assert.Equal(t, "Builder_", n.Reserve("Builder"))
	assert.Equal(t, "type_", n.Reserve("type"))
}

func TestNamerDecl(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prefixes = map[string]string{exNS: "Ex"}
	cfg.Names = map[string]string{ex("person#element").String(): "PersonBody"}
	n := NewNamer(cfg)

	assert.Equal(t, "ExItem", n.Decl(ex("item")))
	assert.Equal(t, "ExItem2", n.Decl(ex("item")))
	assert.Equal(t, "Plain", n.Decl(QName{Local: "plain"}))
	assert.Equal(t, "PersonBody", n.Decl(ex("person#element")))
	assert.Equal(t, "PersonBody2", n.Decl(ex("person#element")))
}

func TestFieldScope(t *testing.T) {
	s := newFieldScope()
	assert.Equal(t, "Name", s.name("Name"))
	assert.Equal(t, "Name2", s.name("Name"))
	assert.Equal(t, "SetAttr_", s.name("SetAttr"))
	assert.Equal(t, "Nested_", s.name("Nested"))
	assert.Equal(t, "func_", s.name("func"))
	assert.Equal(t, "Program", s.name("Program"), "package-level names are free inside a struct")
}
