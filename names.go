package xsdgen

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// reserved are package-level names generated code always declares.
var reserved = map[string]bool{
	"Builder": true,
	"Program": true,
	"Decode":  true,
}

// builderMethods may not be used as field names.
var builderMethods = map[string]bool{
	"SetAttr": true,
	"SetText": true,
	"Add":     true,
	"Nested":  true,
	"SetNil":  true,
}

// Namer derives Go identifiers from schema names. Package-level names
// are unique; collisions get a numeric suffix in the order names are
// requested, so callers must request them deterministically.
type Namer struct {
	prefixes  map[string]string
	overrides map[string]string
	used      map[string]bool
	title     cases.Caser
}

// NewNamer returns a namer using the prefixes and name overrides of cfg.
func NewNamer(cfg *Config) *Namer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Namer{
		prefixes:  cfg.Prefixes,
		overrides: cfg.Names,
		used:      make(map[string]bool),
		title:     cases.Title(language.Und, cases.NoLower),
	}
}

// Ident converts a schema name to an exported Go identifier.
func (n *Namer) Ident(name string) string {
	var sb strings.Builder
	for _, word := range splitWords(name) {
		sb.WriteString(n.title.String(word))
	}
	id := sb.String()
	if id == "" {
		return "X"
	}
	if first := []rune(id)[0]; !unicode.IsLetter(first) {
		id = "X" + id
	}
	return id
}

// Decl returns the unique package-level name of the declaration q.
func (n *Namer) Decl(q QName) string {
	if name, ok := n.overrides[q.String()]; ok {
		return n.Reserve(name)
	}
	return n.Reserve(n.prefixes[q.Namespace] + n.Ident(q.Local))
}

// Reserve claims name at package level, suffixing it until it is free.
func (n *Namer) Reserve(name string) string {
	name = escape(name)
	if reserved[name] {
		name += "_"
	}
	candidate := name
	for i := 2; n.used[candidate]; i++ {
		candidate = name + strconv.Itoa(i)
	}
	n.used[candidate] = true
	return candidate
}

// escape appends an underscore to Go keywords.
func escape(name string) string {
	if token.IsKeyword(name) {
		return name + "_"
	}
	return name
}

// fieldScope hands out the field names of one struct.
type fieldScope struct {
	used map[string]bool
}

func newFieldScope() *fieldScope {
	return &fieldScope{used: make(map[string]bool)}
}

func (s *fieldScope) name(base string) string {
	base = escape(base)
	if builderMethods[base] {
		base += "_"
	}
	candidate := base
	for i := 2; s.used[candidate]; i++ {
		candidate = base + strconv.Itoa(i)
	}
	s.used[candidate] = true
	return candidate
}

// splitWords breaks a name at punctuation and at lower-to-upper case
// changes: "complexType-list.item" becomes complex, Type, list, item.
func splitWords(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range name {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return words
}
