package xsdrt

import (
	"fmt"
	"sort"
	"sync"
)

// Kind identifies the shape of a Particle.
type Kind uint8

const (
	ElementParticle Kind = iota + 1
	SequenceParticle
	ChoiceParticle
	AllParticle
	AnyParticle
	GroupParticle
)

func (k Kind) String() string {
	switch k {
	case ElementParticle:
		return "element"
	case SequenceParticle:
		return "sequence"
	case ChoiceParticle:
		return "choice"
	case AllParticle:
		return "all"
	case AnyParticle:
		return "any"
	case GroupParticle:
		return "group"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

const (
	// Unbounded is the Max of a particle with maxOccurs="unbounded".
	Unbounded = -1
	// Inline marks a model group whose children write straight into the
	// enclosing builder.
	Inline = -1
	// AnyAttrSlot is passed to SetAttr for attributes matched by an
	// attribute wildcard; the value is an Attr.
	AnyAttrSlot = -1
)

// Member is an element accepted in place of a particle's declared
// element through a substitution group.
type Member struct {
	Name     QName
	Type     string
	Nillable bool
}

// Particle is one node of a content model grammar.
type Particle struct {
	Kind  Kind
	Min   int
	Max   int
	Slot  int
	Label string

	// ElementParticle
	Name     QName
	Type     string
	Nillable bool
	Abstract bool
	Subst    []Member

	// AnyParticle
	Wildcard *Wildcard

	// GroupParticle
	Group string

	Children []*Particle

	first    nameSet
	nullable bool
}

// Empty reports whether p can match without consuming input.
func (p *Particle) Empty() bool {
	return p.Min == 0 || p.nullable
}

// AttrUse is an attribute a complex type admits.
type AttrUse struct {
	Slot       int
	Name       QName
	Type       string
	Required   bool
	Default    string
	HasDefault bool
	Fixed      string
	HasFixed   bool
}

// Type is the grammar of a complex type.
type Type struct {
	Key     string
	Name    QName
	Attrs   []*AttrUse
	AnyAttr *Wildcard
	// Content is nil for empty and simple content.
	Content *Particle
	// Simple is the key of the simple type of simple content.
	Simple string
	Mixed  bool
	New    func() Builder
}

// Group is a model group that refers to itself; the matcher enters it
// through a GroupParticle.
type Group struct {
	Key     string
	Name    QName
	Content *Particle
	New     func() Builder
}

// Element is a global element declaration.
type Element struct {
	Name     QName
	Type     string
	Nillable bool
	Abstract bool
}

// Program is the complete grammar of a schema: what generated code
// embeds and what the generic decoder interprets.
type Program struct {
	Elements []*Element
	Types    map[string]*Type
	Simple   map[string]*Simple
	Groups   map[string]*Group

	once  sync.Once
	err   error
	elems map[QName]*Element
}

// Element returns the global element declaration for name.
func (p *Program) Element(name QName) (*Element, bool) {
	if err := p.Link(); err != nil {
		return nil, false
	}
	e, ok := p.elems[name]
	return e, ok
}

// Link validates type references and computes the lookahead sets the
// matcher needs. It runs once; later calls return the first result.
func (p *Program) Link() error {
	p.once.Do(func() {
		p.err = p.link()
	})
	return p.err
}

func (p *Program) link() error {
	p.elems = make(map[QName]*Element, len(p.Elements))
	for _, e := range p.Elements {
		if _, dup := p.elems[e.Name]; dup {
			return fmt.Errorf("duplicate global element %s", e.Name)
		}
		if !p.knownType(e.Type) {
			return fmt.Errorf("element %s: unknown type %s", e.Name, e.Type)
		}
		p.elems[e.Name] = e
	}

	var all []*Particle
	var collect func(*Particle) error
	collect = func(part *Particle) error {
		if part == nil {
			return nil
		}
		for _, c := range part.Children {
			if err := collect(c); err != nil {
				return err
			}
		}
		switch part.Kind {
		case ElementParticle:
			if !p.knownType(part.Type) {
				return fmt.Errorf("element %s: unknown type %s", part.Name, part.Type)
			}
			for _, m := range part.Subst {
				if !p.knownType(m.Type) {
					return fmt.Errorf("element %s: unknown type %s", m.Name, m.Type)
				}
			}
		case GroupParticle:
			if _, ok := p.Groups[part.Group]; !ok {
				return fmt.Errorf("unknown group %s", part.Group)
			}
		case AnyParticle:
			if part.Wildcard == nil {
				return fmt.Errorf("wildcard particle without constraint")
			}
		}
		all = append(all, part)
		return nil
	}
	for _, key := range sortedKeys(p.Types) {
		t := p.Types[key]
		if err := collect(t.Content); err != nil {
			return fmt.Errorf("type %s: %w", key, err)
		}
		for _, a := range t.Attrs {
			if !p.knownSimple(a.Type) {
				return fmt.Errorf("type %s: attribute %s: unknown simple type %s", key, a.Name, a.Type)
			}
		}
		if t.Simple != "" && !p.knownSimple(t.Simple) {
			return fmt.Errorf("type %s: unknown simple type %s", key, t.Simple)
		}
	}
	for _, key := range sortedKeys(p.Groups) {
		if err := collect(p.Groups[key].Content); err != nil {
			return fmt.Errorf("group %s: %w", key, err)
		}
	}

	// Lookahead sets only grow, so iterate to a fixed point; this also
	// settles groups that refer to themselves.
	for changed := true; changed; {
		changed = false
		for _, part := range all {
			if p.analyze(part) {
				changed = true
			}
		}
	}
	return nil
}

// analyze recomputes first and nullable for part from its children and
// reports whether either grew.
func (p *Program) analyze(part *Particle) bool {
	var first nameSet
	nullable := false
	switch part.Kind {
	case ElementParticle:
		if !part.Abstract {
			first.addName(part.Name)
		}
		for _, m := range part.Subst {
			first.addName(m.Name)
		}
	case AnyParticle:
		first.addWildcard(part.Wildcard)
	case SequenceParticle:
		nullable = true
		for _, c := range part.Children {
			first.union(&c.first)
			if !c.Empty() {
				nullable = false
				break
			}
		}
	case AllParticle:
		nullable = true
		for _, c := range part.Children {
			first.union(&c.first)
			if !c.Empty() {
				nullable = false
			}
		}
	case ChoiceParticle:
		nullable = len(part.Children) == 0
		for _, c := range part.Children {
			first.union(&c.first)
			if c.Empty() {
				nullable = true
			}
		}
	case GroupParticle:
		if g := p.Groups[part.Group]; g != nil && g.Content != nil {
			first.union(&g.Content.first)
			nullable = g.Content.Empty()
		} else {
			nullable = true
		}
	}
	grew := first.size() > part.first.size() || (nullable && !part.nullable)
	part.first = first
	part.nullable = nullable
	return grew
}

func (p *Program) knownType(key string) bool {
	if _, ok := p.Types[key]; ok {
		return true
	}
	return key == AnyTypeKey || p.knownSimple(key)
}

func (p *Program) knownSimple(key string) bool {
	if _, ok := p.Simple[key]; ok {
		return true
	}
	_, ok := builtinByKey(key)
	return ok
}

// nameSet is the set of element names a particle can start with.
type nameSet struct {
	names map[QName]struct{}
	wild  []*Wildcard
}

func (s *nameSet) addName(n QName) {
	if s.names == nil {
		s.names = make(map[QName]struct{})
	}
	s.names[n] = struct{}{}
}

func (s *nameSet) addWildcard(w *Wildcard) {
	for _, have := range s.wild {
		if have == w {
			return
		}
	}
	s.wild = append(s.wild, w)
}

func (s *nameSet) union(o *nameSet) {
	for n := range o.names {
		s.addName(n)
	}
	for _, w := range o.wild {
		s.addWildcard(w)
	}
}

func (s *nameSet) size() int {
	return len(s.names) + len(s.wild)
}

func (s *nameSet) has(n QName) bool {
	if _, ok := s.names[n]; ok {
		return true
	}
	for _, w := range s.wild {
		if w.Matches(n.Namespace) {
			return true
		}
	}
	return false
}

// describe lists the expected names for error messages.
func (s *nameSet) describe() string {
	var names []string
	for n := range s.names {
		names = append(names, n.String())
	}
	sort.Strings(names)
	for _, w := range s.wild {
		names = append(names, "any element from "+w.Namespace)
	}
	switch len(names) {
	case 0:
		return "nothing"
	case 1:
		return names[0]
	}
	out := "one of "
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
