package xsdrt

import (
	"fmt"
	"io"
	"strings"
)

// MaxDepth bounds element nesting in decoded documents.
const MaxDepth = 4096

// Decode parses an XML document and decodes its root element.
func (p *Program) Decode(r io.Reader) (any, error) {
	root, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return p.DecodeNode(root)
}

// DecodeNode decodes root against the global element declaration of the
// same name. Complex values are Builders; simple values are their Go
// values; xs:anyType content is the *Node itself.
func (p *Program) DecodeNode(root *Node) (any, error) {
	if err := p.Link(); err != nil {
		return nil, fmt.Errorf("failed to link program: %w", err)
	}
	el, ok := p.elems[root.Name]
	if !ok {
		return nil, at(&ValidationError{Reason: "no global element declaration"}, root)
	}
	if el.Abstract {
		return nil, at(&ValidationError{Reason: "element is abstract"}, root)
	}
	d := &decoder{prog: p, s: NewStream(root)}
	d.s.Next()
	return d.value(root, el.Type, el.Nillable)
}

// DecodeElement decodes root, which must be the element name.
func (p *Program) DecodeElement(root *Node, name QName) (any, error) {
	if root.Name != name {
		return nil, at(&ValidationError{Reason: fmt.Sprintf("expected root element %s", name)}, root)
	}
	return p.DecodeNode(root)
}

type decoder struct {
	prog *Program
	s    *Stream
	// exhausted is the particle that most recently reached maxOccurs;
	// it names the culprit when the next element is rejected.
	exhausted *Particle
	frame     *frame
	depth     int
}

// frame is the element whose content is being matched.
type frame struct {
	node  *Node
	mixed bool
	text  strings.Builder
}

func isNil(n *Node) bool {
	v, ok := n.Attr(QName{Namespace: XSINamespace, Local: "nil"})
	v = strings.TrimSpace(v)
	return ok && (v == "true" || v == "1")
}

// value decodes the element n whose start event was just consumed.
func (d *decoder) value(n *Node, key string, nillable bool) (any, error) {
	t, complexType := d.prog.Types[key]
	if isNil(n) {
		if !nillable {
			return nil, at(&ValidationError{Reason: "xsi:nil on an element that is not nillable"}, n)
		}
		if err := d.empty(n); err != nil {
			return nil, err
		}
		if !complexType {
			return nil, nil
		}
		b := d.newBuilder(t, n)
		if s, ok := b.(NilSetter); ok {
			s.SetNil()
		}
		if err := d.attributes(n, t, b); err != nil {
			return nil, err
		}
		return b, nil
	}
	if complexType {
		return d.complex(n, t)
	}
	if key == AnyTypeKey {
		d.s.Skip()
		return n, nil
	}
	for _, a := range n.Attrs {
		if a.Name.Namespace != XSINamespace {
			return nil, at(&ValidationError{Attribute: a.Name, Reason: "attribute not allowed on an element of simple type"}, n)
		}
	}
	text, err := d.simpleText(n)
	if err != nil {
		return nil, err
	}
	return d.prog.ParseSimple(key, text, n)
}

func (d *decoder) newBuilder(t *Type, n *Node) Builder {
	var b Builder
	if t.New != nil {
		b = t.New()
	} else {
		b = &Value{Type: t.Key}
	}
	if s, ok := b.(scoped); ok {
		s.setElement(n.Name, n.Decls)
	}
	return b
}

func (d *decoder) complex(n *Node, t *Type) (Builder, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > MaxDepth {
		return nil, at(&ValidationError{Reason: fmt.Sprintf("element nesting exceeds %d", MaxDepth)}, n)
	}

	b := d.newBuilder(t, n)
	if err := d.attributes(n, t, b); err != nil {
		return nil, err
	}

	// Simple content
	if t.Simple != "" {
		text, err := d.simpleText(n)
		if err != nil {
			return nil, err
		}
		v, err := d.prog.ParseSimple(t.Simple, text, n)
		if err != nil {
			return nil, err
		}
		if err := b.SetText(v); err != nil {
			return nil, at(&ValidationError{Reason: err.Error()}, n)
		}
		return b, nil
	}

	// Element content
	outer := d.frame
	d.frame = &frame{node: n, mixed: t.Mixed}
	defer func() { d.frame = outer }()
	if t.Content != nil {
		if _, err := d.occurs(t.Content, b); err != nil {
			return nil, err
		}
	}
	ev, err := d.peek()
	if err != nil {
		return nil, err
	}
	if ev.Kind == StartElement {
		return nil, d.unexpected(ev.Node)
	}
	d.s.Next()
	if t.Mixed && d.frame.text.Len() > 0 {
		if err := b.SetText(d.frame.text.String()); err != nil {
			return nil, at(&ValidationError{Reason: err.Error()}, n)
		}
	}
	return b, nil
}

// attributes matches the attributes of n against the uses of t, then
// fills in defaults and fixed values for the missing ones.
func (d *decoder) attributes(n *Node, t *Type, b Builder) error {
	seen := make([]bool, len(t.Attrs))
	for _, a := range n.Attrs {
		if a.Name.Namespace == XSINamespace {
			continue
		}
		i := -1
		for j, use := range t.Attrs {
			if use.Name == a.Name {
				i = j
				break
			}
		}
		if i < 0 {
			if t.AnyAttr != nil && t.AnyAttr.Matches(a.Name.Namespace) {
				if err := b.SetAttr(AnyAttrSlot, a); err != nil {
					return at(&ValidationError{Attribute: a.Name, Reason: err.Error()}, n)
				}
				continue
			}
			return at(&ValidationError{Attribute: a.Name, Reason: "attribute not allowed"}, n)
		}
		use := t.Attrs[i]
		seen[i] = true
		if use.HasFixed && strings.TrimSpace(a.Value) != strings.TrimSpace(use.Fixed) {
			return at(&ValidationError{
				Attribute: a.Name,
				Reason:    fmt.Sprintf("value '%s' does not match fixed value '%s'", a.Value, use.Fixed),
			}, n)
		}
		v, err := d.prog.ParseSimple(use.Type, a.Value, n)
		if err != nil {
			return err
		}
		if err := b.SetAttr(use.Slot, v); err != nil {
			return at(&ValidationError{Attribute: a.Name, Reason: err.Error()}, n)
		}
	}

	for i, use := range t.Attrs {
		if seen[i] {
			continue
		}
		lexical := use.Default
		switch {
		case use.Required:
			return at(&ValidationError{Attribute: use.Name, Reason: "required attribute is missing"}, n)
		case use.HasFixed:
			lexical = use.Fixed
		case !use.HasDefault:
			continue
		}
		v, err := d.prog.ParseSimple(use.Type, lexical, n)
		if err != nil {
			return err
		}
		if err := b.SetAttr(use.Slot, v); err != nil {
			return at(&ValidationError{Attribute: use.Name, Reason: err.Error()}, n)
		}
	}
	return nil
}

// simpleText collects the character data of n up to its end event.
func (d *decoder) simpleText(n *Node) (string, error) {
	var sb strings.Builder
	for {
		ev := d.s.Next()
		switch ev.Kind {
		case CharData:
			sb.WriteString(ev.Text)
		case StartElement:
			return "", at(&ValidationError{Reason: fmt.Sprintf("element %s not allowed in simple content", ev.Node.Name)}, ev.Node)
		case EndElement, EndDocument:
			return sb.String(), nil
		}
	}
}

// empty consumes the content of a nilled element, which must be empty.
func (d *decoder) empty(n *Node) error {
	for {
		ev := d.s.Next()
		switch ev.Kind {
		case CharData:
			if strings.TrimSpace(ev.Text) != "" {
				return at(&ValidationError{Reason: "nilled element must be empty"}, n)
			}
		case StartElement:
			return at(&ValidationError{Reason: "nilled element must be empty"}, ev.Node)
		case EndElement, EndDocument:
			return nil
		}
	}
}

// peek returns the next element or end event, absorbing character data
// into the current frame.
func (d *decoder) peek() (Event, error) {
	for {
		ev := d.s.Peek()
		if ev.Kind != CharData {
			return ev, nil
		}
		d.s.Next()
		if d.frame != nil && d.frame.mixed {
			d.frame.text.WriteString(ev.Text)
			continue
		}
		if strings.TrimSpace(ev.Text) != "" {
			return ev, at(&ValidationError{Reason: "character data not allowed in element-only content"}, ev.Node)
		}
	}
}

// occurs matches p between Min and Max times and reports whether any
// input was consumed.
func (d *decoder) occurs(p *Particle, b Builder) (bool, error) {
	count := 0
	consumed := false
	for p.Max == Unbounded || count < p.Max {
		ev, err := d.peek()
		if err != nil {
			return consumed, err
		}
		if ev.Kind != StartElement || !p.first.has(ev.Node.Name) {
			break
		}
		ok, err := d.once(p, b)
		if err != nil {
			return consumed, err
		}
		if !ok {
			break
		}
		consumed = true
		count++
	}
	if p.Max != Unbounded && count == p.Max && d.exhausted == nil {
		d.exhausted = p
	}
	if count < p.Min && !p.nullable {
		return consumed, d.missing(p)
	}
	return consumed, nil
}

// once matches a single occurrence of p.
func (d *decoder) once(p *Particle, b Builder) (bool, error) {
	switch p.Kind {
	case ElementParticle:
		n := d.s.Next().Node
		d.exhausted = nil
		key, nillable := p.Type, p.Nillable
		if n.Name != p.Name {
			for _, m := range p.Subst {
				if m.Name == n.Name {
					key, nillable = m.Type, m.Nillable
					break
				}
			}
		}
		v, err := d.value(n, key, nillable)
		if err != nil {
			return true, err
		}
		d.exhausted = nil
		if err := b.Add(p.Slot, v); err != nil {
			return true, at(&ValidationError{Particle: p.Label, Reason: err.Error()}, n)
		}
		return true, nil

	case AnyParticle:
		n := d.s.Next().Node
		if p.Wildcard.Process == StrictProcess {
			if _, declared := d.prog.elems[n.Name]; !declared {
				return true, at(&ValidationError{Particle: p.Label,
					Reason: "no element declaration found (processContents='strict')"}, n)
			}
		}
		d.s.Skip()
		if err := b.Add(p.Slot, n); err != nil {
			return true, at(&ValidationError{Particle: p.Label, Reason: err.Error()}, n)
		}
		return true, nil

	case SequenceParticle:
		nb := d.nested(p, b)
		consumed := false
		for _, c := range p.Children {
			ok, err := d.occurs(c, nb)
			consumed = consumed || ok
			if err != nil {
				return consumed, err
			}
		}
		return consumed, d.close(p, b, nb, consumed)

	case ChoiceParticle:
		ev, err := d.peek()
		if err != nil {
			return false, err
		}
		for _, c := range p.Children {
			if ev.Kind != StartElement || !c.first.has(ev.Node.Name) {
				continue
			}
			// Leftmost alternative whose lookahead matches wins.
			nb := d.nested(p, b)
			ok, err := d.occurs(c, nb)
			if err != nil {
				return ok, err
			}
			return ok, d.close(p, b, nb, ok)
		}
		return false, nil

	case AllParticle:
		nb := d.nested(p, b)
		counts := make([]int, len(p.Children))
		consumed := false
		for {
			ev, err := d.peek()
			if err != nil {
				return consumed, err
			}
			if ev.Kind != StartElement {
				break
			}
			i := -1
			for j, c := range p.Children {
				if c.first.has(ev.Node.Name) {
					i = j
					break
				}
			}
			if i < 0 {
				break
			}
			c := p.Children[i]
			if c.Max != Unbounded && counts[i] >= c.Max {
				return consumed, at(&ValidationError{Particle: c.Label,
					Reason: fmt.Sprintf("element %s exceeds maxOccurs %d", ev.Node.Name.Local, c.Max)}, ev.Node)
			}
			if _, err := d.once(c, nb); err != nil {
				return true, err
			}
			counts[i]++
			consumed = true
		}
		for i, c := range p.Children {
			if counts[i] < c.Min && !c.nullable {
				return consumed, d.missing(c)
			}
		}
		return consumed, d.close(p, b, nb, consumed)

	case GroupParticle:
		g := d.prog.Groups[p.Group]
		var nb Builder = &Value{Type: g.Key}
		if g.New != nil {
			nb = g.New()
		}
		ok, err := d.occurs(g.Content, nb)
		if err != nil {
			return ok, err
		}
		if ok {
			if err := b.Add(p.Slot, nb); err != nil {
				return ok, at(&ValidationError{Particle: p.Label, Reason: err.Error()}, d.frame.node)
			}
		}
		return ok, nil
	}
	return false, fmt.Errorf("unknown particle kind %v", p.Kind)
}

func (d *decoder) nested(p *Particle, b Builder) Builder {
	if p.Slot == Inline {
		return b
	}
	return b.Nested(p.Slot)
}

// close hands a matched nested group value back to its owner.
func (d *decoder) close(p *Particle, b, nb Builder, consumed bool) error {
	if p.Slot == Inline || !consumed {
		return nil
	}
	if err := b.Add(p.Slot, nb); err != nil {
		return at(&ValidationError{Particle: p.Label, Reason: err.Error()}, d.frame.node)
	}
	return nil
}

// missing reports the first required particle below p that did not match.
func (d *decoder) missing(p *Particle) error {
	for p.Kind == SequenceParticle {
		var next *Particle
		for _, c := range p.Children {
			if !c.Empty() {
				next = c
				break
			}
		}
		if next == nil {
			break
		}
		p = next
	}
	reason := fmt.Sprintf("expected %s", p.first.describe())
	node := d.frame.node
	if ev, err := d.peek(); err == nil && ev.Kind == StartElement {
		if e := d.exhausted; e != nil && e.first.has(ev.Node.Name) {
			return d.unexpected(ev.Node)
		}
		reason += fmt.Sprintf(", found %s", ev.Node.Name)
		node = ev.Node
	} else {
		reason += fmt.Sprintf(", found end of %s", d.frame.node.Name.Local)
	}
	return &ValidationError{
		Element:  node.Name,
		Particle: p.Label,
		Line:     node.Line,
		Column:   node.Column,
		Reason:   reason,
	}
}

// unexpected reports an element no particle could absorb.
func (d *decoder) unexpected(n *Node) error {
	if p := d.exhausted; p != nil && p.first.has(n.Name) {
		return at(&ValidationError{
			Particle: p.Label,
			Reason:   fmt.Sprintf("element %s exceeds maxOccurs %d", n.Name.Local, p.Max),
		}, n)
	}
	return at(&ValidationError{
		Reason: fmt.Sprintf("unexpected element in content of %s", d.frame.node.Name),
	}, n)
}
