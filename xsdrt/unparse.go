package xsdrt

import "fmt"

// Unparse renders a value decoded by the generic Value builder back into
// a Node tree rooted at the global element name. Namespace declarations
// recorded on each Value are re-declared on the element they came from.
func (p *Program) Unparse(name QName, value any) (*Node, error) {
	el, ok := p.Element(name)
	if !ok {
		return nil, fmt.Errorf("no global element declaration for %s", name)
	}
	u := &unparser{prog: p}
	return u.element(name, el.Type, value, map[string]string{"xml": XMLNamespace})
}

type unparser struct {
	prog *Program
}

var xsiNil = QName{Namespace: XSINamespace, Local: "nil"}

func (u *unparser) element(name QName, key string, value any, parent map[string]string) (*Node, error) {
	if key == AnyTypeKey {
		if n, ok := value.(*Node); ok {
			return n, nil
		}
	}
	n := &Node{Name: name, Scope: parent}
	t, complexType := u.prog.Types[key]
	if !complexType {
		if value == nil {
			n.Attrs = append(n.Attrs, Attr{Name: xsiNil, Value: "true"})
			return n, nil
		}
		text, err := u.prog.FormatSimple(key, value, parent)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", name, err)
		}
		n.Children = []Child{{Text: text}}
		return n, nil
	}

	v, ok := value.(*Value)
	if !ok {
		return nil, fmt.Errorf("element %s: expected *Value, got %T", name, value)
	}
	if !v.Element.IsZero() {
		n.Name = v.Element
	}
	if len(v.NS) > 0 {
		n.Decls = make(map[string]string, len(v.NS))
		for prefix, uri := range v.NS {
			n.Decls[prefix] = uri
		}
	}
	n.Scope = Extend(parent, n.Decls)
	if v.Nil {
		n.Attrs = append(n.Attrs, Attr{Name: xsiNil, Value: "true"})
	}

	// Attributes in declaration order
	for _, use := range t.Attrs {
		av, ok := v.Attrs[use.Slot]
		if !ok {
			continue
		}
		text, err := u.prog.FormatSimple(use.Type, av, n.Scope)
		if err != nil {
			return nil, fmt.Errorf("element %s: attribute %s: %w", n.Name, use.Name, err)
		}
		n.Attrs = append(n.Attrs, Attr{Name: use.Name, Value: text})
	}
	n.Attrs = append(n.Attrs, v.Any...)

	if v.Nil {
		return n, nil
	}
	if t.Simple != "" {
		text, err := u.prog.FormatSimple(t.Simple, v.Text, n.Scope)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", n.Name, err)
		}
		n.Children = []Child{{Text: text}}
		return n, nil
	}
	if text, ok := v.Text.(string); ok && t.Mixed && text != "" {
		n.Children = append(n.Children, Child{Text: text})
	}
	children, err := u.particle(t.Content, v, n.Scope)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", n.Name, err)
	}
	n.Children = append(n.Children, children...)
	return n, nil
}

func (u *unparser) particle(p *Particle, v *Value, scope map[string]string) ([]Child, error) {
	if p == nil {
		return nil, nil
	}
	var out []Child
	switch p.Kind {
	case ElementParticle:
		for _, item := range v.Slots[p.Slot] {
			name, key := p.Name, p.Type
			if cv, ok := item.(*Value); ok && cv.Element != p.Name {
				for _, m := range p.Subst {
					if m.Name == cv.Element {
						name, key = m.Name, m.Type
						break
					}
				}
			}
			child, err := u.element(name, key, item, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, Child{Elem: child})
		}

	case AnyParticle:
		for _, item := range v.Slots[p.Slot] {
			n, ok := item.(*Node)
			if !ok {
				return nil, fmt.Errorf("wildcard %s: expected *Node, got %T", p.Label, item)
			}
			out = append(out, Child{Elem: n})
		}

	case GroupParticle:
		g := u.prog.Groups[p.Group]
		for _, item := range v.Slots[p.Slot] {
			gv, ok := item.(*Value)
			if !ok {
				return nil, fmt.Errorf("group %s: expected *Value, got %T", p.Label, item)
			}
			children, err := u.particle(g.Content, gv, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}

	default:
		if p.Slot == Inline {
			return u.group(p, v, scope)
		}
		for _, item := range v.Slots[p.Slot] {
			nv, ok := item.(*Value)
			if !ok {
				return nil, fmt.Errorf("%s: expected *Value, got %T", p.Label, item)
			}
			children, err := u.group(p, nv, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}
	}
	return out, nil
}

func (u *unparser) group(p *Particle, v *Value, scope map[string]string) ([]Child, error) {
	var out []Child
	for _, c := range p.Children {
		children, err := u.particle(c, v, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}
