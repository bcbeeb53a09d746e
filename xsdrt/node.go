package xsdrt

import (
	"fmt"
	"sort"
	"strings"
)

// Attr is a single attribute of a Node. Namespace declarations are not
// attributes; they are kept in Node.Decls.
type Attr struct {
	Name  QName
	Value string
}

// Child is one entry of an element's content: either a nested element
// or a run of character data.
type Child struct {
	Elem *Node
	Text string
}

// Node is a namespace-resolved XML element tree. It is the input of the
// model builder and of the generated decoders, and the output of Unparse.
type Node struct {
	Name     QName
	Attrs    []Attr
	Children []Child
	// Decls holds the namespace declarations made on this element,
	// keyed by prefix ("" for the default namespace).
	Decls map[string]string
	// Scope holds every binding in scope at this element.
	Scope  map[string]string
	Line   int
	Column int
}

// Attr returns the value of the attribute with the given name.
func (n *Node) Attr(name QName) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrLocal returns the value of an unqualified attribute.
func (n *Node) AttrLocal(local string) (string, bool) {
	return n.Attr(QName{Local: local})
}

// Elements returns the element children in document order.
func (n *Node) Elements() []*Node {
	var elems []*Node
	for _, c := range n.Children {
		if c.Elem != nil {
			elems = append(elems, c.Elem)
		}
	}
	return elems
}

// Text concatenates the character data directly inside n.
func (n *Node) Text() string {
	var sb strings.Builder
	for _, c := range n.Children {
		if c.Elem == nil {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// TextContent concatenates all character data below n.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.textContent(&sb)
	return sb.String()
}

func (n *Node) textContent(sb *strings.Builder) {
	for _, c := range n.Children {
		if c.Elem != nil {
			c.Elem.textContent(sb)
			continue
		}
		sb.WriteString(c.Text)
	}
}

// ResolveQName resolves a lexical QName ("prefix:local" or "local")
// against the namespace bindings in scope at n. An unprefixed name takes
// the default namespace.
func (n *Node) ResolveQName(lexical string) (QName, error) {
	lexical = strings.TrimSpace(lexical)
	if lexical == "" {
		return QName{}, fmt.Errorf("empty QName")
	}
	prefix, local, ok := strings.Cut(lexical, ":")
	if !ok {
		return QName{Namespace: n.Scope[""], Local: lexical}, nil
	}
	if prefix == "" || local == "" || strings.Contains(local, ":") {
		return QName{}, fmt.Errorf("malformed QName %q", lexical)
	}
	ns, bound := n.Scope[prefix]
	if !bound {
		return QName{}, fmt.Errorf("undeclared namespace prefix %q in %q", prefix, lexical)
	}
	return QName{Namespace: ns, Local: local}, nil
}

// Prefix returns a prefix bound to ns in scope, preferring the default
// namespace, then the lexically smallest prefix.
func Prefix(scope map[string]string, ns string) (string, bool) {
	if ns == XMLNamespace {
		return "xml", true
	}
	if def, ok := scope[""]; ok && def == ns {
		return "", true
	}
	var found []string
	for p, uri := range scope {
		if p != "" && uri == ns {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Strings(found)
	return found[0], true
}

// FormatQName renders q as a lexical QName using the bindings in scope.
func FormatQName(scope map[string]string, q QName) (string, error) {
	if q.Namespace == "" {
		if def := scope[""]; def != "" {
			return "", fmt.Errorf("cannot render %s: default namespace is %s", q, def)
		}
		return q.Local, nil
	}
	p, ok := Prefix(scope, q.Namespace)
	if !ok {
		return "", fmt.Errorf("no prefix in scope for namespace %s", q.Namespace)
	}
	if p == "" {
		return q.Local, nil
	}
	return p + ":" + q.Local, nil
}

// Extend returns the scope produced by adding decls to parent.
func Extend(parent, decls map[string]string) map[string]string {
	if len(decls) == 0 && parent != nil {
		return parent
	}
	scope := make(map[string]string, len(parent)+len(decls))
	for p, uri := range parent {
		scope[p] = uri
	}
	for p, uri := range decls {
		scope[p] = uri
	}
	return scope
}
