package xsdrt

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

const xmlnsNamespace = "http://www.w3.org/2000/xmlns/"

// Decode parses an XML document into a Node tree.
func Decode(r io.Reader) (*Node, error) {
	doc, err := xmldom.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML document: %w", err)
	}
	return FromDocument(doc)
}

// DecodeBytes parses an in-memory XML document into a Node tree.
func DecodeBytes(data []byte) (*Node, error) {
	return Decode(bytes.NewReader(data))
}

// FromDocument converts a parsed DOM document into a Node tree.
func FromDocument(doc xmldom.Document) (*Node, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	root := doc.DocumentElement()
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return fromElement(root, map[string]string{"xml": XMLNamespace}), nil
}

func fromElement(elem xmldom.Element, parent map[string]string) *Node {
	line, col, _ := elem.Position()
	n := &Node{
		Name: QName{
			Namespace: string(elem.NamespaceURI()),
			Local:     string(elem.LocalName()),
		},
		Line:   line,
		Column: col,
	}

	// Split namespace declarations from ordinary attributes
	attrs := elem.Attributes()
	for i := uint(0); i < attrs.Length(); i++ {
		attr := attrs.Item(i)
		if attr == nil {
			continue
		}
		name := string(attr.NodeName())
		value := string(attr.NodeValue())
		switch {
		case name == "xmlns":
			n.declare("", value)
		case strings.HasPrefix(name, "xmlns:"):
			n.declare(strings.TrimPrefix(name, "xmlns:"), value)
		case string(attr.NamespaceURI()) == xmlnsNamespace || string(attr.NamespaceURI()) == "xmlns":
			// go-xmldom reports xmlns:p as local name p in namespace "xmlns".
			n.declare(string(attr.LocalName()), value)
		default:
			n.Attrs = append(n.Attrs, Attr{
				Name: QName{
					Namespace: string(attr.NamespaceURI()),
					Local:     string(attr.LocalName()),
				},
				Value: value,
			})
		}
	}
	n.Scope = Extend(parent, n.Decls)

	// Walk child nodes in document order. Element nodes are paired with
	// the element list so nested elements keep their Element interface.
	elems := elem.Children()
	next := uint(0)
	nodes := elem.ChildNodes()
	for i := uint(0); i < nodes.Length(); i++ {
		node := nodes.Item(i)
		if node == nil {
			continue
		}
		switch node.NodeType() {
		case 1: // ELEMENT_NODE
			if next >= elems.Length() {
				continue
			}
			child := elems.Item(next)
			next++
			if child != nil {
				n.Children = append(n.Children, Child{Elem: fromElement(child, n.Scope)})
			}
		case 3, 4: // TEXT_NODE, CDATA_SECTION_NODE
			n.appendText(string(node.NodeValue()))
		}
	}
	return n
}

func (n *Node) declare(prefix, uri string) {
	if n.Decls == nil {
		n.Decls = make(map[string]string)
	}
	n.Decls[prefix] = uri
}

// appendText merges adjacent character data runs.
func (n *Node) appendText(text string) {
	if text == "" {
		return
	}
	if last := len(n.Children) - 1; last >= 0 && n.Children[last].Elem == nil {
		n.Children[last].Text += text
		return
	}
	n.Children = append(n.Children, Child{Text: text})
}
