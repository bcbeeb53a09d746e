package xsdgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

// Schema document checks run by the model builder. Each failure is an
// IngestError located at the offending construct.

// describe renders a construct the way it appears in the document, for
// example <element name='person'>.
func describe(n *xsdrt.Node) string {
	name, ok := n.AttrLocal("name")
	if !ok {
		name, _ = n.AttrLocal("ref")
	}
	location := fmt.Sprintf("<%s", n.Name.Local)
	if name != "" {
		location += fmt.Sprintf(" name='%s'", name)
	}
	return location + ">"
}

func (b *docBuilder) fail(n *xsdrt.Node, format string, args ...any) error {
	return &IngestError{
		Location:  b.location,
		Position:  b.pos(n),
		Construct: describe(n),
		Err:       fmt.Errorf(format, args...),
	}
}

func (b *docBuilder) pos(n *xsdrt.Node) Position {
	return Position{File: b.location, Line: n.Line, Column: n.Column}
}

// checkNameRef validates the name and ref attributes of a declaration or
// reference. Global components need a name; local ones need exactly one
// of name and ref.
func (b *docBuilder) checkNameRef(n *xsdrt.Node, global bool) (name, ref string, err error) {
	name, hasName := n.AttrLocal("name")
	ref, hasRef := n.AttrLocal("ref")
	switch {
	case hasName && hasRef:
		return "", "", b.fail(n, "%s cannot have both 'name' and 'ref' attributes", n.Name.Local)
	case global && !hasName:
		return "", "", b.fail(n, "global %s must have a name attribute", n.Name.Local)
	case global && hasRef:
		return "", "", b.fail(n, "global %s cannot have a 'ref' attribute", n.Name.Local)
	case !hasName && !hasRef:
		return "", "", b.fail(n, "%s must have a 'name' or 'ref' attribute", n.Name.Local)
	}
	if hasName && !xsdrt.IsNCName(name) {
		return "", "", b.fail(n, "invalid %s name '%s': must be a valid NCName", n.Name.Local, name)
	}
	return name, ref, nil
}

// parseOccurs reads minOccurs and maxOccurs, returning Unbounded (-1)
// for maxOccurs="unbounded".
func (b *docBuilder) parseOccurs(n *xsdrt.Node) (min, max int, err error) {
	min, max = 1, 1
	if v, ok := n.AttrLocal("minOccurs"); ok {
		if min, err = occursValue(v); err != nil || min < 0 {
			return 0, 0, b.fail(n, "invalid minOccurs value '%s': must be non-negative integer", v)
		}
	}
	if v, ok := n.AttrLocal("maxOccurs"); ok {
		if strings.TrimSpace(v) == "unbounded" {
			return min, Unbounded, nil
		}
		if max, err = occursValue(v); err != nil || max < 0 {
			return 0, 0, b.fail(n, "invalid maxOccurs value '%s': must be non-negative integer or 'unbounded'", v)
		}
	}
	if min > max {
		return 0, 0, b.fail(n, "minOccurs (%d) cannot be greater than maxOccurs (%d)", min, max)
	}
	return min, max, nil
}

func occursValue(v string) (int, error) {
	v = strings.TrimSpace(v)
	for _, c := range v {
		if c < '0' || c > '9' {
			return -1, fmt.Errorf("not a non-negative integer")
		}
	}
	return strconv.Atoi(v)
}

// boolAttr reads an xs:boolean attribute.
func (b *docBuilder) boolAttr(n *xsdrt.Node, name string) (bool, error) {
	v, ok := n.AttrLocal(name)
	if !ok {
		return false, nil
	}
	switch strings.TrimSpace(v) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, b.fail(n, "invalid %s value '%s': must be a boolean", name, v)
}

// valueConstraint reads the mutually exclusive default and fixed
// attributes.
func (b *docBuilder) valueConstraint(n *xsdrt.Node) (def string, hasDef bool, fixed string, hasFixed bool, err error) {
	def, hasDef = n.AttrLocal("default")
	fixed, hasFixed = n.AttrLocal("fixed")
	if hasDef && hasFixed {
		return "", false, "", false, b.fail(n, "%s cannot have both 'default' and 'fixed' attributes", n.Name.Local)
	}
	return def, hasDef, fixed, hasFixed, nil
}

// qualified decides the namespace of a local element or attribute from
// its form attribute and the schema's form default.
func (b *docBuilder) qualified(n *xsdrt.Node, def bool) (bool, error) {
	form, ok := n.AttrLocal("form")
	if !ok {
		return def, nil
	}
	switch strings.TrimSpace(form) {
	case "qualified":
		return true, nil
	case "unqualified":
		return false, nil
	}
	return false, b.fail(n, "invalid form value '%s'", form)
}

func (b *docBuilder) formDefault(n *xsdrt.Node, attr string) (bool, error) {
	v, ok := n.AttrLocal(attr)
	if !ok {
		return false, nil
	}
	switch strings.TrimSpace(v) {
	case "qualified":
		return true, nil
	case "unqualified":
		return false, nil
	}
	return false, b.fail(n, "invalid %s value '%s'", attr, v)
}

// qname resolves a QName-valued attribute against the namespace scope of
// the element carrying it.
func (b *docBuilder) qname(n *xsdrt.Node, attr string) (QName, bool, error) {
	v, ok := n.AttrLocal(attr)
	if !ok {
		return QName{}, false, nil
	}
	q, err := n.ResolveQName(v)
	if err != nil {
		return QName{}, false, b.fail(n, "invalid %s: %w", attr, err)
	}
	return q, true, nil
}
