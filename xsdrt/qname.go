package xsdrt

import (
	"fmt"
	"strings"
)

const (
	// XSDNamespace is the XML Schema namespace
	XSDNamespace = "http://www.w3.org/2001/XMLSchema"
	// XSINamespace is the XML Schema instance namespace (xsi:nil, xsi:type)
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
	// XMLNamespace is bound to the reserved xml prefix
	XMLNamespace = "http://www.w3.org/XML/1998/namespace"
)

// QName represents a qualified XML name
type QName struct {
	Namespace string
	Local     string
}

// String returns the string representation of a QName
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return fmt.Sprintf("{%s}%s", q.Namespace, q.Local)
}

// IsZero reports whether q is the empty name.
func (q QName) IsZero() bool {
	return q.Namespace == "" && q.Local == ""
}

// Compare orders names by namespace, then local name.
func (q QName) Compare(o QName) int {
	if c := strings.Compare(q.Namespace, o.Namespace); c != 0 {
		return c
	}
	return strings.Compare(q.Local, o.Local)
}

// ParseExpanded parses the "{namespace}local" form produced by String.
func ParseExpanded(s string) (QName, error) {
	if !strings.HasPrefix(s, "{") {
		if s == "" {
			return QName{}, fmt.Errorf("empty name")
		}
		return QName{Local: s}, nil
	}
	end := strings.IndexByte(s, '}')
	if end < 0 || end == len(s)-1 {
		return QName{}, fmt.Errorf("malformed expanded name %q", s)
	}
	return QName{Namespace: s[1:end], Local: s[end+1:]}, nil
}

// XSD returns the name of a component in the XML Schema namespace.
func XSD(local string) QName {
	return QName{Namespace: XSDNamespace, Local: local}
}
