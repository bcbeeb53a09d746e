package xsdrt

import (
	"fmt"
	"strings"
)

// ValidationError reports an instance document that does not match the
// grammar: an unexpected or missing element, or a bad attribute.
type ValidationError struct {
	Element   QName
	Particle  string
	Attribute QName
	Line      int
	Column    int
	Reason    string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&sb, "%d:%d: ", e.Line, e.Column)
	}
	if !e.Element.IsZero() {
		fmt.Fprintf(&sb, "element %s: ", e.Element)
	}
	if !e.Attribute.IsZero() {
		fmt.Fprintf(&sb, "attribute %s: ", e.Attribute)
	}
	if e.Particle != "" {
		fmt.Fprintf(&sb, "particle %s: ", e.Particle)
	}
	sb.WriteString(e.Reason)
	return sb.String()
}

// LexicalError reports text that is not in the lexical space of a simple
// type.
type LexicalError struct {
	Text   string
	Type   string
	Line   int
	Column int
	Err    error
}

func (e *LexicalError) Error() string {
	pos := ""
	if e.Line > 0 {
		pos = fmt.Sprintf("%d:%d: ", e.Line, e.Column)
	}
	return fmt.Sprintf("%sinvalid value %q for type %s: %v", pos, e.Text, e.Type, e.Err)
}

func (e *LexicalError) Unwrap() error {
	return e.Err
}

// at fills in the position of n when the error does not have one.
func at(err error, n *Node) error {
	if n == nil {
		return err
	}
	switch e := err.(type) {
	case *LexicalError:
		if e.Line == 0 {
			e.Line, e.Column = n.Line, n.Column
		}
	case *ValidationError:
		if e.Line == 0 {
			e.Line, e.Column = n.Line, n.Column
		}
		if e.Element.IsZero() {
			e.Element = n.Name
		}
	}
	return err
}
