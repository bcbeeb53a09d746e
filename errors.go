package xsdgen

import (
	"fmt"
	"strings"
)

// IngestError reports a malformed schema document or a construct the
// model builder cannot make sense of.
type IngestError struct {
	Location  string
	Position  Position
	Construct string
	Err       error
}

func (e *IngestError) Error() string {
	var sb strings.Builder
	if e.Position.Line > 0 {
		sb.WriteString(e.Position.String())
	} else {
		sb.WriteString(e.Location)
	}
	if e.Construct != "" {
		fmt.Fprintf(&sb, ": %s", e.Construct)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// UnresolvedReferenceError reports a qualified name with no declaration
// of the required kind in the merged graph.
type UnresolvedReferenceError struct {
	From     QName
	FromKind DeclKind
	Target   QName
	Kind     DeclKind
	Position Position
}

func (e *UnresolvedReferenceError) Error() string {
	prefix := ""
	if e.Position.Line > 0 {
		prefix = e.Position.String() + ": "
	}
	return fmt.Sprintf("%s%s %s: unresolved %s reference %s", prefix, e.FromKind, e.From, e.Kind, e.Target)
}

// InvalidDerivationError reports a cyclic derivation chain or a
// restriction that does not narrow its base.
type InvalidDerivationError struct {
	Type   QName
	Base   QName
	Chain  []QName
	Reason string
}

func (e *InvalidDerivationError) Error() string {
	if len(e.Chain) > 0 {
		names := make([]string, len(e.Chain))
		for i, q := range e.Chain {
			names[i] = q.String()
		}
		return fmt.Sprintf("type %s: %s: %s", e.Type, e.Reason, strings.Join(names, " -> "))
	}
	if !e.Base.IsZero() {
		return fmt.Sprintf("type %s (base %s): %s", e.Type, e.Base, e.Reason)
	}
	return fmt.Sprintf("type %s: %s", e.Type, e.Reason)
}

// UnsupportedConstructError names a recognized schema feature that the
// compiler does not model.
type UnsupportedConstructError struct {
	Construct string
	// Category is the Config.Lenient entry that skips the construct.
	Category string
	Decl     string
	Position Position
}

func (e *UnsupportedConstructError) Error() string {
	prefix := ""
	if e.Position.Line > 0 {
		prefix = e.Position.String() + ": "
	}
	if e.Decl != "" {
		return fmt.Sprintf("%sunsupported construct %s in %s", prefix, e.Construct, e.Decl)
	}
	return fmt.Sprintf("%sunsupported construct %s", prefix, e.Construct)
}
