package xsdrt

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Variety is the kind of a simple type.
type Variety uint8

const (
	Atomic Variety = iota + 1
	List
	Union
)

func (v Variety) String() string {
	switch v {
	case Atomic:
		return "atomic"
	case List:
		return "list"
	case Union:
		return "union"
	default:
		return fmt.Sprintf("Variety(%d)", uint8(v))
	}
}

// Simple is a user-defined simple type with its restriction chain
// flattened: Base is the builtin it ultimately restricts and Facets
// holds the facets of every step, base first.
type Simple struct {
	Key     string
	Name    QName
	Variety Variety
	Base    string
	Facets  []Facet
	Item    string
	Members []string
}

// ParseSimple converts text to the Go value of the simple type key.
// QName values resolve against the namespace scope of node.
func (p *Program) ParseSimple(key, text string, node *Node) (any, error) {
	if st, ok := p.Simple[key]; ok {
		v, err := p.parseDerived(st, text, node)
		if err != nil {
			return nil, at(err, node)
		}
		return v, nil
	}
	if key == AnyTypeKey {
		return text, nil
	}
	bt, ok := builtinByKey(key)
	if !ok {
		return nil, fmt.Errorf("unknown simple type %s", key)
	}
	lexical := NormalizeWhiteSpace(text, bt.WhiteSpace)
	v, err := bt.Parse(lexical, node)
	if err != nil {
		return nil, at(&LexicalError{Text: text, Type: bt.Name, Err: err}, node)
	}
	return v, nil
}

func (p *Program) parseDerived(st *Simple, text string, node *Node) (any, error) {
	typeName := st.Name.String()
	switch st.Variety {
	case List:
		lexical := NormalizeWhiteSpace(text, Collapse)
		items := strings.Fields(lexical)
		subject := facetSubject{lexical: lexical, length: func() int { return len(items) }}
		if err := checkFacets(st.Facets, subject); err != nil {
			return nil, &LexicalError{Text: text, Type: typeName, Err: err}
		}
		values := make([]any, 0, len(items))
		for _, item := range items {
			v, err := p.ParseSimple(st.Item, item, node)
			if err != nil {
				return nil, &LexicalError{Text: text, Type: typeName, Err: err}
			}
			values = append(values, v)
		}
		return values, nil

	case Union:
		lexical := NormalizeWhiteSpace(text, whiteSpaceOf(st.Facets, Collapse))
		subject := facetSubject{lexical: lexical, length: func() int { return utf8.RuneCountInString(lexical) }}
		if err := checkFacets(st.Facets, subject); err != nil {
			return nil, &LexicalError{Text: text, Type: typeName, Err: err}
		}
		var lastErr error
		for _, member := range st.Members {
			v, err := p.ParseSimple(member, text, node)
			if err == nil {
				return v, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("union has no member types")
		}
		return nil, &LexicalError{Text: text, Type: typeName,
			Err: fmt.Errorf("not valid against any member type of the union: %w", lastErr)}
	}

	bt := GetBuiltinType(st.Base)
	if bt == nil {
		return nil, fmt.Errorf("simple type %s: unknown builtin base %s", typeName, st.Base)
	}
	lexical := NormalizeWhiteSpace(text, whiteSpaceOf(st.Facets, bt.WhiteSpace))
	prim := bt.Primitive().Name
	subject := facetSubject{
		lexical: lexical,
		numeric: prim == "decimal" || prim == "float" || prim == "double",
		length: func() int {
			switch prim {
			case "hexBinary":
				return len(lexical) / 2
			case "base64Binary":
				b, _ := base64.StdEncoding.DecodeString(strings.ReplaceAll(lexical, " ", ""))
				return len(b)
			}
			return utf8.RuneCountInString(lexical)
		},
	}
	if err := checkFacets(st.Facets, subject); err != nil {
		return nil, &LexicalError{Text: text, Type: typeName, Err: err}
	}
	v, err := bt.Parse(lexical, node)
	if err != nil {
		return nil, &LexicalError{Text: text, Type: typeName, Err: err}
	}
	return v, nil
}

// FormatSimple renders a value of simple type key back to lexical text.
// QNames are written with prefixes bound in scope.
func (p *Program) FormatSimple(key string, value any, scope map[string]string) (string, error) {
	if st, ok := p.Simple[key]; ok {
		switch st.Variety {
		case List:
			items, ok := value.([]any)
			if !ok {
				return "", fmt.Errorf("list type %s: unexpected value %T", st.Name, value)
			}
			parts := make([]string, 0, len(items))
			for _, item := range items {
				s, err := p.FormatSimple(st.Item, item, scope)
				if err != nil {
					return "", err
				}
				parts = append(parts, s)
			}
			return strings.Join(parts, " "), nil
		case Union:
			return formatValue(value, "", scope)
		}
		return formatValue(value, st.Base, scope)
	}
	if bt, ok := builtinByKey(key); ok {
		return formatValue(value, bt.Primitive().Name, scope)
	}
	return formatValue(value, "", scope)
}

func formatValue(value any, builtin string, scope map[string]string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		switch {
		case math.IsInf(v, 1):
			return "INF", nil
		case math.IsInf(v, -1):
			return "-INF", nil
		case math.IsNaN(v):
			return "NaN", nil
		}
		return strconv.FormatFloat(v, 'G', -1, 64), nil
	case []byte:
		if builtin == "hexBinary" {
			return strings.ToUpper(hex.EncodeToString(v)), nil
		}
		return base64.StdEncoding.EncodeToString(v), nil
	case []string:
		return strings.Join(v, " "), nil
	case QName:
		return FormatQName(scope, v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, err := formatValue(item, "", scope)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), nil
	default:
		return "", fmt.Errorf("cannot format %T as a simple value", value)
	}
}

// ListOf converts a decoded list value to a typed slice. Generated code
// uses it for list-typed fields.
func ListOf[T any](value any) []T {
	items, _ := value.([]any)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if v, ok := item.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
