package xsdrt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
)

// Facet is one constraining facet of a simple type. Enumeration and
// pattern facets of one derivation step keep all their values in Values;
// a value must match at least one of them.
type Facet struct {
	Kind   string
	Value  string
	Values []string
}

// FacetKinds lists the facets the compiler accepts.
var FacetKinds = []string{
	"enumeration", "pattern", "length", "minLength", "maxLength",
	"minInclusive", "maxInclusive", "minExclusive", "maxExclusive",
	"totalDigits", "fractionDigits", "whiteSpace",
}

// IsFacet reports whether name is a supported facet element.
func IsFacet(name string) bool {
	for _, k := range FacetKinds {
		if k == name {
			return true
		}
	}
	return false
}

// facetSubject carries what a facet needs to know about the value.
type facetSubject struct {
	lexical string
	length  func() int
	numeric bool
}

func (f Facet) check(v facetSubject) error {
	switch f.Kind {
	case "enumeration":
		for _, allowed := range f.Values {
			if v.lexical == allowed {
				return nil
			}
		}
		return fmt.Errorf("value '%s' is not in enumeration %v", v.lexical, f.Values)
	case "pattern":
		for _, p := range f.Values {
			re, err := compilePattern(p)
			if err != nil {
				return err
			}
			if re.MatchString(v.lexical) {
				return nil
			}
		}
		return fmt.Errorf("value '%s' does not match pattern '%s'", v.lexical, strings.Join(f.Values, "|"))
	case "length", "minLength", "maxLength":
		want, err := strconv.Atoi(f.Value)
		if err != nil {
			return fmt.Errorf("invalid %s facet %q", f.Kind, f.Value)
		}
		got := v.length()
		switch {
		case f.Kind == "length" && got != want:
			return fmt.Errorf("length must be exactly %d, got %d", want, got)
		case f.Kind == "minLength" && got < want:
			return fmt.Errorf("length must be at least %d, got %d", want, got)
		case f.Kind == "maxLength" && got > want:
			return fmt.Errorf("length must be at most %d, got %d", want, got)
		}
	case "minInclusive", "maxInclusive", "minExclusive", "maxExclusive":
		c, err := compareBound(v, f.Value)
		if err != nil {
			return err
		}
		switch {
		case f.Kind == "minInclusive" && c < 0:
			return fmt.Errorf("value must be >= %s, got %s", f.Value, v.lexical)
		case f.Kind == "maxInclusive" && c > 0:
			return fmt.Errorf("value must be <= %s, got %s", f.Value, v.lexical)
		case f.Kind == "minExclusive" && c <= 0:
			return fmt.Errorf("value must be > %s, got %s", f.Value, v.lexical)
		case f.Kind == "maxExclusive" && c >= 0:
			return fmt.Errorf("value must be < %s, got %s", f.Value, v.lexical)
		}
	case "totalDigits":
		want, err := strconv.Atoi(f.Value)
		if err != nil {
			return fmt.Errorf("invalid totalDigits facet %q", f.Value)
		}
		whole, frac, _ := strings.Cut(strings.TrimLeft(v.lexical, "+-"), ".")
		digits := strings.TrimLeft(whole+strings.TrimRight(frac, "0"), "0")
		if digits == "" {
			digits = "0"
		}
		if len(digits) > want {
			return fmt.Errorf("total digits must be at most %d, got %d", want, len(digits))
		}
	case "fractionDigits":
		want, err := strconv.Atoi(f.Value)
		if err != nil {
			return fmt.Errorf("invalid fractionDigits facet %q", f.Value)
		}
		if _, frac, ok := strings.Cut(v.lexical, "."); ok {
			if n := len(strings.TrimRight(frac, "0")); n > want {
				return fmt.Errorf("fraction digits must be at most %d, got %d", want, n)
			}
		}
	}
	return nil
}

func compareBound(v facetSubject, bound string) (int, error) {
	if v.numeric {
		return compareDecimal(v.lexical, bound)
	}
	// Date and time values in the same timezone form order lexically.
	return strings.Compare(v.lexical, bound), nil
}

// whiteSpaceOf returns the whiteSpace facet in facets, or def.
func whiteSpaceOf(facets []Facet, def WhiteSpace) WhiteSpace {
	ws := def
	for _, f := range facets {
		if f.Kind == "whiteSpace" {
			ws = WhiteSpace(f.Value)
		}
	}
	return ws
}

func checkFacets(facets []Facet, v facetSubject) error {
	for _, f := range facets {
		if err := f.check(v); err != nil {
			return fmt.Errorf("%s constraint violated: %w", f.Kind, err)
		}
	}
	return nil
}

var patterns = struct {
	sync.Mutex
	cache *lru.Cache
}{cache: lru.New(256)}

// compilePattern compiles an XSD pattern into an anchored Go regexp,
// caching the result.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	patterns.Lock()
	defer patterns.Unlock()
	if re, ok := patterns.cache.Get(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	expr, err := convertXSDRegex(pattern)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	patterns.cache.Add(pattern, re)
	return re, nil
}

// convertXSDRegex rewrites the XSD-only escapes into RE2 syntax. XSD
// patterns are implicitly anchored and treat ^ and $ as literals.
func convertXSDRegex(pattern string) (string, error) {
	var sb strings.Builder
	inClass := false
	classes := map[byte]string{
		'i': `\p{L}_:`,
		'c': `\p{L}\p{Nd}\p{Mn}\p{Mc}._:\-`,
		'd': `\p{Nd}`,
		's': `\x20\t\n\r`,
		'w': `\p{L}\p{Nd}\p{M}\p{S}`,
	}
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '\\' && i+1 < len(pattern):
			i++
			esc := pattern[i]
			lower := esc | 0x20
			body, ok := classes[lower]
			switch {
			case !ok:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			case esc == lower && inClass:
				sb.WriteString(body)
			case esc == lower:
				sb.WriteString("[" + body + "]")
			case inClass:
				return "", fmt.Errorf("unsupported pattern %q: negated escape \\%c inside a character class", pattern, esc)
			default:
				sb.WriteString("[^" + body + "]")
			}
		case ch == '[' && !inClass:
			inClass = true
			sb.WriteByte(ch)
		case ch == '[' && inClass:
			return "", fmt.Errorf("unsupported pattern %q: character class subtraction", pattern)
		case ch == ']' && inClass:
			inClass = false
			sb.WriteByte(ch)
		case (ch == '^' || ch == '$') && !inClass:
			sb.WriteByte('\\')
			sb.WriteByte(ch)
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String(), nil
}
