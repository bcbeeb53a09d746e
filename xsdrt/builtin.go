package xsdrt

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// WhiteSpace is the value of the whiteSpace facet
type WhiteSpace string

const (
	Preserve WhiteSpace = "preserve"
	Replace  WhiteSpace = "replace"
	Collapse WhiteSpace = "collapse"
)

// BuiltinType is a built-in XSD simple type and its conversion to Go.
type BuiltinType struct {
	Name string
	// Base is the builtin this type is derived from; empty for anySimpleType.
	Base       string
	WhiteSpace WhiteSpace
	// GoType is the Go type generated code stores values of this type in.
	GoType string
	parse  func(lexical string, scope *Node) (any, error)
}

// Parse converts whitespace-normalized lexical text to its Go value.
func (bt *BuiltinType) Parse(lexical string, scope *Node) (any, error) {
	return bt.parse(lexical, scope)
}

// Primitive returns the primitive builtin bt is derived from.
func (bt *BuiltinType) Primitive() *BuiltinType {
	for t := bt; t != nil; t = builtinTypes[t.Base] {
		if t.Base == "anySimpleType" || t.Base == "" {
			return t
		}
	}
	return bt
}

const (
	// AnyTypeKey is the type key of xs:anyType
	AnyTypeKey = "{" + XSDNamespace + "}anyType"
	// AnySimpleTypeKey is the type key of xs:anySimpleType
	AnySimpleTypeKey = "{" + XSDNamespace + "}anySimpleType"
)

var builtinTypes = map[string]*BuiltinType{}

func init() {
	registerBuiltinTypes()
}

func register(name, base string, ws WhiteSpace, goType string, parse func(string, *Node) (any, error)) {
	builtinTypes[name] = &BuiltinType{Name: name, Base: base, WhiteSpace: ws, GoType: goType, parse: parse}
}

func registerBuiltinTypes() {
	// Primitive types
	register("anySimpleType", "", Preserve, "string", asString(nil))
	register("string", "anySimpleType", Preserve, "string", asString(nil))
	register("boolean", "anySimpleType", Collapse, "bool", parseBoolean)
	register("decimal", "anySimpleType", Collapse, "string", asString(validateDecimal))
	register("float", "anySimpleType", Collapse, "float64", parseFloat(32))
	register("double", "anySimpleType", Collapse, "float64", parseFloat(64))
	register("duration", "anySimpleType", Collapse, "string", asString(validateDuration))
	register("dateTime", "anySimpleType", Collapse, "string", asString(temporal("dateTime", dateTimePattern)))
	register("time", "anySimpleType", Collapse, "string", asString(temporal("time", timePattern)))
	register("date", "anySimpleType", Collapse, "string", asString(temporal("date", datePattern)))
	register("gYearMonth", "anySimpleType", Collapse, "string", asString(temporal("gYearMonth", gYearMonthPattern)))
	register("gYear", "anySimpleType", Collapse, "string", asString(temporal("gYear", gYearPattern)))
	register("gMonthDay", "anySimpleType", Collapse, "string", asString(temporal("gMonthDay", gMonthDayPattern)))
	register("gDay", "anySimpleType", Collapse, "string", asString(temporal("gDay", gDayPattern)))
	register("gMonth", "anySimpleType", Collapse, "string", asString(temporal("gMonth", gMonthPattern)))
	register("hexBinary", "anySimpleType", Collapse, "[]byte", parseHexBinary)
	register("base64Binary", "anySimpleType", Collapse, "[]byte", parseBase64Binary)
	register("anyURI", "anySimpleType", Collapse, "string", asString(nil))
	register("QName", "anySimpleType", Collapse, "xsdrt.QName", parseQName)
	register("NOTATION", "anySimpleType", Collapse, "xsdrt.QName", parseQName)

	// Derived types - strings
	register("normalizedString", "string", Replace, "string", asString(nil))
	register("token", "normalizedString", Collapse, "string", asString(nil))
	register("language", "token", Collapse, "string", asString(validateLanguage))
	register("Name", "token", Collapse, "string", asString(validateName))
	register("NCName", "Name", Collapse, "string", asString(validateNCName))
	register("ID", "NCName", Collapse, "string", asString(validateNCName))
	register("IDREF", "NCName", Collapse, "string", asString(validateNCName))
	register("ENTITY", "NCName", Collapse, "string", asString(validateNCName))
	register("NMTOKEN", "token", Collapse, "string", asString(validateNMTOKEN))
	register("IDREFS", "anySimpleType", Collapse, "[]string", tokens(validateNCName))
	register("ENTITIES", "anySimpleType", Collapse, "[]string", tokens(validateNCName))
	register("NMTOKENS", "anySimpleType", Collapse, "[]string", tokens(validateNMTOKEN))

	// Derived types - numeric
	register("integer", "decimal", Collapse, "int64", signed("integer", 64, nil))
	register("nonPositiveInteger", "integer", Collapse, "int64", signed("nonPositiveInteger", 64, func(v int64) bool { return v <= 0 }))
	register("negativeInteger", "nonPositiveInteger", Collapse, "int64", signed("negativeInteger", 64, func(v int64) bool { return v < 0 }))
	register("long", "integer", Collapse, "int64", signed("long", 64, nil))
	register("int", "long", Collapse, "int64", signed("int", 32, nil))
	register("short", "int", Collapse, "int64", signed("short", 16, nil))
	register("byte", "short", Collapse, "int64", signed("byte", 8, nil))
	register("nonNegativeInteger", "integer", Collapse, "uint64", unsigned("nonNegativeInteger", 64, nil))
	register("positiveInteger", "nonNegativeInteger", Collapse, "uint64", unsigned("positiveInteger", 64, func(v uint64) bool { return v > 0 }))
	register("unsignedLong", "nonNegativeInteger", Collapse, "uint64", unsigned("unsignedLong", 64, nil))
	register("unsignedInt", "unsignedLong", Collapse, "uint64", unsigned("unsignedInt", 32, nil))
	register("unsignedShort", "unsignedInt", Collapse, "uint64", unsigned("unsignedShort", 16, nil))
	register("unsignedByte", "unsignedShort", Collapse, "uint64", unsigned("unsignedByte", 8, nil))
}

// GetBuiltinType returns a built-in type by local name
func GetBuiltinType(name string) *BuiltinType {
	return builtinTypes[name]
}

// IsBuiltinType checks if a local name is a built-in XSD simple type
func IsBuiltinType(name string) bool {
	return GetBuiltinType(name) != nil
}

// DerivesFrom reports whether builtin name is base or derived from it.
func DerivesFrom(name, base string) bool {
	for t := builtinTypes[name]; t != nil; t = builtinTypes[t.Base] {
		if t.Name == base {
			return true
		}
	}
	return false
}

func builtinByKey(key string) (*BuiltinType, bool) {
	const prefix = "{" + XSDNamespace + "}"
	if !strings.HasPrefix(key, prefix) {
		return nil, false
	}
	bt, ok := builtinTypes[strings.TrimPrefix(key, prefix)]
	return bt, ok
}

// NormalizeWhiteSpace applies a whiteSpace facet value to text.
func NormalizeWhiteSpace(text string, ws WhiteSpace) string {
	switch ws {
	case Replace:
		return strings.Map(func(r rune) rune {
			if r == '\t' || r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, text)
	case Collapse:
		return strings.Join(strings.Fields(text), " ")
	default:
		return text
	}
}

// Conversions

func asString(validate func(string) error) func(string, *Node) (any, error) {
	return func(lexical string, _ *Node) (any, error) {
		if validate != nil {
			if err := validate(lexical); err != nil {
				return nil, err
			}
		}
		return lexical, nil
	}
}

func tokens(validate func(string) error) func(string, *Node) (any, error) {
	return func(lexical string, _ *Node) (any, error) {
		items := strings.Fields(lexical)
		if len(items) == 0 {
			return nil, fmt.Errorf("list cannot be empty")
		}
		for _, item := range items {
			if err := validate(item); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
}

func parseBoolean(lexical string, _ *Node) (any, error) {
	switch lexical {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return nil, fmt.Errorf("invalid boolean value: %s", lexical)
	}
}

var (
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
	nan    = math.NaN()
)

var (
	decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	floatPattern   = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	integerPattern = regexp.MustCompile(`^[+-]?\d+$`)
)

func validateDecimal(lexical string) error {
	if !decimalPattern.MatchString(lexical) {
		return fmt.Errorf("invalid decimal value: %s", lexical)
	}
	return nil
}

func parseFloat(bits int) func(string, *Node) (any, error) {
	return func(lexical string, _ *Node) (any, error) {
		switch lexical {
		case "INF", "+INF":
			return posInf, nil
		case "-INF":
			return negInf, nil
		case "NaN":
			return nan, nil
		}
		if !floatPattern.MatchString(lexical) {
			return nil, fmt.Errorf("invalid floating point value: %s", lexical)
		}
		v, err := strconv.ParseFloat(lexical, bits)
		if err != nil {
			return nil, fmt.Errorf("floating point value out of range: %s", lexical)
		}
		return v, nil
	}
}

func signed(name string, bits int, ok func(int64) bool) func(string, *Node) (any, error) {
	return func(lexical string, _ *Node) (any, error) {
		if !integerPattern.MatchString(lexical) {
			return nil, fmt.Errorf("invalid %s value: %s", name, lexical)
		}
		v, err := strconv.ParseInt(lexical, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%s value out of range: %s", name, lexical)
		}
		if ok != nil && !ok(v) {
			return nil, fmt.Errorf("%s value out of range: %s", name, lexical)
		}
		return v, nil
	}
}

func unsigned(name string, bits int, ok func(uint64) bool) func(string, *Node) (any, error) {
	return func(lexical string, _ *Node) (any, error) {
		if !integerPattern.MatchString(lexical) {
			return nil, fmt.Errorf("invalid %s value: %s", name, lexical)
		}
		digits := strings.TrimPrefix(lexical, "+")
		if strings.HasPrefix(digits, "-") {
			// -0 is the only negative lexical form in the value space
			if strings.Trim(digits[1:], "0") != "" {
				return nil, fmt.Errorf("%s must be >= 0: %s", name, lexical)
			}
			digits = "0"
		}
		v, err := strconv.ParseUint(digits, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%s value out of range: %s", name, lexical)
		}
		if ok != nil && !ok(v) {
			return nil, fmt.Errorf("%s value out of range: %s", name, lexical)
		}
		return v, nil
	}
}

func parseHexBinary(lexical string, _ *Node) (any, error) {
	// Must be even number of hex digits
	if len(lexical)%2 != 0 {
		return nil, fmt.Errorf("hexBinary must have even number of characters: %s", lexical)
	}
	b, err := hex.DecodeString(lexical)
	if err != nil {
		return nil, fmt.Errorf("invalid hexBinary value: %s", lexical)
	}
	return b, nil
}

func parseBase64Binary(lexical string, _ *Node) (any, error) {
	b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(lexical, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid base64Binary value: %s", lexical)
	}
	return b, nil
}

func parseQName(lexical string, scope *Node) (any, error) {
	prefix, local, found := strings.Cut(lexical, ":")
	if !found {
		local, prefix = prefix, ""
	}
	if (found && validateNCName(prefix) != nil) || validateNCName(local) != nil {
		return nil, fmt.Errorf("invalid QName: %s", lexical)
	}
	if scope == nil {
		return nil, fmt.Errorf("no namespace scope to resolve QName %s", lexical)
	}
	return scope.ResolveQName(lexical)
}

// Temporal types keep their lexical form; only their shape and field
// ranges are checked.

var (
	tz                = `(Z|[+-]\d{2}:\d{2})?`
	dateTimePattern   = regexp.MustCompile(`^-?(\d{4,})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})(\.\d+)?` + tz + `$`)
	timePattern       = regexp.MustCompile(`^()()()(\d{2}):(\d{2}):(\d{2})(\.\d+)?` + tz + `$`)
	datePattern       = regexp.MustCompile(`^-?(\d{4,})-(\d{2})-(\d{2})` + tz + `$`)
	gYearMonthPattern = regexp.MustCompile(`^-?(\d{4,})-(\d{2})()` + tz + `$`)
	gYearPattern      = regexp.MustCompile(`^-?(\d{4,})()()` + tz + `$`)
	gMonthDayPattern  = regexp.MustCompile(`^--()(\d{2})-(\d{2})` + tz + `$`)
	gDayPattern       = regexp.MustCompile(`^---()()(\d{2})` + tz + `$`)
	gMonthPattern     = regexp.MustCompile(`^--()(\d{2})()` + tz + `$`)
	durationPattern   = regexp.MustCompile(`^-?P(\d+Y)?(\d+M)?(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)
)

// temporal validates a date/time form whose first capture groups are
// year, month, day and, for time-bearing forms, hour, minute, second.
func temporal(name string, pattern *regexp.Regexp) func(string) error {
	limits := []struct{ min, max int }{{0, 0}, {1, 12}, {1, 31}, {0, 24}, {0, 59}, {0, 59}}
	return func(lexical string) error {
		m := pattern.FindStringSubmatch(lexical)
		if m == nil {
			return fmt.Errorf("invalid %s value: %s", name, lexical)
		}
		for i, lim := range limits {
			if i+1 >= len(m) || m[i+1] == "" || lim.max == 0 {
				continue
			}
			v, _ := strconv.Atoi(m[i+1])
			if v < lim.min || v > lim.max {
				return fmt.Errorf("invalid %s value: %s", name, lexical)
			}
		}
		return nil
	}
}

func validateDuration(lexical string) error {
	if !durationPattern.MatchString(lexical) || strings.HasSuffix(lexical, "P") || strings.HasSuffix(lexical, "T") {
		return fmt.Errorf("invalid duration value: %s", lexical)
	}
	return nil
}

var languagePattern = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)

func validateLanguage(lexical string) error {
	if !languagePattern.MatchString(lexical) {
		return fmt.Errorf("invalid language tag: %s", lexical)
	}
	return nil
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == ':'
}

func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '.' || r == '-' ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || r == '·'
}

func validateName(lexical string) error {
	if lexical == "" {
		return fmt.Errorf("Name cannot be empty")
	}
	for i, r := range lexical {
		if (i == 0 && !isNameStart(r)) || !isNameChar(r) {
			return fmt.Errorf("invalid character %q in Name: %s", r, lexical)
		}
	}
	return nil
}

func validateNCName(lexical string) error {
	if err := validateName(lexical); err != nil {
		return err
	}
	if strings.Contains(lexical, ":") {
		return fmt.Errorf("NCName cannot contain colons: %s", lexical)
	}
	return nil
}

// IsNCName reports whether s is a non-colonized XML name.
func IsNCName(s string) bool {
	return validateNCName(s) == nil
}

func validateNMTOKEN(lexical string) error {
	if lexical == "" {
		return fmt.Errorf("NMTOKEN cannot be empty")
	}
	for _, r := range lexical {
		if !isNameChar(r) {
			return fmt.Errorf("invalid character %q in NMTOKEN: %s", r, lexical)
		}
	}
	return nil
}

// compareDecimal orders two numeric lexical values.
func compareDecimal(a, b string) (int, error) {
	x, _, err := big.ParseFloat(strings.TrimPrefix(a, "+"), 10, 256, big.ToNearestEven)
	if err != nil {
		return 0, fmt.Errorf("cannot compare %q as a number", a)
	}
	y, _, err := big.ParseFloat(strings.TrimPrefix(b, "+"), 10, 256, big.ToNearestEven)
	if err != nil {
		return 0, fmt.Errorf("cannot compare %q as a number", b)
	}
	return x.Cmp(y), nil
}
