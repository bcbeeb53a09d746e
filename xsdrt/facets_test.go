package xsdrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertXSDRegex(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
		wantErr bool
	}{
		{pattern: `\d{3}`, want: `[\p{Nd}]{3}`},
		{pattern: `[\d.]+`, want: `[\p{Nd}.]+`},
		{pattern: `\D`, want: `[^\p{Nd}]`},
		{pattern: `\i\c*`, want: `[\p{L}_:][\p{L}\p{Nd}\p{Mn}\p{Mc}._:\-]*`},
		{pattern: `a^b$`, want: `a\^b\$`},
		{pattern: `[^a]`, want: `[^a]`},
		{pattern: `\.\-`, want: `\.\-`},
		{pattern: `[a-z-[aeiou]]`, wantErr: true},
		{pattern: `[\S]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := convertXSDRegex(tt.pattern)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompilePatternCache(t *testing.T) {
	first, err := compilePattern(`[A-Z]+`)
	require.NoError(t, err)
	second, err := compilePattern(`[A-Z]+`)
	require.NoError(t, err)
	assert.Same(t, first, second)

	assert.True(t, first.MatchString("ABC"))
	assert.False(t, first.MatchString("ABC1"), "patterns are anchored")

	_, err = compilePattern(`(`)
	assert.Error(t, err)
}

func TestFacetChecks(t *testing.T) {
	text := func(s string) facetSubject {
		return facetSubject{lexical: s, length: func() int { return len(s) }}
	}
	number := func(s string) facetSubject {
		return facetSubject{lexical: s, numeric: true, length: func() int { return len(s) }}
	}

	tests := []struct {
		name    string
		facet   Facet
		subject facetSubject
		wantErr bool
	}{
		{name: "length ok", facet: Facet{Kind: "length", Value: "3"}, subject: text("abc")},
		{name: "length short", facet: Facet{Kind: "length", Value: "3"}, subject: text("ab"), wantErr: true},
		{name: "minLength", facet: Facet{Kind: "minLength", Value: "2"}, subject: text("a"), wantErr: true},
		{name: "bad facet value", facet: Facet{Kind: "maxLength", Value: "x"}, subject: text("a"), wantErr: true},
		{name: "maxExclusive equal", facet: Facet{Kind: "maxExclusive", Value: "10"}, subject: number("10"), wantErr: true},
		{name: "maxExclusive below", facet: Facet{Kind: "maxExclusive", Value: "10"}, subject: number("9.999")},
		{name: "minInclusive decimal", facet: Facet{Kind: "minInclusive", Value: "-1.5"}, subject: number("-1.50")},
		{name: "date bound", facet: Facet{Kind: "maxInclusive", Value: "2024-12-31"}, subject: text("2025-01-01"), wantErr: true},
		{name: "totalDigits leading zeros", facet: Facet{Kind: "totalDigits", Value: "1"}, subject: number("0.05")},
		{name: "totalDigits", facet: Facet{Kind: "totalDigits", Value: "2"}, subject: number("100"), wantErr: true},
		{name: "fractionDigits trailing zeros", facet: Facet{Kind: "fractionDigits", Value: "1"}, subject: number("1.500")},
		{name: "enumeration", facet: Facet{Kind: "enumeration", Values: []string{"a", "b"}}, subject: text("c"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.facet.check(tt.subject)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.True(t, IsFacet("totalDigits"))
	assert.False(t, IsFacet("assertion"))
	assert.Equal(t, Collapse, whiteSpaceOf([]Facet{{Kind: "whiteSpace", Value: "replace"}, {Kind: "whiteSpace", Value: "collapse"}}, Preserve))
}

func TestWildcardMatches(t *testing.T) {
	const target = "http://example.com"

	tests := []struct {
		namespace string
		matches   []string
		rejects   []string
	}{
		{namespace: "", matches: []string{"", target, "urn:other"}},
		{namespace: "##any", matches: []string{"", target, "urn:other"}},
		{namespace: "##other", matches: []string{"urn:other"}, rejects: []string{"", target}},
		{namespace: "##targetNamespace", matches: []string{target}, rejects: []string{"", "urn:other"}},
		{namespace: "##local", matches: []string{""}, rejects: []string{target}},
		{namespace: "##local urn:a  urn:b", matches: []string{"", "urn:a", "urn:b"}, rejects: []string{target, "urn:c"}},
	}
	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			w := NewWildcard(tt.namespace, "", target)
			assert.Equal(t, StrictProcess, w.Process)
			assert.True(t, w.Valid())
			for _, ns := range tt.matches {
				assert.True(t, w.Matches(ns), "should match %q", ns)
			}
			for _, ns := range tt.rejects {
				assert.False(t, w.Matches(ns), "should reject %q", ns)
			}
		})
	}

	assert.Equal(t, "urn:a urn:b", NewWildcard(" urn:a\n urn:b ", "lax", "").Namespace)
	assert.False(t, NewWildcard("##any", "loose", "").Valid())
	assert.False(t, NewWildcard("##bogus", "skip", "").Valid())
}
