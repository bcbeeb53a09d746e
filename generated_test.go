package xsdgen

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

const recSchema = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
	xmlns:r="urn:rec" targetNamespace="urn:rec" elementFormDefault="qualified">
	<xs:element name="person" type="r:Person"/>
	<xs:complexType name="Person">
		<xs:sequence>
			<xs:element name="name" type="xs:string"/>
			<xs:element name="child" type="r:Person" minOccurs="0" maxOccurs="unbounded"/>
			<xs:choice minOccurs="0">
				<xs:element name="a" type="xs:string"/>
				<xs:element name="b" type="xs:int"/>
			</xs:choice>
			<xs:element name="spouse" type="r:Person" nillable="true" minOccurs="0"/>
		</xs:sequence>
	</xs:complexType>
</xs:schema>`

// generatedMain drives the generated packages and prints one line per
// document. The import prefix is substituted at run time.
const generatedMain = `package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"PREFIX/rec"
	"PREFIX/xsdschema"
)

func describe(p *rec.Person) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "{name=%s", p.Name)
	if p.A != nil {
		fmt.Fprintf(&sb, " a=%q", *p.A)
	}
	if p.B != nil {
		fmt.Fprintf(&sb, " b=%d", *p.B)
	}
	if p.Spouse != nil {
		fmt.Fprintf(&sb, " spouse=%s nil=%t", describe(p.Spouse), p.Spouse.Nil)
	}
	sb.WriteString(" children=[")
	for i, c := range p.Child {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(describe(c))
	}
	sb.WriteString("]}")
	return sb.String()
}

// names collects the Name fields of every generated struct reachable
// from v.
func names(v reflect.Value, out *[]string) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			names(v.Elem(), out)
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			names(v.Index(i), out)
		}
	case reflect.Struct:
		if strings.HasSuffix(v.Type().PkgPath(), "/xsdrt") {
			return
		}
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if v.Type().Field(i).Name == "Name" {
				if f.Kind() == reflect.Pointer && !f.IsNil() {
					f = f.Elem()
				}
				if f.Kind() == reflect.String {
					*out = append(*out, f.String())
					continue
				}
			}
			names(f, out)
		}
	}
}

func main() {
	for _, doc := range os.Args[2:] {
		p, err := rec.ParsePerson(strings.NewReader(doc))
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(describe(p))
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer f.Close()
	s, err := xsdschema.ParseSchema(f)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	var out []string
	names(reflect.ValueOf(s), &out)
	sort.Strings(out)
	fmt.Println("names:", strings.Join(out, ","))
}
`

// writeGenerated compiles location into package pkg under dir.
func writeGenerated(t *testing.T, dir, pkg, location, src string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Package = pkg
	c := &Compiler{Config: cfg}
	var res *Result
	var err error
	if src == "" {
		res, err = c.Compile(context.Background(), location)
	} else {
		res, err = c.CompileDocuments(context.Background(), schemaDoc(t, location, src))
	}
	require.NoError(t, err)
	out, err := res.Source(cfg)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, pkg), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, pkg, pkg+".go"), out, 0o644))
}

// declaredNames lists the name attributes of schema components in the
// document at path.
func declaredNames(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	root, err := xsdrt.DecodeBytes(data)
	require.NoError(t, err)
	var out []string
	var walk func(n *xsdrt.Node)
	walk = func(n *xsdrt.Node) {
		if n.Name.Namespace != xsdrt.XSDNamespace {
			return
		}
		if name, ok := n.AttrLocal("name"); ok {
			out = append(out, name)
		}
		for _, c := range n.Elements() {
			walk(c)
		}
	}
	walk(root)
	slices.Sort(out)
	return out
}

func TestGeneratedPackagesRun(t *testing.T) {
	if testing.Short() {
		t.Skip("builds generated packages")
	}
	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go tool not available")
	}

	// The packages must live inside the module to import the runtime.
	dir, err := os.MkdirTemp(".", "generated-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	meta, err := filepath.Abs(filepath.Join("testdata", "XMLSchema.xsd"))
	require.NoError(t, err)
	writeGenerated(t, dir, "xsdschema", meta, "")
	writeGenerated(t, dir, "rec", "rec.xsd", recSchema)
	prefix := "github.com/agentflare-ai/go-xsdgen/" + filepath.Base(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "main"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main", "main.go"),
		[]byte(strings.ReplaceAll(generatedMain, "PREFIX", prefix)), 0o644))

	pkgs := "./" + filepath.Base(dir) + "/..."
	vet := exec.CommandContext(t.Context(), goTool, "vet", pkgs)
	out, err := vet.CombinedOutput()
	require.NoError(t, err, "go vet:\n%s", out)

	nested := "<name>L0</name>"
	for i := 1; i <= 5; i++ {
		nested = "<name>L" + string(rune('0'+i)) + "</name><child>" + nested + "</child>"
	}
	docs := []string{
		`<person xmlns="urn:rec"><name>A</name><child><name>B</name></child></person>`,
		`<person xmlns="urn:rec"><name>A</name><name>B</name></person>`,
		`<person xmlns="urn:rec">` + nested + `</person>`,
		`<person xmlns="urn:rec"><name>A</name><a></a></person>`,
		`<person xmlns="urn:rec"><name>A</name><b>7</b></person>`,
		`<person xmlns="urn:rec"><name>A</name></person>`,
		`<person xmlns="urn:rec" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><name>A</name><spouse xsi:nil="true"/></person>`,
	}
	run := exec.CommandContext(t.Context(), goTool, append([]string{"run", "./" + filepath.Join(filepath.Base(dir), "main"), meta}, docs...)...)
	out, err = run.CombinedOutput()
	require.NoError(t, err, "go run:\n%s", out)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, len(docs)+1, "%s", out)
	assert.Equal(t, "{name=A children=[{name=B children=[]}]}", lines[0])
	assert.Contains(t, lines[1], "error:")
	assert.Contains(t, lines[1], "particle name")
	assert.Contains(t, lines[1], "exceeds maxOccurs 1")
	assert.Equal(t, "{name=L5 children=[{name=L4 children=[{name=L3 children=[{name=L2 children=[{name=L1 children=[{name=L0 children=[]}]}]}]}]}]}", lines[2])
	assert.Equal(t, `{name=A a="" children=[]}`, lines[3], "an empty branch stays distinguishable from an absent one")
	assert.Equal(t, "{name=A b=7 children=[]}", lines[4])
	assert.Equal(t, "{name=A children=[]}", lines[5])
	assert.Equal(t, "{name=A spouse={name= children=[]} nil=true children=[]}", lines[6])

	assert.Equal(t, "names: "+strings.Join(declaredNames(t, meta), ","), lines[7])
}
