package xsdgen

import (
	"fmt"
	"go/format"
	"io"
	"strconv"
	"strings"
)

// Header marks generated files.
const Header = "// Code generated by xsdgen. DO NOT EDIT.\n"

// Format renders decls as a gofmt'ed Go source file.
func Format(pkg, runtime string, decls []Decl) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(Header)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "package %s\n\n", pkg)

	uses := func(sel string) bool {
		for _, d := range decls {
			if strings.Contains(d.Body, sel) {
				return true
			}
		}
		return false
	}
	sb.WriteString("import (\n")
	if uses("io.Reader") {
		sb.WriteString("\t\"io\"\n\n")
	}
	fmt.Fprintf(&sb, "\txsdrt %s\n", strconv.Quote(runtime))
	sb.WriteString(")\n")

	for _, d := range decls {
		sb.WriteString("\n")
		sb.WriteString(d.Body)
	}

	src, err := format.Source([]byte(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code: %w", err)
	}
	return src, nil
}

// Write formats decls and writes them to w.
func Write(w io.Writer, pkg, runtime string, decls []Decl) error {
	src, err := Format(pkg, runtime, decls)
	if err != nil {
		return err
	}
	_, err = w.Write(src)
	return err
}
