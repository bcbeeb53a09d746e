package xsdgen

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
	"github.com/rivo/uniseg"
)

// Diagnostic is a rustc-style rendering of a compiler error.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Position Position `json:"position"`
	Hints    []string `json:"hints,omitempty"`
}

// Severity represents the severity level of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic codes grouped by pipeline stage.
const (
	CodeIngest      = "E100"
	CodeUnresolved  = "E200"
	CodeDerivation  = "E300"
	CodeUnsupported = "E400"
	CodeInstance    = "E500"
	CodeInternal    = "E900"
)

// NewDiagnostic classifies err by the first compiler error in its chain.
func NewDiagnostic(err error) Diagnostic {
	var (
		ingest      *IngestError
		unresolved  *UnresolvedReferenceError
		derivation  *InvalidDerivationError
		unsupported *UnsupportedConstructError
		invalid     *xsdrt.ValidationError
		lexical     *xsdrt.LexicalError
	)
	diag := Diagnostic{Severity: SeverityError, Code: CodeInternal, Message: err.Error()}
	switch {
	case errors.As(err, &unresolved):
		diag.Code = CodeUnresolved
		diag.Position = unresolved.Position
		diag.Message = fmt.Sprintf("unresolved %s reference %s", unresolved.Kind, unresolved.Target)
		diag.Hints = append(diag.Hints, fmt.Sprintf("referenced from %s %s", unresolved.FromKind, unresolved.From))
		if unresolved.Target.Namespace != "" {
			diag.Hints = append(diag.Hints, fmt.Sprintf("check that a schema for namespace %q is imported", unresolved.Target.Namespace))
		}
	case errors.As(err, &derivation):
		diag.Code = CodeDerivation
		diag.Message = derivation.Error()
		if len(derivation.Chain) > 0 {
			diag.Hints = append(diag.Hints, "break the cycle by deriving one of these types from a different base")
		}
	case errors.As(err, &unsupported):
		diag.Code = CodeUnsupported
		diag.Position = unsupported.Position
		diag.Message = fmt.Sprintf("unsupported construct %s", unsupported.Construct)
		if unsupported.Decl != "" {
			diag.Message += " in " + unsupported.Decl
		}
		if slices.Contains(LenientCategories, unsupported.Category) {
			diag.Hints = append(diag.Hints, fmt.Sprintf("add %q to the lenient list to skip it with a warning", unsupported.Category))
		}
	case errors.As(err, &ingest):
		diag.Code = CodeIngest
		diag.Position = ingest.Position
		if diag.Position.File == "" {
			diag.Position.File = ingest.Location
		}
		if ingest.Err != nil {
			diag.Message = ingest.Err.Error()
		}
		if ingest.Construct != "" {
			diag.Message = ingest.Construct + ": " + diag.Message
		}
	case errors.As(err, &invalid):
		// Instance positions carry no file name; callers fill it in.
		diag.Code = CodeInstance
		diag.Position = Position{Line: invalid.Line, Column: invalid.Column}
		bare := *invalid
		bare.Line, bare.Column = 0, 0
		diag.Message = bare.Error()
	case errors.As(err, &lexical):
		diag.Code = CodeInstance
		diag.Position = Position{Line: lexical.Line, Column: lexical.Column}
		bare := *lexical
		bare.Line, bare.Column = 0, 0
		diag.Message = bare.Error()
	}
	return diag
}

// ErrorFormatter provides rustc-style error formatting
type ErrorFormatter struct {
	Color bool
}

// Format formats a diagnostic in rustc style. source is the text of the
// file named by the diagnostic position and may be empty.
func (ef *ErrorFormatter) Format(diag Diagnostic, source string) string {
	var sb strings.Builder

	severity := string(diag.Severity)
	if ef.Color {
		switch diag.Severity {
		case SeverityError:
			severity = "\033[31;1merror\033[0m"
		case SeverityWarning:
			severity = "\033[33;1mwarning\033[0m"
		}
	}
	fmt.Fprintf(&sb, "%s[%s]: %s\n", severity, diag.Code, diag.Message)

	if diag.Position.File != "" {
		if diag.Position.Line > 0 {
			fmt.Fprintf(&sb, " --> %s:%d:%d\n", diag.Position.File, diag.Position.Line, diag.Position.Column)
		} else {
			fmt.Fprintf(&sb, " --> %s\n", diag.Position.File)
		}
	}

	if source != "" && diag.Position.Line > 0 {
		lines := strings.Split(source, "\n")
		if diag.Position.Line <= len(lines) {
			line := strings.TrimRight(lines[diag.Position.Line-1], "\r")
			fmt.Fprintf(&sb, "%4d | %s\n", diag.Position.Line, line)
			sb.WriteString("     | ")
			if diag.Position.Column > 0 {
				sb.WriteString(caretPadding(line, diag.Position.Column))
				if ef.Color {
					sb.WriteString("\033[31;1m^\033[0m")
				} else {
					sb.WriteString("^")
				}
			}
			sb.WriteString("\n")
		}
	}

	if len(diag.Hints) > 0 {
		sb.WriteString("     |\n")
		for _, hint := range diag.Hints {
			sb.WriteString("     = help: " + hint + "\n")
		}
	}
	return sb.String()
}

// caretPadding returns the blank prefix that lines a caret up under
// the 1-based column col of line. Tabs are kept so the terminal expands
// them the same way in both lines.
func caretPadding(line string, col int) string {
	runes := []rune(line)
	if col-1 < len(runes) {
		runes = runes[:col-1]
	}
	var sb strings.Builder
	state := -1
	rest := string(runes)
	for len(rest) > 0 {
		var cluster string
		var width int
		cluster, rest, width, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if cluster == "\t" {
			sb.WriteByte('\t')
			continue
		}
		sb.WriteString(strings.Repeat(" ", width))
	}
	return sb.String()
}
