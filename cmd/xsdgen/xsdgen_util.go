package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"

	"github.com/agentflare-ai/go-xsdgen"
)

// compileFlags are shared by every command that compiles schemas.
type compileFlags struct {
	configPath string
	pkg        string
	verbose    bool
	color      bool
}

func (f *compileFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&f.pkg, "package", "p", "", "name of the generated package (overrides the configuration)")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log compilation stages")
	flags.BoolVar(&f.color, "color", false, "color diagnostics")
}

func (f *compileFlags) config() (*xsdgen.Config, error) {
	cfg := xsdgen.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = xsdgen.LoadConfig(f.configPath); err != nil {
			return nil, err
		}
	}
	if f.pkg != "" {
		cfg.Package = f.pkg
	}
	return cfg, cfg.Validate()
}

func (f *compileFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// compile expands patterns and runs the compiler. On failure the
// diagnostic has already been printed.
func (f *compileFlags) compile(ctx context.Context, patterns []string) (*xsdgen.Result, *xsdgen.Config, bool) {
	cfg, err := f.config()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, false
	}
	locations, err := expandInputs(cfg, patterns)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, false
	}
	compiler := &xsdgen.Compiler{Config: cfg, Logger: f.logger()}
	res, err := compiler.Compile(ctx, locations...)
	if err != nil {
		f.report(os.Stderr, err, "")
		return nil, nil, false
	}
	return res, cfg, true
}

// report prints err as a diagnostic, quoting the offending line when
// the file can be read. file names the document of positions that do
// not carry one.
func (f *compileFlags) report(w io.Writer, err error, file string) {
	diag := xsdgen.NewDiagnostic(err)
	if diag.Position.File == "" {
		diag.Position.File = file
	}
	var source string
	if diag.Position.File != "" && diag.Position.Line > 0 {
		if buf, readErr := os.ReadFile(diag.Position.File); readErr == nil {
			source = string(buf)
		}
	}
	fmt.Fprint(w, (&xsdgen.ErrorFormatter{Color: f.color}).Format(diag, source))
}

// expandInputs resolves glob patterns to schema files, dropping excluded
// and repeated paths. A pattern matching nothing is kept as is so the
// loader reports the missing file.
func expandInputs(cfg *xsdgen.Config, patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid input pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if seen[m] || cfg.Excluded(filepath.ToSlash(m)) {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no schema documents to compile")
	}
	return out, nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	fp, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	_, writeErr := fp.Write(data)
	closeErr := fp.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}
