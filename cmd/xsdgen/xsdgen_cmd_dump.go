package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/agentflare-ai/go-xsdgen"
)

// dumpOutput is the YAML view of a compilation: what was read and the
// order declarations are generated in.
type dumpOutput struct {
	Package   string          `yaml:"package"`
	Documents []dumpDocument  `yaml:"documents"`
	Elements  []string        `yaml:"elements"`
	Order     []dumpComponent `yaml:"order"`
}

type dumpDocument struct {
	Location  string `yaml:"location"`
	Namespace string `yaml:"namespace,omitempty"`
}

type dumpComponent struct {
	Recursive bool       `yaml:"recursive,omitempty"`
	Decls     []dumpDecl `yaml:"decls"`
}

type dumpDecl struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
	Go   string `yaml:"go"`
}

type cmdDump struct {
	compileFlags
}

func (*cmdDump) help() *commandHelp {
	return &commandHelp{
		usage:   "dump [options] SCHEMA...",
		summary: "Print the compiled declarations and their generation order as YAML",
		args:    cobra.MinimumNArgs(1),
	}
}

func (cmd *cmdDump) flags(flags *pflag.FlagSet) {
	cmd.register(flags)
}

func (cmd *cmdDump) run(ctx context.Context, argv []string) int {
	res, cfg, ok := cmd.compile(ctx, argv)
	if !ok {
		return 1
	}

	out := dumpOutput{Package: cfg.Package}
	for _, doc := range res.Documents {
		out.Documents = append(out.Documents, dumpDocument{Location: doc.Location, Namespace: doc.Namespace})
	}
	for _, e := range res.Program.Elements {
		out.Elements = append(out.Elements, e.Name.String())
	}
	for _, c := range res.Order {
		dc := dumpComponent{Recursive: c.Recursive}
		for _, d := range c.Decls {
			key := d.Name.String()
			if d.Kind == xsdgen.GroupKind {
				key = "group " + key
			}
			dc.Decls = append(dc.Decls, dumpDecl{Kind: d.Kind.String(), Name: d.Name.String(), Go: res.Lowered.Names[key]})
		}
		out.Order = append(out.Order, dc)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := enc.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
