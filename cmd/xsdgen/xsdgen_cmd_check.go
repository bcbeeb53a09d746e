package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cmdCheck struct {
	compileFlags
	outPath string
}

func (*cmdCheck) help() *commandHelp {
	return &commandHelp{
		usage:   "check [options] -o FILE SCHEMA...",
		summary: "Check that a generated file is up to date",
		args:    cobra.MinimumNArgs(1),
	}
}

func (cmd *cmdCheck) flags(flags *pflag.FlagSet) {
	cmd.register(flags)
	flags.StringVarP(&cmd.outPath, "output", "o", "", "previously generated file")
}

func (cmd *cmdCheck) run(ctx context.Context, argv []string) int {
	if cmd.outPath == "" {
		fmt.Fprintln(os.Stderr, "check needs the generated file (-o)")
		return 2
	}
	current, err := os.ReadFile(cmd.outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	res, cfg, ok := cmd.compile(ctx, argv)
	if !ok {
		return 1
	}
	want, err := res.Source(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if bytes.Equal(current, want) {
		return 0
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(want)),
		FromFile: cmd.outPath,
		ToFile:   cmd.outPath + " (generated)",
		Context:  3,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "%s is out of date:\n%s", cmd.outPath, diff)
	return 1
}
