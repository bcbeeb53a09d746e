package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cmdGenerate struct {
	compileFlags
	outPath string
}

func (*cmdGenerate) help() *commandHelp {
	return &commandHelp{
		usage:   "generate [options] SCHEMA...",
		summary: "Generate a Go parser package from schema documents",
		args:    cobra.MinimumNArgs(1),
	}
}

func (cmd *cmdGenerate) flags(flags *pflag.FlagSet) {
	cmd.register(flags)
	flags.StringVarP(&cmd.outPath, "output", "o", "", "output file (default stdout)")
}

func (cmd *cmdGenerate) run(ctx context.Context, argv []string) int {
	res, cfg, ok := cmd.compile(ctx, argv)
	if !ok {
		return 1
	}
	src, err := res.Source(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := writeOutput(cmd.outPath, src); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
