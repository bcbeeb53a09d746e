package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentflare-ai/go-xsdgen/xsdrt"
)

type cmdValidate struct {
	compileFlags
}

func (*cmdValidate) help() *commandHelp {
	return &commandHelp{
		usage:   "validate [options] SCHEMA... DOCUMENT",
		summary: "Decode an instance document against schema documents",
		args:    cobra.MinimumNArgs(2),
	}
}

func (cmd *cmdValidate) flags(flags *pflag.FlagSet) {
	cmd.register(flags)
}

func (cmd *cmdValidate) run(ctx context.Context, argv []string) int {
	docPath := argv[len(argv)-1]
	res, _, ok := cmd.compile(ctx, argv[:len(argv)-1])
	if !ok {
		return 1
	}

	data, err := os.ReadFile(docPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	root, err := xsdrt.DecodeBytes(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", docPath, err)
		return 1
	}
	if _, err := res.Program.DecodeNode(root); err != nil {
		cmd.report(os.Stderr, err, docPath)
		return 1
	}
	fmt.Printf("%s: valid\n", docPath)
	return 0
}
