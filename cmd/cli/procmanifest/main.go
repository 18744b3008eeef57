package main

import (
	"fmt"
	"io"
	"os"

	flags "github.com/jessevdk/go-flags"
)

func main() {
	os.Exit(run(newApp(os.Stdout), os.Args[1:], os.Stderr))
}

func newParser(a *app) *flags.Parser {
	parser := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	a.register(parser)
	return parser
}

func run(a *app, argv []string, errOut io.Writer) int {
	parser := newParser(a)

	_, err := parser.ParseArgs(argv)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(a.out, flagsErr.Message)
			return 0
		}
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	return 0
}
