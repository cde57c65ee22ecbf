// univercityd is the server binary: it loads a Config from disk, starts
// listening, runs the tick loop and exposes an operator console.
package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is returned by a RunE to signal a non-zero exit after the
// command has already written its own message to stderr.
var errExit = errors.New("exit")

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "univercityd",
		Short:         "UniverCity simulation server",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newServeCmd(stdout, stderr),
		newAllowlistCmd(stdout, stderr),
	)
	return root
}
