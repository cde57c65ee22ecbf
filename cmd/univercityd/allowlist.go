package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thinkofname/univercity-core/univercity"
)

// newAllowlistCmd exposes allowlist editing without starting the server,
// for an operator to seed it before the first launch.
func newAllowlistCmd(stdout, stderr io.Writer) *cobra.Command {
	var allowlistPath = "allowlist.toml"
	cmd := &cobra.Command{
		Use:   "allowlist <add|remove|list> [name]",
		Short: "Edit the allowlist without starting the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := cmdAllowlist(allowlistPath, args, stdout); err != nil {
				fmt.Fprintf(stderr, "univercityd: %v\n", err)
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&allowlistPath, "allowlist", allowlistPath, "path to the allowlist TOML file")
	return cmd
}

func cmdAllowlist(path string, args []string, stdout io.Writer) error {
	a, err := univercity.LoadAllowlist(path)
	if err != nil {
		return fmt.Errorf("load allowlist: %w", err)
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: allowlist add <name>")
		}
		added, err := a.Add(args[1])
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(stdout, "added %s\n", args[1])
		} else {
			fmt.Fprintf(stdout, "%s is already on the allowlist\n", args[1])
		}
	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: allowlist remove <name>")
		}
		removed, err := a.Remove(args[1])
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(stdout, "removed %s\n", args[1])
		} else {
			fmt.Fprintf(stdout, "%s was not on the allowlist\n", args[1])
		}
	case "list":
		for _, name := range a.Players() {
			fmt.Fprintln(stdout, name)
		}
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
	return nil
}
