package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/v0xg/lookaround/internal/script"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <script>",
		Short: "Check a script without opening a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			sc, err := script.Load(args[0])
			if sc == nil {
				return err
			}

			counts := make(map[script.Kind]int)
			script.Walk(sc.Actions, func(n script.Node) { counts[n.Kind()]++ })
			fmt.Fprintf(out, "%s: %d top-level actions\n", args[0], len(sc.Actions))
			for k := script.KindList; k <= script.KindUnknown; k++ {
				if counts[k] > 0 {
					fmt.Fprintf(out, "  %-14s %d\n", k, counts[k])
				}
			}
			if names := script.HandlerNames(sc.Actions); len(names) > 0 {
				fmt.Fprintf(out, "  handlers       %v\n", names)
			}

			problems := unjoin(err)
			for _, p := range problems {
				fmt.Fprintf(out, "  ✗ %v\n", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d invalid action(s)", len(problems))
			}
			fmt.Fprintln(out, "  ✓ valid")
			return nil
		},
	}
}

// unjoin splits an errors.Join result back into its parts
func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
