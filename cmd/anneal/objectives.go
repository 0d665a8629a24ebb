package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/anneal/internal/optimization/functions"
)

func newObjectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-objectives",
		Short: "List the built-in objective functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDIM\tBOX\tMINIMUM\tDESCRIPTION")
			for _, name := range functions.Names() {
				f, _ := functions.Lookup(name)
				dim := "any"
				if f.Dim > 0 {
					dim = fmt.Sprint(f.Dim)
				}
				fmt.Fprintf(tw, "%s\t%s\t[%g, %g]\t%g\t%s\n", f.Name, dim, f.Lower, f.Upper, f.Minimum, f.Description)
			}
			return tw.Flush()
		},
	}
}
