package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/anneal/internal/config"
	"github.com/copyleftdev/anneal/internal/optimization/anneal"
	"github.com/copyleftdev/anneal/internal/store"
)

func newRunsCmd() *cobra.Command {
	var (
		dsn   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs saved with --save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("--db is required")
			}
			st, err := store.Open(dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOBJECTIVE\tSCHEDULE\tSTATUS\tJ_MIN\tFEVAL\tFINISHED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d (%s)\t%.6g\t%d\t%s\n",
					r.ID, r.Objective, r.Schedule, r.Status, anneal.Status(r.Cause), r.JMin, r.FEval,
					r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dsn, "db", config.GetEnv("ANNEAL_DB", ""), "sqlite database written by run --save")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs (0: all)")
	return cmd
}
