package main

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/anneal/internal/logging"
)

type rootOptions struct {
	logLevel  string
	logFormat string
	logger    *logging.Logger
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "anneal",
		Short: "Simulated annealing global minimizer",
		Long: `anneal minimizes box-constrained objectives with fast, cauchy or
boltzmann simulated annealing and optionally polishes the result locally.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewLogger(&logging.Config{
				Level:  ro.logLevel,
				Format: ro.logFormat,
				Output: "stderr",
			})
			if err != nil {
				return err
			}
			ro.logger = logger.WithField("command", cmd.Name())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&ro.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(newRunCmd(ro), newObjectivesCmd(), newRunsCmd())
	return cmd
}
