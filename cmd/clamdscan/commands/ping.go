package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	clamd "github.com/DevHatRo/clamd-go"
)

func newPingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that clamd answers PING with PONG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.clamdConfig()
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			client, err := clamd.NewClient(cfg, clamd.WithLogger(a.logger))
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			if err := client.Ping(cmd.Context()); err != nil {
				return &ExitError{Code: 2, Err: fmt.Errorf("%s: %w", cfg.Address(), err)}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: PONG\n", cfg.Address())
			return nil
		},
	}
}
