package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "lending",
		Short:        "Library lending service",
		Version:      fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server (default if no command given)",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return entrypoint.Migrate(config.NewConfig())
			},
		},
		newCheckAvailabilityCommand(),
	)
	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	return entrypoint.Run(config.NewConfig(), Version)
}

func newCheckAvailabilityCommand() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check-availability",
		Short: "Compare book availability with open loans",
		Long: "Lists books whose availability flag disagrees with their open loans.\n" +
			"With --repair the flags are recomputed from the loans.",
		RunE: func(cmd *cobra.Command, args []string) error {
			drift, err := entrypoint.CheckAvailability(context.Background(), config.NewConfig(), repair)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(drift) == 0 {
				fmt.Fprintln(out, "Availability is consistent")
				return nil
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(drift); err != nil {
				return err
			}
			if repair {
				fmt.Fprintf(out, "Repaired %d book(s)\n", loans.CountRepaired(drift))
			}
			if unresolved := loans.Unresolved(drift); len(unresolved) > 0 {
				return fmt.Errorf("%d book(s) with drifted availability", len(unresolved))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "recompute drifted availability flags")
	return cmd
}
