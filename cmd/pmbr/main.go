package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pmbr/internal/config"
	"pmbr/internal/container"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pmbr",
		Short:         "Post-movement beta rebound two-joystick reaction time task",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newGenerateCmd(),
		newSessionsCmd(),
		newReportCmd(),
		newExportCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openContainer builds the shared dependencies and connects the configured store
func openContainer(ctx context.Context, cfg *config.Config) (*container.Container, error) {
	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.InitWithDatabase(ctx); err != nil {
		_ = c.Shutdown()
		return nil, err
	}
	return c, nil
}
