package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/qrchat/internal/sweeper"
)

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Purge orphaned records now",
		Long:  "Runs one sweep immediately, deleting visitors, members, and messages whose session no longer exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	sw, err := sweeper.New(gormDB, cfg.Sweeper.Schedule)
	if err != nil {
		return err
	}

	res, err := sw.Purge(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Total() == 0 {
		fmt.Fprintln(out, "Nothing to sweep.")
		return nil
	}
	fmt.Fprintf(out, "Swept %d orphaned records (%d visitors, %d members, %d messages)\n",
		res.Total(), res.Visitors, res.Members, res.Messages)
	return nil
}
