package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/qrchat/internal/config"
	"github.com/zulandar/qrchat/internal/db"
	"github.com/zulandar/qrchat/internal/fanout"
	"github.com/zulandar/qrchat/internal/notify"
	"github.com/zulandar/qrchat/internal/server"
	"github.com/zulandar/qrchat/internal/store"
	"github.com/zulandar/qrchat/internal/sweeper"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the QRChat API server",
		Long:  "Serves the visitor and organizer API, the SSE event stream, and the scheduled orphan sweeper. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "qrchat.yaml", "path to QRChat config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	opts := store.Opts{
		DB:     gormDB,
		Engine: fanout.NewEngine(fanout.EngineOpts{}),
	}
	multi, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return fmt.Errorf("configure notifiers: %w", err)
	}
	if multi != nil {
		opts.Notifier = multi
		fmt.Fprintln(out, "Chat notifications enabled")
	}

	st, err := store.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sweeper.Enabled {
		sw, err := sweeper.New(gormDB, cfg.Sweeper.Schedule)
		if err != nil {
			return fmt.Errorf("configure sweeper: %w", err)
		}
		go sw.Run(ctx)
		fmt.Fprintf(out, "Sweeper scheduled (%s)\n", cfg.Sweeper.Schedule)
	}

	return server.Start(ctx, server.StartOpts{
		Store:  st,
		Config: cfg,
		Out:    out,
	})
}

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	return cfg, gormDB, nil
}
