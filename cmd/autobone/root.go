// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/autobone/internal/app"
	"github.com/relabs-tech/autobone/internal/config"
)

type options struct {
	configPath string
	transport  string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "autobone",
		Short:         "Drive automatic skeleton calibration on a remote AutoBone service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "autobone_config.txt", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.transport, "transport", "", "Override TRANSPORT (websocket, mqtt, local)")

	root.AddCommand(
		&cobra.Command{
			Use:   "console",
			Short: "Interactive calibration from the terminal",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(opts, func(ctx context.Context, cfg *config.Config) error {
					log.Println("starting autobone console")
					return app.RunConsole(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "web",
			Short: "Serve the calibration web UI and JSON API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(opts, func(ctx context.Context, cfg *config.Config) error {
					log.Println("starting autobone web server")
					return app.RunWeb(ctx, cfg)
				})
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run the simulated AutoBone service",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(opts, func(ctx context.Context, cfg *config.Config) error {
					log.Printf("starting simulated AutoBone service (%s)", cfg.Transport)
					return app.RunService(ctx, cfg)
				})
			},
		},
	)
	return root
}

// run loads configuration and calls fn with a context cancelled on Ctrl+C.
func run(opts *options, fn func(context.Context, *config.Config) error) error {
	if err := config.InitGlobal(opts.configPath); err != nil {
		return fmt.Errorf("failed to load config from %s: %w", opts.configPath, err)
	}
	cfg := *config.Get()
	if opts.transport != "" {
		cfg.Transport = opts.transport
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, &cfg)
}
