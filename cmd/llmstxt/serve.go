package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/llmstxt/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the llmstxt HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := newService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			logger.Info("starting llmstxt",
				"config", configPath,
				"cache", cfg.Cache.Backend,
				"scraper", cfg.Scrape.Provider,
				"model", cfg.Summarize.OpenAI.Model)
			return server.New(cfg.Listen, svc, logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "llmstxt.yaml", "path to config file")
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}
