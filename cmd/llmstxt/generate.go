package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/llmstxt/pkg/models"
)

func newGenerateCmd() *cobra.Command {
	var (
		configPath string
		apiKey     string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "generate URL...",
		Short: "Generate llms.txt and llms-full.txt once and write them to disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := newService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			res, err := svc.Generate(ctx, models.GenerateRequest{URLs: args, BYOKKey: apiKey})
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			for name, content := range map[string]string{
				"llms.txt":      res.LLMsTxt,
				"llms-full.txt": res.LLMsFullTxt,
			} {
				path := filepath.Join(outDir, name)
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
			}

			source := "generated"
			if res.CacheHit {
				source = "cached"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s) written to %s\n", res.Host, res.Tier, source, outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "llmstxt.yaml", "path to config file")
	cmd.Flags().StringVar(&apiKey, "key", "", "your own Firecrawl API key (raises the URL limit)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}
