package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/llmstxt/pkg/models"
	"github.com/pario-ai/llmstxt/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		host       string
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()

			if recent > 0 {
				recs, err := tr.Recent(ctx, recent)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Println("No generations recorded.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tHOST\tTIER\tURLS\tPAGES\tCACHE\tTOKENS\tDURATION")
				for _, r := range recs {
					cache := "miss"
					if r.CacheHit {
						cache = "hit"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%d\t%dms\n",
						r.CreatedAt.Format("2006-01-02T15:04:05"), r.Host, models.TierFromNoLimit(r.NoLimit),
						r.URLCount, r.PageCount, cache, r.TotalTokens, r.DurationMs)
				}
				return w.Flush()
			}

			summaries, err := tr.Summary(ctx, host)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No generations recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HOST\tTIER\tREQUESTS\tCACHE HITS\tPAGES\tTOKENS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
					s.Host, models.TierFromNoLimit(s.NoLimit), s.RequestCount, s.CacheHits, s.TotalPages, s.TotalTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "llmstxt.yaml", "path to config file")
	cmd.Flags().StringVar(&host, "host", "", "filter by host")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent generations instead of the summary")
	return cmd
}
