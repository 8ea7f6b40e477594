package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "llmstxt",
		Short:   "llmstxt generates llms.txt and llms-full.txt for a website",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newCacheCmd(),
		newStatsCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
