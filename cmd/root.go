// Package cmd defines and implements the CLI commands for the pagecrawl executable.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd creates the root command and attaches the subcommands. Each
// invocation gets its own viper instance so flag bindings never leak between
// runs.
func newRootCmd() *cobra.Command {
	v := viper.New()
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pagecrawl",
		Short: "Crawl a paginated listing and export its records.",
		Long: `pagecrawl downloads every page of a paginated listing, caches the raw markup,
extracts (primary, secondary) records from each page and writes them as JSON,
CSV or XLSX. A summary of each run is written to meta.csv in the output
directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(newCrawlCmd(v, opts))
	return cmd
}

type rootOptions struct {
	configFile string
	envFile    string
}

// Execute is the main entry point. It exits non-zero when the command fails.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
