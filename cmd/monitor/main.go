package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"

	sourcesPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch feeds, rates and health endpoints and notify on change",
		Long: `monitor polls item feeds, scalar rate boards and REST health checks
on per-source schedules, compares each observation with the persisted state,
and sends Slack or Telegram notifications for what changed.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&sourcesPath, "sources", "", "sources YAML file (default $SOURCES_FILE or sources.yaml)")

	run := runCmd()
	rootCmd.RunE = run.RunE
	rootCmd.AddCommand(
		run,
		checkCmd(),
		stateCmd(),
		preflightCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version info",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("monitor %s (%s, %s)\n", version, commit, buildDate)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
