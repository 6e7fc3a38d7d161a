package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gema-essay",
	Short: "Essay evaluation API with failure alerting",
	Long: `gema-essay serves the essay evaluation API, re-runs failed evaluations on a
schedule and relays API failure events to the configured alert channel.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
