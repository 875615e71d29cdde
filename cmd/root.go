package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "edgedns",
	Short: "Publishes the fastest edge IPs of each region as DNS records",
	Long: `edgedns fetches candidate edge IPs for every configured region,
benchmarks them and replaces the region's A records with the winners.

Configuration is read from edgedns.yaml, an optional .env file beside it
and the process environment, in increasing order of precedence.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("failed to initialize command line parser: %s", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Turns on verbose logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file (defaults to ./edgedns.yaml)")
}
