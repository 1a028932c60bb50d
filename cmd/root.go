package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "crossarb",
	Short: "Cross-venue prediction market arbitrage platform",
	Long: `Crossarb runs per-user trading agents that scan two prediction
market venues for binary markets where YES on one venue plus NO on the
other costs less than the $1 settlement payout, and executes both legs.

The daemon exposes an HTTP API for agent management plus Prometheus
metrics and health probes. Utility commands cover token approvals,
balance checks and agent status.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
