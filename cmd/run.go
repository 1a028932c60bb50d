package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/crossarb/internal/app"
	"github.com/quantfold/crossarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage daemon",
	Long: `Starts the crossarb daemon, which will:
1. Serve the agent management API and Prometheus metrics over HTTP
2. Merge quote snapshots from the AMM and CLOB venues
3. Detect cross-venue pairings where YES + NO < $1
4. Execute both legs for every running agent that approves a trade

Agents are created and started through the HTTP API; none run until asked.`,
	RunE: runDaemon,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return application.Run()
}
