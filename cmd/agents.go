package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quantfold/crossarb/internal/agent"
	"github.com/quantfold/crossarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	agentsCmd = &cobra.Command{
		Use:   "agents",
		Short: "Show the status of every agent on a running daemon",
		RunE:  runAgents,
	}

	daemonAddr string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.Flags().StringVarP(&daemonAddr, "addr", "a", "http://localhost:8080", "Daemon HTTP address")
}

func runAgents(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(daemonAddr + "/api/agents")
	if err != nil {
		return fmt.Errorf("fetch agents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var states []agent.State
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return fmt.Errorf("decode agents: %w", err)
	}

	if len(states) == 0 {
		fmt.Println("No agents registered.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("User", "Running", "Paused", "Trades", "PnL", "Last Scan")

	for _, s := range states {
		lastScan := "-"
		if s.LastScanMs > 0 {
			lastScan = time.UnixMilli(s.LastScanMs).UTC().Format(time.RFC3339)
		}

		paused := "no"
		if s.Paused {
			paused = s.PauseReason
		}

		table.Append(
			s.UserID,
			fmt.Sprintf("%t", s.Running),
			paused,
			fmt.Sprintf("%d", s.TradesExecuted),
			formatPnL(s.PnLRealized),
			lastScan,
		)
	}

	table.Render()
	return nil
}

func formatPnL(units int64) string {
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s$%d.%06d", sign, units/types.StableUnits, units%types.StableUnits)
}
