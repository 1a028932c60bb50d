package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/signer"
	"github.com/quantfold/crossarb/pkg/types"
	"github.com/quantfold/crossarb/pkg/wallet"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check stable-token balance and exchange allowances",
	Long: `Display the signing wallet's holdings:
- Stable-token balance (trading capital, 6 decimals)
- Allowance granted to the AMM exchange contract
- Allowance granted to the CLOB exchange contract`,
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY not set")
	}

	sig, err := signer.NewLocal(cfg.PrivateKey, cfg.ChainID, cfg.ChainRPCURL)
	if err != nil {
		return fmt.Errorf("setup signer: %w", err)
	}

	client, err := wallet.NewClient(cfg.ChainRPCURL, cfg.StableToken, zap.NewNop())
	if err != nil {
		return fmt.Errorf("setup wallet client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	owner := sig.Address()
	fmt.Printf("Address: %s\n\n", owner.Hex())

	balance, err := client.StableBalance(ctx, owner)
	if err != nil {
		return fmt.Errorf("get stable balance: %w", err)
	}
	fmt.Printf("Stable balance:  %s\n", formatStable(balance))

	for _, spender := range []struct {
		label    string
		contract string
	}{
		{"AMM exchange", cfg.AMMExchange},
		{"CLOB exchange", cfg.CLOBExchange},
	} {
		if spender.contract == "" {
			fmt.Printf("%-16s not configured\n", spender.label+":")
			continue
		}
		allowance, err := client.Allowance(ctx, owner, common.HexToAddress(spender.contract))
		if err != nil {
			return fmt.Errorf("get %s allowance: %w", spender.label, err)
		}
		fmt.Printf("%-16s %s\n", spender.label+":", formatStable(allowance))
	}

	return nil
}

func formatStable(units int64) string {
	return fmt.Sprintf("%d.%06d", units/types.StableUnits, units%types.StableUnits)
}
