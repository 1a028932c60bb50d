package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/crossarb/internal/venue"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/signer"
	"github.com/quantfold/crossarb/pkg/wallet"
)

//nolint:gochecknoglobals // Cobra boilerplate
var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Grant the AMM exchange its trading approvals",
	Long: `Checks the stable-token allowance and the outcome-token operator
approval granted to the AMM exchange contract, and submits the missing
approval transactions. Run once per wallet before live trading.`,
	RunE: runApprove,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY not set")
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	sig, err := signer.NewLocal(cfg.PrivateKey, cfg.ChainID, cfg.ChainRPCURL)
	if err != nil {
		return fmt.Errorf("setup signer: %w", err)
	}

	client, err := wallet.NewClient(cfg.ChainRPCURL, cfg.StableToken, logger)
	if err != nil {
		return fmt.Errorf("setup wallet client: %w", err)
	}

	amm, err := venue.NewAMM(&venue.AMMConfig{
		BaseURL:      cfg.AMMBaseURL,
		Signer:       sig,
		Chain:        client,
		Exchange:     cfg.AMMExchange,
		Vault:        cfg.AMMVault,
		StableToken:  cfg.StableToken,
		OutcomeToken: cfg.OutcomeToken,
		Mode:         config.ModeCLOB,
		GasPriceWei:  cfg.AgentDefaults.GasPriceWei,
		RateLimit:    cfg.VenueRateLimit,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("setup amm adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Address: %s\n", sig.Address().Hex())
	fmt.Printf("Checking allowance for AMM exchange %s ...\n", cfg.AMMExchange)

	if err := amm.EnsureApprovals(ctx); err != nil {
		return fmt.Errorf("ensure approvals: %w", err)
	}

	fmt.Println("Approvals in place.")
	return nil
}
