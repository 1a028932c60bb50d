package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/agent"
	"github.com/quantfold/crossarb/internal/arbitrage"
	"github.com/quantfold/crossarb/internal/execution"
	"github.com/quantfold/crossarb/internal/markets"
	"github.com/quantfold/crossarb/internal/position"
	"github.com/quantfold/crossarb/internal/quotes"
	"github.com/quantfold/crossarb/internal/risk"
	"github.com/quantfold/crossarb/internal/storage"
	"github.com/quantfold/crossarb/internal/supervisor"
	"github.com/quantfold/crossarb/internal/venue"
	"github.com/quantfold/crossarb/pkg/cache"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/healthprobe"
	"github.com/quantfold/crossarb/pkg/httpserver"
	"github.com/quantfold/crossarb/pkg/signer"
	"github.com/quantfold/crossarb/pkg/types"
	"github.com/quantfold/crossarb/pkg/wallet"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	walletClient, err := wallet.NewClient(cfg.ChainRPCURL, cfg.StableToken, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup wallet client: %w", err)
	}

	tokenCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}
	resolver := setupResolver(cfg, tokenCache)

	repo, err := storage.NewRepository(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	quoteSource, streams := setupQuoteSource(cfg, logger)
	detector := setupDetector(cfg, logger)

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		repo:          repo,
		quoteSource:   quoteSource,
		streams:       streams,
		resolver:      resolver,
		detector:      detector,
		walletClient:  walletClient,
		ctx:           ctx,
		cancel:        cancel,
	}

	a.supervisor = supervisor.New(a.agentFactory, cfg.MaxAgents, logger)

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Agents:        a.supervisor,
		AgentDefaults: cfg.AgentDefaults,
		Quotes:        a.quoteSource,
	})

	return a, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupResolver(cfg *config.Config, tokenCache cache.Cache) markets.Resolver {
	meta := markets.NewMetaClient(map[string]string{
		venue.VenueAMM:  cfg.AMMBaseURL,
		venue.VenueCLOB: cfg.CLOBBaseURL,
	})
	return markets.NewCachedResolver(meta, tokenCache)
}

func setupQuoteSource(cfg *config.Config, logger *zap.Logger) (*quotes.Source, []*quotes.StreamFetcher) {
	fetchers := []quotes.Fetcher{
		quotes.NewRESTFetcher(venue.VenueAMM, cfg.AMMBaseURL),
	}

	var streams []*quotes.StreamFetcher
	if cfg.CLOBStreamURL != "" {
		stream := quotes.NewStreamFetcher(venue.VenueCLOB, cfg.CLOBStreamURL, logger)
		fetchers = append(fetchers, stream)
		streams = append(streams, stream)
	} else {
		fetchers = append(fetchers, quotes.NewRESTFetcher(venue.VenueCLOB, cfg.CLOBBaseURL))
	}

	return quotes.NewSource(fetchers, logger), streams
}

func setupDetector(cfg *config.Config, logger *zap.Logger) *arbitrage.Detector {
	return arbitrage.New(arbitrage.Config{
		MinSpreadBps: cfg.AgentDefaults.MinSpreadBps,
		FeeBps: map[string]int64{
			venue.VenueAMM:  cfg.AMMFeeBps,
			venue.VenueCLOB: cfg.CLOBFeeBps,
		},
		GasPriceWei:    cfg.AgentDefaults.GasPriceWei,
		GasToQuoteRate: float64(cfg.AgentDefaults.GasToQuoteRate),
		Logger:         logger,
	})
}

// agentFactory assembles one user's isolated trading stack: signer, venue
// adapters, store, pause state, risk gate, executor and loop.
func (a *App) agentFactory(userID string, agentCfg config.AgentConfig) (supervisor.Handle, error) {
	sig, err := a.signerFor(agentCfg)
	if err != nil {
		return nil, err
	}

	logger := a.logger.With(zap.String("user", userID))

	amm, err := venue.NewAMM(&venue.AMMConfig{
		BaseURL:      a.cfg.AMMBaseURL,
		Signer:       sig,
		Chain:        a.walletClient,
		Exchange:     a.cfg.AMMExchange,
		Vault:        a.cfg.AMMVault,
		StableToken:  a.cfg.StableToken,
		OutcomeToken: a.cfg.OutcomeToken,
		Mode:         agentCfg.ExecutionMode,
		GasPriceWei:  agentCfg.GasPriceWei,
		RateLimit:    a.cfg.VenueRateLimit,
		FeeRateBps:   a.cfg.AMMFeeBps,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup amm adapter: %w", err)
	}

	clob, err := venue.NewCLOB(&venue.CLOBConfig{
		BaseURL:    a.cfg.CLOBBaseURL,
		Signer:     sig,
		Chain:      a.walletClient,
		Exchange:   a.cfg.CLOBExchange,
		Mode:       agentCfg.ExecutionMode,
		RateLimit:  a.cfg.VenueRateLimit,
		FeeRateBps: a.cfg.CLOBFeeBps,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup clob adapter: %w", err)
	}

	adapters := map[string]venue.Adapter{
		venue.VenueAMM:  amm,
		venue.VenueCLOB: clob,
	}

	store := position.NewStore(userID, a.repo, logger)
	pause := execution.NewPauseState()
	executor := execution.New(userID, adapters, a.resolver, store, pause, logger)

	var balances risk.BalanceReader = a.walletClient
	if agentCfg.ExecutionMode == config.ModeDryRun {
		balances = dryRunBalances{}
	}
	gate := risk.NewGate(balances, sig.Address(), logger)

	return agent.New(agent.Deps{
		UserID:       userID,
		Quotes:       a.quoteSource,
		Detector:     a.detector,
		Gate:         gate,
		Executor:     executor,
		Adapters:     adapters,
		Store:        store,
		Pause:        pause,
		Losses:       risk.NewLossTracker(),
		ScanInterval: a.cfg.ScanInterval,
		Logger:       logger,
	}, agentCfg), nil
}

// signerFor builds the agent's signer. Dry-run works without configured key
// material by generating an ephemeral key.
func (a *App) signerFor(agentCfg config.AgentConfig) (signer.Signer, error) {
	keyHex := a.cfg.PrivateKey
	if keyHex == "" {
		if agentCfg.ExecutionMode != config.ModeDryRun {
			return nil, fmt.Errorf("PRIVATE_KEY required for %s mode", agentCfg.ExecutionMode)
		}
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		keyHex = common.Bytes2Hex(crypto.FromECDSA(key))
	}

	sig, err := signer.NewLocal(keyHex, a.cfg.ChainID, a.cfg.ChainRPCURL)
	if err != nil {
		return nil, fmt.Errorf("setup signer: %w", err)
	}
	return sig, nil
}

// dryRunBalances reports a fixed large balance so dry-run sizing works
// without a reachable chain.
type dryRunBalances struct{}

func (dryRunBalances) StableBalance(context.Context, common.Address) (int64, error) {
	return 1_000_000 * types.StableUnits, nil
}
