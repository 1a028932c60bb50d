package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/arbitrage"
	"github.com/quantfold/crossarb/internal/markets"
	"github.com/quantfold/crossarb/internal/quotes"
	"github.com/quantfold/crossarb/internal/storage"
	"github.com/quantfold/crossarb/internal/supervisor"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/healthprobe"
	"github.com/quantfold/crossarb/pkg/httpserver"
	"github.com/quantfold/crossarb/pkg/wallet"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	repo          storage.Repository
	quoteSource   *quotes.Source
	streams       []*quotes.StreamFetcher
	resolver      markets.Resolver
	detector      *arbitrage.Detector
	walletClient  *wallet.Client
	supervisor    *supervisor.Supervisor
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
