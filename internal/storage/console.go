package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/types"
)

// ConsoleRepository implements Repository by logging transitions. Used for
// storage-less runs; ListOpenPositions always returns nothing, so restarts
// start from a clean slate.
type ConsoleRepository struct {
	logger *zap.Logger
}

// NewConsoleRepository creates a logging-only repository.
func NewConsoleRepository(logger *zap.Logger) *ConsoleRepository {
	logger.Info("console-repository-initialized")
	return &ConsoleRepository{logger: logger}
}

// InsertPosition logs the opened position.
func (c *ConsoleRepository) InsertPosition(_ context.Context, pos *types.Position) error {
	c.logger.Info("position-opened",
		zap.String("id", pos.ID),
		zap.String("user", pos.UserID),
		zap.String("market", pos.MarketID),
		zap.Int64("spread-bps", pos.SpreadBps),
		zap.Int64("size-units", pos.SizeUnits))
	WritesTotal.WithLabelValues("console", "insert").Inc()
	return nil
}

// UpdatePosition logs the transition.
func (c *ConsoleRepository) UpdatePosition(_ context.Context, pos *types.Position) error {
	c.logger.Info("position-transition",
		zap.String("id", pos.ID),
		zap.String("user", pos.UserID),
		zap.String("status", string(pos.Status)),
		zap.Int64("pnl", pos.PnL))
	WritesTotal.WithLabelValues("console", "update").Inc()
	return nil
}

// ListOpenPositions returns nothing; console storage keeps no state.
func (c *ConsoleRepository) ListOpenPositions(context.Context, string) ([]*types.Position, error) {
	return nil, nil
}

// Close is a no-op.
func (c *ConsoleRepository) Close() error {
	c.logger.Info("closing-console-repository")
	return nil
}
