package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/config"
)

// NewRepository builds the repository selected by STORAGE_MODE.
func NewRepository(cfg *config.Config, logger *zap.Logger) (Repository, error) {
	switch cfg.StorageMode {
	case "postgres":
		return NewPostgresRepository(&PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	case "sqlite":
		return NewSQLiteRepository(cfg.SQLitePath, logger)
	case "console":
		return NewConsoleRepository(logger), nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
}
