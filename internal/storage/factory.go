package storage

import (
	"fmt"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/config"
	"lesson-sync/internal/storage/postgres"
	"lesson-sync/internal/storage/sqlite"
)

// NewStore creates a lesson store adapter based on configuration.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return sqlite.NewAdapter(cfg.DatabasePath)

	case "postgres":
		pgConfig := &postgres.Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		}
		return postgres.NewAdapter(pgConfig)

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}
}
