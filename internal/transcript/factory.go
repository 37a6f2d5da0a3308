package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// StoreConfig selects and configures a transcript backend.
type StoreConfig struct {
	Mode        string
	CSVPath     string
	SQLitePath  string
	DatabaseURL string
}

// NewStore creates the configured backend. Mode "auto" prefers postgres when a
// database URL is set and falls back to the CSV file otherwise.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	if mode == "auto" {
		mode = "csv"
		if strings.TrimSpace(cfg.DatabaseURL) != "" {
			mode = "postgres"
		}
	}

	switch mode {
	case "csv":
		if strings.TrimSpace(cfg.CSVPath) == "" {
			return nil, errors.New("transcript csv path is required for csv mode")
		}
		return NewCSVStore(cfg.CSVPath)
	case "sqlite":
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, errors.New("transcript sqlite path is required for sqlite mode")
		}
		return NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("DATABASE_URL is required for postgres mode")
		}
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported transcript store mode %q", cfg.Mode)
	}
}
