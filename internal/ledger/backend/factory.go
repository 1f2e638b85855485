// Package backend selects and builds the configured ledger backend.
package backend

import (
	"fmt"
	"log/slog"

	"balancebot/internal/config"
	"balancebot/internal/ledger"
	"balancebot/internal/ledger/file"
	"balancebot/internal/ledger/sqlite"
)

// Result bundles the two ports a backend provides plus its cleanup.
type Result struct {
	Store    ledger.Store
	Schedule ledger.ScheduleStore
	Cleanup  func() error
}

// New builds the backend named by cfg.LedgerBackend.
func New(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.LedgerBackend {
	case "sqlite":
		store, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: store, Schedule: store, Cleanup: store.Close}, nil

	case "file":
		store := file.New(cfg.LedgerPath, cfg.ScheduleStatePath)
		logger.Info("Initialized file backend",
			"ledger_path", cfg.LedgerPath,
			"state_path", cfg.ScheduleStatePath)
		return &Result{Store: store, Schedule: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.LedgerBackend)
	}
}
