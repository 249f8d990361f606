// Package backend selects the partition store implementation from
// configuration so every binary resolves it the same way.
package backend

import (
	"context"
	"fmt"

	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	mem "finanzas/internal/sheets/memory"
)

// NewStore builds the partition store named by cfg.DataBackend. The memory
// backend provisions the current month so a fresh local run is usable
// immediately; the sheets backend expects months to be provisioned by hand.
func NewStore(ctx context.Context, cfg *config.Config, clock core.Clock, logger *log.Logger) (sheets.Store, error) {
	switch cfg.DataBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize sheets backend: %w", err)
		}
		logger.Info("sheets backend initialized", "folder", cfg.GoogleDriveFolderID)
		return cli, nil
	case "memory", "":
		store := mem.New()
		now := clock.Now()
		store.CreatePartition(core.MonthKey{Year: now.Year(), Month: int(now.Month())})
		logger.Info("memory backend initialized")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}
