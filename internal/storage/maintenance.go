package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	maintenanceInterval = 1 * time.Hour
	vacuumInterval      = 7 * 24 * time.Hour
)

func (s *SQLiteStore) startMaintenance(ctx context.Context, retentionDays int) {
	go s.maintenanceLoop(ctx, retentionDays)
}

func (s *SQLiteStore) maintenanceLoop(ctx context.Context, retentionDays int) {
	defer close(s.maintenanceDone)

	lastVacuum := time.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runMaintenanceCycle(retentionDays); err != nil {
				log.Printf("ERROR: maintenance cycle failed: %v", err)
			}

			if time.Since(lastVacuum) >= vacuumInterval {
				if _, err := s.db.Exec("VACUUM"); err != nil {
					log.Printf("ERROR: VACUUM failed: %v", err)
				} else {
					lastVacuum = time.Now()
				}
			}
		}
	}
}

// runMaintenanceCycle deletes entries that have not been written for
// retentionDays. Long-abandoned evergreen cycles are the main source of
// such rows; live records are rewritten whenever a cycle rolls over.
func (s *SQLiteStore) runMaintenanceCycle(retentionDays int) error {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	if _, err := s.db.Exec("DELETE FROM kv_entries WHERE updated_at < ?", cutoff); err != nil {
		return fmt.Errorf("pruning stale entries: %w", err)
	}

	return nil
}
