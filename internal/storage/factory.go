package storage

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/kv"
)

// Durable is a kv.Store that may hold resources needing release.
type Durable interface {
	kv.Store
	Close() error
}

type memoryDurable struct {
	*kv.MemoryStore
}

func (memoryDurable) Close() error { return nil }

// NewDurable opens the durable store described by cfg. An empty path or an
// unusable database falls back to memory; persistence is reported so the
// caller can surface it.
func NewDurable(cfg config.StorageConfig) (Durable, bool, error) {
	if cfg.DBPath == "" {
		return memoryDurable{kv.NewMemoryStore()}, false, nil
	}

	dbPath := expandTilde(cfg.DBPath)

	store, err := NewSQLiteStore(dbPath, cfg.RetentionDays)
	if err != nil {
		log.Printf("WARNING: SQLite storage unavailable (%v), falling back to in-memory store", err)
		return memoryDurable{kv.NewMemoryStore()}, false, nil
	}

	return store, true, nil
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
