package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/storage/memory"
	"github.com/tjfontaine/agentgate/internal/storage/sqldb"
)

// openStore creates the interaction store named by cfg.Type. "none" returns
// a nil store.
func openStore(cfg config.StorageConfig) (ports.InteractionStore, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "memory":
		return memory.New(), nil
	case "sqlite":
		path := cfg.SQLite.Path
		if cfg.Database.Driver == "sqlite" && cfg.Database.DSN != "" {
			path = cfg.Database.DSN
		}
		if path == "" {
			return nil, fmt.Errorf("storage.sqlite.path required")
		}
		if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		store, err := sqldb.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		if cfg.Database.DSN == "" {
			return nil, fmt.Errorf("storage.database.dsn required for postgres")
		}
		store, err := sqldb.NewPostgres(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
