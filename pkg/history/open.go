package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/storage"
	"github.com/papercomputeco/serenity/pkg/storage/inmemory"
	"github.com/papercomputeco/serenity/pkg/storage/postgres"
	"github.com/papercomputeco/serenity/pkg/storage/sqlite"
)

// DefaultSQLiteFile is the replay log file created in the .serenity/ directory.
const DefaultSQLiteFile = "history.sqlite"

// OpenDriver opens the storage driver named by cfg. A relative or empty
// SQLite path is resolved inside dir.
func OpenDriver(ctx context.Context, cfg config.StorageConfig, dir string, log *slog.Logger) (storage.Driver, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	switch cfg.Driver {
	case config.StorageMemory:
		log.Debug("using in-memory history")
		return inmemory.NewDriver(), nil

	case config.StorageSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			path = DefaultSQLiteFile
		}
		if path != sqlite.MemoryPath && !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}

		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite history %s: %w", path, err)
		}
		log.Debug("using sqlite history", "path", path)
		return driver, nil

	case config.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}

		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres history: %w", err)
		}
		log.Debug("using postgres history")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
