package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/internal/config"
)

// migrateLogger routes golang-migrate output into zap.
type migrateLogger struct {
	logger *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}

// RunMigrations brings the campaigns and participants schema up to date and
// returns the resulting schema version. It is a no-op when migrations are
// disabled. A dirty schema is reported as an error instead of being forced.
func RunMigrations(ctx context.Context, db config.DatabaseConfig, cfg config.MigrationsConfig, logger *zap.Logger) (uint, error) {
	if !cfg.Enabled {
		return 0, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("migrate")

	sqlDB, err := sql.Open("postgres", db.URL)
	if err != nil {
		return 0, err
	}
	defer sqlDB.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return 0, fmt.Errorf("reach campaign database: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return 0, err
	}

	sourceURL := "file://" + filepath.ToSlash(cfg.Path)
	m, err := migrate.NewWithDatabaseInstance(sourceURL, db.Name, driver)
	if err != nil {
		return 0, fmt.Errorf("load migrations from %s: %w", cfg.Path, err)
	}
	defer m.Close()
	m.Log = migrateLogger{logger: logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("campaign schema version %d is dirty", version)
	}
	logger.Info("campaign schema ready", zap.Uint("version", version))
	return version, nil
}
