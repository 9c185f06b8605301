package persistence

import (
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/shipcheck/internal/infrastructure/config"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
)

// Database holds the run history database connection
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the configured database and migrates the run history schema
func NewDatabase(cfg *config.DatabaseConfig, logLevel string, zapLogger *zap.Logger) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(logLevel), 200*time.Millisecond),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{DB: db}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// EnableTracing records a client span for every query
func (d *Database) EnableTracing(provider trace.TracerProvider, dbName string) error {
	plugin := otelgorm.NewPlugin(
		otelgorm.WithTracerProvider(provider),
		otelgorm.WithDBName(dbName),
		otelgorm.WithoutQueryVariables(),
	)
	if err := d.DB.Use(plugin); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}
	return nil
}

// Migrate creates or updates the run history table
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(&RunRecordModel{}); err != nil {
		return fmt.Errorf("failed to migrate run history: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}
