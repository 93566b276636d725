// Package store implements the tracker's relational persistence on gorm.
// Postgres backs production deployments; sqlite backs local runs and tests.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var tracer = otel.Tracer("store")

// Uniqueness scopes for budget and loan names.
const (
	UniquePerOwner = "owner"
	UniqueGlobal   = "global"
)

// Config holds the connection settings of the store.
type Config struct {
	Driver         string // postgres | sqlite
	DSN            string
	LogQueries     bool
	NameUniqueness string // owner | global
	MaxOpenConns   int
}

// MemoryDSN returns a DSN for a named, shared in-memory sqlite database.
func MemoryDSN(name string) string {
	name = strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(name)
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
}

// Open connects to the configured database, migrates the schema and returns
// a ready Store.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	logMode := gormlogger.Silent
	if cfg.LogQueries {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logMode),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// One connection keeps a shared in-memory database alive and
		// serializes writers the way sqlite expects.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else {
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 20
		}
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen / 2)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	scope := cfg.NameUniqueness
	if scope == "" {
		scope = UniquePerOwner
	}
	if err := migrate(db, scope); err != nil {
		return nil, err
	}

	logger.Info("store connected",
		zap.String("driver", db.Dialector.Name()),
		zap.String("name_uniqueness", scope),
	)
	return New(db, logger), nil
}

func migrate(db *gorm.DB, scope string) error {
	if err := db.AutoMigrate(&budgetRow{}, &loanRow{}, &expenseRow{}, &installmentRow{}, &todoRow{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	for _, table := range []string{"budgets", "loans"} {
		ownerIdx := "idx_" + table + "_owner_name"
		globalIdx := "idx_" + table + "_name"

		var stmts []string
		switch scope {
		case UniquePerOwner:
			stmts = []string{
				"DROP INDEX IF EXISTS " + globalIdx,
				fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (owner_id, name)", ownerIdx, table),
			}
		case UniqueGlobal:
			stmts = []string{
				"DROP INDEX IF EXISTS " + ownerIdx,
				fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (name)", globalIdx, table),
			}
		default:
			return fmt.Errorf("unsupported name uniqueness scope: %q", scope)
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("migrate %s: %w", table, err)
			}
		}
	}
	return nil
}

// ============================================================
// Store
// ============================================================

// Store implements port.EntryStore, port.TodoStore, port.AccountStore and
// port.Pinger on a gorm connection.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New wraps an already migrated gorm connection.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// locksRows reports whether the dialect supports SELECT ... FOR UPDATE.
func (s *Store) locksRows() bool {
	return s.db.Dialector.Name() == "postgres"
}
