package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"

	connectTimeout = 5 * time.Second
)

var ErrMissingDSN = errors.New("missing database connection string")

// DBService owns the connection pool behind a SQL token backend.
type DBService struct {
	DB     *sql.DB
	driver string
}

// NewDBService opens a pool for driver and checks it can reach the database.
func NewDBService(driver, dsn string) (*DBService, error) {
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open %s connection: %w", driver, err)
	}

	switch driver {
	case DriverSQLite:
		// One writer at a time; SQLite serialises writes anyway.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not connect to the %s database: %w", driver, err)
	}

	return &DBService{DB: db, driver: driver}, nil
}

// Health reports pool status for the readiness endpoint.
func (s *DBService) Health(ctx context.Context) map[string]string {
	stats := map[string]string{"driver": s.driver}

	if err := s.DB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	dbStats := s.DB.Stats()
	stats["status"] = "up"
	stats["open_connections"] = fmt.Sprint(dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprint(dbStats.InUse)
	return stats
}

func (s *DBService) Close() error {
	return s.DB.Close()
}
