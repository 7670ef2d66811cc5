package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"projecthub/internal/platform/config"
)

// Open connects to the application database. A single schema holds every
// workspace; isolation is enforced per-query by workspace_id filters and the
// unique constraints the reconciler relies on.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.Path
	if len(dsn) > 5 && dsn[:5] == "file:" {
		dsn = dsn[5:]
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
