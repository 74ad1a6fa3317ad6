package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore journals transitions in MySQL or MariaDB, for schedulers whose
// history must be shared or must outlive the host.
//
// DSN format:
//
//	user:password@tcp(localhost:3306)/lazygraph
//
// Read credentials from the environment, never from source.
type MySQLStore struct {
	sqlJournal
}

// NewMySQLStore connects to dsn, configures the pool and creates the
// task_transitions table if needed.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{sqlJournal: sqlJournal{db: db}}
	err = s.migrate(ctx, []string{
		`CREATE TABLE IF NOT EXISTS task_transitions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			task_id VARCHAR(255) NOT NULL,
			version INT NOT NULL,
			from_status VARCHAR(32) NOT NULL,
			to_status VARCHAR(32) NOT NULL,
			error TEXT NOT NULL,
			at_unix_nano BIGINT NOT NULL,
			INDEX idx_transitions_run (run_id, id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
