package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Driver names accepted by New
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DB wraps the database connection shared by every read and write of a run
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// New opens a connection pool for the given driver.
// The pool is limited to one connection; a run issues one statement at a time.
// For sqlite the summary and source tables are created if missing.
func New(driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, dialect: d}
	if driver == DriverSQLite {
		if err := db.initSchema(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("initializing schema: %w", err)
		}
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	return nil
}

// initSchema creates the tables used in local sqlite databases
func (db *DB) initSchema() error {
	_, err := db.conn.Exec(sqliteSchema)
	return err
}
