// Package db reads the species inventory from DuckDB.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-atp/internal/inventory"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir    string
	DBName     string
	Extensions []string // e.g. "parquet"; install failures are ignored
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}
		instance, initErr = Open(filepath.Join(duckdbDir, cfg.DBName+".duckdb"), cfg.Extensions...)
	})
	return instance, initErr
}

// Open opens a DuckDB database at path, in memory when path is empty, and
// makes sure the inventory table exists.
func Open(path string, extensions ...string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		// Extensions might already be installed, or offline; continue
		_, _ = db.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext))
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

const schema = `CREATE TABLE IF NOT EXISTS inventory (
	aphia_id        INTEGER NOT NULL,
	common_name     VARCHAR,
	scientific_name VARCHAR,
	project         VARCHAR NOT NULL,
	year            INTEGER NOT NULL,
	month           INTEGER NOT NULL
)`

// EnsureSchema creates the inventory table.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating inventory table: %w", err)
	}
	return nil
}

// InventoryRows reads every availability row in insertion order.
func InventoryRows(ctx context.Context, db *sql.DB) ([]inventory.Row, error) {
	rows, err := db.QueryContext(ctx, `SELECT aphia_id, common_name, scientific_name, project, year, month
		FROM inventory ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying inventory: %w", err)
	}
	defer rows.Close()

	var out []inventory.Row
	for rows.Next() {
		var (
			r           inventory.Row
			common, sci sql.NullString
		)
		if err := rows.Scan(&r.SpeciesID, &common, &sci, &r.Project, &r.Year, &r.Month); err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		r.CommonName, r.ScientificName = common.String, sci.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadInventory builds the inventory from the table. An empty table fails
// validation with inventory.ErrEmpty.
func LoadInventory(ctx context.Context, db *sql.DB) (*inventory.Inventory, error) {
	rows, err := InventoryRows(ctx, db)
	if err != nil {
		return nil, err
	}
	inv := inventory.Build(rows)
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// ReplaceRows swaps the table contents for rows in one transaction.
func ReplaceRows(ctx context.Context, db *sql.DB, rows []inventory.Row) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory`); err != nil {
		return 0, fmt.Errorf("clearing inventory: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO inventory VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.SpeciesID, r.CommonName, r.ScientificName, r.Project, r.Year, r.Month); err != nil {
			return 0, fmt.Errorf("inserting species %d: %w", r.SpeciesID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ImportFile replaces the table contents with a CSV or Parquet file holding
// the inventory columns.
func ImportFile(ctx context.Context, db *sql.DB, path string) (int64, error) {
	reader := "read_csv_auto"
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		reader = "read_parquet"
	}
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory`); err != nil {
		return 0, fmt.Errorf("clearing inventory: %w", err)
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO inventory
		SELECT aphia_id, common_name, scientific_name, project, year, month FROM %s(%s)`, reader, quoted))
	if err != nil {
		return 0, fmt.Errorf("importing %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}
