package turbine

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// CurveCache persists precomputed power curves so a restarted turbine
// skips the expensive station interpolation.
type CurveCache struct {
	sql *sql.DB
}

// OpenCurveCache opens (or creates) the SQLite cache file.
func OpenCurveCache(path string) (*CurveCache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("turbine: open curve cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("turbine: ping curve cache: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS power_curve (
			turbine TEXT NOT NULL,
			tick    INTEGER NOT NULL,
			kwh     REAL NOT NULL,
			PRIMARY KEY (turbine, tick)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("turbine: migrate curve cache: %w", err)
	}
	return &CurveCache{sql: db}, nil
}

func (c *CurveCache) Close() error {
	return c.sql.Close()
}

// Load returns the stored curve for a turbine name, or false when no
// dump exists.
func (c *CurveCache) Load(name string) ([]float64, bool, error) {
	rows, err := c.sql.Query(
		"SELECT kwh FROM power_curve WHERE turbine = ? ORDER BY tick", name)
	if err != nil {
		return nil, false, fmt.Errorf("turbine: load curve: %w", err)
	}
	defer rows.Close()

	var curve []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, false, fmt.Errorf("turbine: scan curve: %w", err)
		}
		curve = append(curve, v)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("turbine: read curve: %w", err)
	}
	return curve, len(curve) > 0, nil
}

// Save replaces the stored curve for a turbine name in one transaction.
func (c *CurveCache) Save(name string, curve []float64) error {
	tx, err := c.sql.Begin()
	if err != nil {
		return fmt.Errorf("turbine: save curve: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM power_curve WHERE turbine = ?", name); err != nil {
		return fmt.Errorf("turbine: clear curve: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO power_curve (turbine, tick, kwh) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("turbine: prepare curve insert: %w", err)
	}
	defer stmt.Close()
	for i, v := range curve {
		if _, err := stmt.Exec(name, i, v); err != nil {
			return fmt.Errorf("turbine: insert curve tick %d: %w", i, err)
		}
	}
	return tx.Commit()
}
