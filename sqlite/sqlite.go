// Package sqlite implements repo interfaces
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomodoro/tomo"
	_ "modernc.org/sqlite"
)

// Open opens the database at path, creating parent directories as
// needed. It enables WAL mode, foreign keys, and a busy timeout so
// writes surface an error instead of hanging on a locked file.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data directory: %v", tomo.ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", tomo.ErrStorage, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", tomo.ErrStorage, pragma, err)
		}
	}

	// single connection per process; WAL keeps readers in other
	// processes unblocked
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", tomo.ErrStorage, err)
	}

	return db, nil
}

// Scannable is the shared surface of sql.Row and sql.Rows.
type Scannable interface {
	Scan(dest ...any) error
}

// generateParameters renders "(?, ?, ...)" for n placeholders.
func generateParameters(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}
