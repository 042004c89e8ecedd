// Package db stores the expression history in SQLite.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// DefaultHistoryLimit is the number of rows RecentExpressions returns when
// asked for limit <= 0.
const DefaultHistoryLimit = 20

type DB struct {
	*sql.DB
	path string
}

// OpenDB opens the database at path and applies connection pragmas. It
// does not touch the schema; call MigrateUp for that.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under
	// concurrent handlers.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Entry is one row of expression history.
type Entry struct {
	ID             string    `json:"id"`
	Expression     string    `json:"expression"`
	GradientMethod string    `json:"gradient_method"`
	Points         int       `json:"points"`
	CreatedAt      time.Time `json:"created_at"`
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s %q method=%s points=%d at %s",
		e.ID, e.Expression, e.GradientMethod, e.Points, e.CreatedAt.Format(time.RFC3339))
}

// RecordExpression inserts e and returns its new id. A zero CreatedAt is
// replaced with the current time.
func (db *DB) RecordExpression(ctx context.Context, e Entry) (string, error) {
	if e.Expression == "" {
		return "", errors.New("empty expression")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO expressions (expression_id, expression, gradient_method, points, created_at_ns)
		 VALUES (?, ?, ?, ?, ?)`,
		id, e.Expression, e.GradientMethod, e.Points, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert expression: %w", err)
	}
	return id, nil
}

// RecentExpressions returns up to limit distinct expressions, newest
// first. For an expression entered several times the latest row wins.
func (db *DB) RecentExpressions(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	// SQLite takes the bare columns from the row holding MAX().
	rows, err := db.QueryContext(ctx, `
		SELECT expression_id, expression, gradient_method, points, MAX(created_at_ns) AS ts
		FROM expressions
		GROUP BY expression
		ORDER BY ts DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query expressions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Expression, &e.GradientMethod, &e.Points, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountExpressions returns the total number of recorded rows.
func (db *DB) CountExpressions(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expressions`).Scan(&n)
	return n, err
}

// AttachAdminRoutes mounts the tsweb debug index on mux with a live SQL
// console and a backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Expression history",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Download a gzipped backup of the history database", http.HandlerFunc(db.serveBackup))
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("history-backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(os.TempDir(), name)
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			log.Printf("Failed to remove backup file: %v", err)
		}
	}()

	f, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		log.Printf("backup: write failed: %v", err)
	}
}
