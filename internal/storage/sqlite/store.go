// Package sqlite implements storage.Store for SQLite.
//
// SQLite has no distinct timestamp type; audit timestamps are stored as
// RFC3339Nano strings and the calendar date as "YYYY-MM-DD", which round-trip
// reliably and stay readable when debugging. Everything else is TEXT, which
// is already SQLite's most permissive affinity.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"xmlstage/internal/storage"
)

const textType = "TEXT"

func init() {
	storage.Register("sqlite", NewStore)
}

type Store struct {
	db *sql.DB
}

func NewStore(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	q := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	if err := s.db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, fmt.Errorf("sqlite: table exists %s: %w", table, err)
	}
	return n > 0, nil
}

func (s *Store) CreateTable(ctx context.Context, table string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("sqlite: create table %s: no columns", table)
	}

	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, sqlIdent(c)+" "+textType)
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(table), strings.Join(defs, ", "))

	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", table, err)
	}
	return nil
}

func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", sqlIdent(table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) AddColumn(ctx context.Context, table, column string) error {
	q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", sqlIdent(table), sqlIdent(column), textType)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: add column %s.%s: %w", table, column, err)
	}
	return nil
}

// InsertRows appends rows one statement per chunk. SQLite's default variable
// limit is 999, so chunks are sized accordingly.
func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: insert into %s: columns is empty", table)
	}

	maxRows := 900 / len(columns)
	if maxRows < 1 {
		maxRows = 1
	}

	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]

		q, args := buildInsertSQL(table, columns, part)
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return total, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		total += int64(len(part))
	}
	return total, nil
}

func (s *Store) EnsureStatsTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		"id" INTEGER PRIMARY KEY AUTOINCREMENT,
		"xml_file" TEXT NOT NULL,
		"staging_table" TEXT NOT NULL,
		"system_date" TEXT NOT NULL,
		"start_time" TEXT NOT NULL,
		"end_time" TEXT NOT NULL,
		"record_count" INTEGER NOT NULL,
		"status" TEXT NOT NULL
	)`, sqlIdent(storage.StatsTable))

	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: create stats table: %w", err)
	}
	return nil
}

func (s *Store) AppendStats(ctx context.Context, rec storage.StatsRecord) error {
	cols := make([]string, 0, len(storage.StatsColumns))
	for _, c := range storage.StatsColumns {
		cols = append(cols, sqlIdent(c))
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)",
		sqlIdent(storage.StatsTable), strings.Join(cols, ", "),
	)

	_, err := s.db.ExecContext(ctx, q,
		rec.XMLFile,
		rec.StagingTable,
		rec.SystemDate.Format("2006-01-02"),
		formatTime(rec.StartTime),
		formatTime(rec.EndTime),
		rec.RecordCount,
		rec.Status,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append stats: %w", err)
	}
	return nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, row[j])
		}
		b.WriteString(")")
	}

	return b.String(), args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// sqlIdent returns a double-quoted identifier, escaping '"' by doubling.
func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
