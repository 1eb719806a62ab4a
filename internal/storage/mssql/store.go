// Package mssql implements storage.Store for Microsoft SQL Server, the
// primary production target store.
//
// Note on driver registration: this package intentionally does NOT blank-
// import a SQL Server driver. The application must register the "sqlserver"
// driver elsewhere (see internal/storage/all).
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"xmlstage/internal/storage"
)

// textType is the maximally permissive text column type. Every dynamically
// created column uses it; values are loaded as opaque text.
const textType = "NVARCHAR(MAX)"

func init() {
	storage.Register("mssql", NewStore)
}

// Store implements storage.Store over database/sql with the "sqlserver"
// driver.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection and validates connectivity via PingContext.
func NewStore(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// TableExists reports whether a user table with the given name exists.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	q := "SELECT CASE WHEN OBJECT_ID(@p1, N'U') IS NULL THEN 0 ELSE 1 END"
	if err := s.db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, fmt.Errorf("mssql: table exists %s: %w", table, err)
	}
	return n == 1, nil
}

// CreateTable creates table with one NVARCHAR(MAX) NULL column per name.
// The statement is wrapped in an OBJECT_ID guard so concurrent or repeated
// calls stay idempotent.
func (s *Store) CreateTable(ctx context.Context, table string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("mssql: create table %s: no columns", table)
	}
	if _, err := s.db.ExecContext(ctx, buildCreateTableSQL(table, columns)); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", table, err)
	}
	return nil
}

// TableColumns returns the live column names of table, in ordinal order.
//
// Schema-qualified names ("dbo.Orders") are split so the schema participates
// in the lookup.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	schema, name := splitTableName(table)

	q := `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p1`
	args := []any{name}
	if schema != "" {
		q += " AND TABLE_SCHEMA = @p2"
		args = append(args, schema)
	}
	q += " ORDER BY ORDINAL_POSITION"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("mssql: columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddColumn adds one NVARCHAR(MAX) NULL column.
//
// Concurrent runs can race here: both may observe the column as missing and
// one ALTER will fail with a duplicate-column error. That error is returned
// as-is; this store does not serialize concurrent writers.
func (s *Store) AddColumn(ctx context.Context, table, column string) error {
	q := fmt.Sprintf("ALTER TABLE %s ADD %s %s NULL", mssqlTableIdent(table), mssqlIdent(column), textType)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: add column %s.%s: %w", table, column, err)
	}
	return nil
}

// InsertRows appends rows in chunks sized to stay under SQL Server's 2100
// parameter limit. Inserts are not transactional across chunks; on failure,
// rows inserted by earlier chunks stay committed and the returned count
// reflects them.
func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: insert into %s: columns is empty", table)
	}

	maxRows := 2000 / len(columns)
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
			return total, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		total += int64(len(part))
	}
	return total, nil
}

// EnsureStatsTable creates the audit table if absent.
func (s *Store) EnsureStatsTable(ctx context.Context) error {
	defs := strings.Join([]string{
		"[id] INT IDENTITY(1,1) PRIMARY KEY",
		"[xml_file] NVARCHAR(400) NOT NULL",
		"[staging_table] NVARCHAR(256) NOT NULL",
		"[system_date] DATE NOT NULL",
		"[start_time] DATETIME2 NOT NULL",
		"[end_time] DATETIME2 NOT NULL",
		"[record_count] BIGINT NOT NULL",
		"[status] " + textType + " NOT NULL",
	}, ", ")

	q := wrapCreateIfMissing(storage.StatsTable, defs)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: create stats table: %w", err)
	}
	return nil
}

// AppendStats appends one audit record.
func (s *Store) AppendStats(ctx context.Context, rec storage.StatsRecord) error {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(storage.StatsTable))
	b.WriteString(" (")
	for i, c := range storage.StatsColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7)")

	_, err := s.db.ExecContext(ctx, b.String(),
		rec.XMLFile,
		rec.StagingTable,
		rec.SystemDate,
		rec.StartTime,
		rec.EndTime,
		rec.RecordCount,
		rec.Status,
	)
	if err != nil {
		return fmt.Errorf("mssql: append stats: %w", err)
	}
	return nil
}

// buildCreateTableSQL builds the guarded CREATE TABLE statement. Split out
// for testability without a database.
func buildCreateTableSQL(table string, columns []string) string {
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, fmt.Sprintf("%s %s NULL", mssqlIdent(c), textType))
	}
	return wrapCreateIfMissing(table, strings.Join(defs, ", "))
}

// buildInsertSQL constructs a single INSERT ... VALUES statement and its args.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
// This keeps table creation idempotent without IF NOT EXISTS syntax. The
// table name lands inside a string literal, so single quotes are doubled.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// splitTableName separates an optional schema qualifier from a table name.
func splitTableName(table string) (schema, name string) {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return strings.TrimSpace(table[:i]), strings.TrimSpace(table[i+1:])
	}
	return "", table
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified
// names, e.g. "dbo.Orders" -> [dbo].[Orders].
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
