// Package postgres implements storage.Store for Postgres using pgx.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"xmlstage/internal/storage"
)

const textType = "TEXT"

func init() {
	storage.Register("postgres", NewStore)
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// TableExists resolves the quoted identifier form, since to_regclass folds an
// unquoted argument to lower case while CreateTable quotes (and so preserves)
// the configured name.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgTableIdent(table)).Scan(&ok); err != nil {
		return false, fmt.Errorf("postgres: table exists %s: %w", table, err)
	}
	return ok, nil
}

func (s *Store) CreateTable(ctx context.Context, table string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("postgres: create table %s: no columns", table)
	}

	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, pgIdent(c)+" "+textType)
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgTableIdent(table), strings.Join(defs, ", "))

	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", table, err)
	}
	return nil
}

func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	schema, name := splitTableName(table)

	q := `SELECT column_name FROM information_schema.columns WHERE table_name = $1`
	args := []any{name}
	if schema != "" {
		q += " AND table_schema = $2"
		args = append(args, schema)
	}
	q += " ORDER BY ordinal_position"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", table, err)
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

// AddColumn uses ADD COLUMN IF NOT EXISTS, so when two runs race on the same
// missing column the loser no-ops instead of failing.
func (s *Store) AddColumn(ctx context.Context, table, column string) error {
	q := fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
		pgTableIdent(table), pgIdent(column), textType,
	)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("postgres: add column %s.%s: %w", table, column, err)
	}
	return nil
}

// InsertRows appends rows in chunks. Postgres caps statements at 65535 bind
// parameters; chunks stay well below that. Chunks are not wrapped in one
// transaction: rows inserted before a failure stay committed.
func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: insert into %s: columns is empty", table)
	}

	maxRows := 60000 / len(columns)
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
		if _, err := s.pool.Exec(ctx, q, args...); err != nil {
			return total, fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
		total += int64(len(part))
	}
	return total, nil
}

func (s *Store) EnsureStatsTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		"id" BIGSERIAL PRIMARY KEY,
		"xml_file" TEXT NOT NULL,
		"staging_table" TEXT NOT NULL,
		"system_date" DATE NOT NULL,
		"start_time" TIMESTAMPTZ NOT NULL,
		"end_time" TIMESTAMPTZ NOT NULL,
		"record_count" BIGINT NOT NULL,
		"status" TEXT NOT NULL
	)`, pgTableIdent(storage.StatsTable))

	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("postgres: create stats table: %w", err)
	}
	return nil
}

func (s *Store) AppendStats(ctx context.Context, rec storage.StatsRecord) error {
	cols := make([]string, 0, len(storage.StatsColumns))
	for _, c := range storage.StatsColumns {
		cols = append(cols, pgIdent(c))
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		pgTableIdent(storage.StatsTable), strings.Join(cols, ", "),
	)

	_, err := s.pool.Exec(ctx, q,
		rec.XMLFile,
		rec.StagingTable,
		rec.SystemDate,
		rec.StartTime,
		rec.EndTime,
		rec.RecordCount,
		rec.Status,
	)
	if err != nil {
		return fmt.Errorf("postgres: append stats: %w", err)
	}
	return nil
}

// buildInsertSQL constructs a single INSERT statement and its args. It is
// pure and deterministic so placeholder numbering can be unit tested without
// a database.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			b.WriteString("$")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

func splitTableName(table string) (schema, name string) {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return strings.TrimSpace(table[:i]), strings.TrimSpace(table[i+1:])
	}
	return "", table
}

// pgIdent returns a double-quoted identifier, escaping '"' by doubling.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pgTableIdent quotes schema-qualified names part by part.
func pgTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = pgIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
