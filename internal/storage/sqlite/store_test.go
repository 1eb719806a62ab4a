package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"xmlstage/internal/storage"
)

func openTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "stage.db")
	st, err := NewStore(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(st.Close)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open verify handle: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return st.(*Store), db
}

func TestTableLifecycle(t *testing.T) {
	ctx := context.Background()
	st, _ := openTestStore(t)

	exists, err := st.TableExists(ctx, "orders")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("table must not exist before CreateTable")
	}

	if err := st.CreateTable(ctx, "orders", []string{"Item", "invoice"}); err != nil {
		t.Fatal(err)
	}
	// Create is idempotent.
	if err := st.CreateTable(ctx, "orders", []string{"Item", "invoice"}); err != nil {
		t.Fatalf("repeated create: %v", err)
	}

	exists, err = st.TableExists(ctx, "orders")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("table must exist after CreateTable")
	}

	cols, err := st.TableColumns(ctx, "orders")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Item", "invoice"}; !reflect.DeepEqual(cols, want) {
		t.Fatalf("columns = %v, want %v", cols, want)
	}

	if err := st.AddColumn(ctx, "orders", "Qty"); err != nil {
		t.Fatal(err)
	}
	cols, err = st.TableColumns(ctx, "orders")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Item", "invoice", "Qty"}; !reflect.DeepEqual(cols, want) {
		t.Fatalf("columns after add = %v, want %v", cols, want)
	}
}

func TestCreateTableNoColumns(t *testing.T) {
	st, _ := openTestStore(t)
	if err := st.CreateTable(context.Background(), "empty", nil); err == nil {
		t.Fatal("want error for empty column set")
	}
}

func TestInsertRows(t *testing.T) {
	ctx := context.Background()
	st, db := openTestStore(t)

	if err := st.CreateTable(ctx, "orders", []string{"Item", "invoice"}); err != nil {
		t.Fatal(err)
	}

	rows := [][]any{
		{"widget", "INV-1"},
		{"gadget", nil},
	}
	n, err := st.InsertRows(ctx, "orders", []string{"Item", "invoice"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("inserted %d rows, want 2", n)
	}

	var item string
	var invoice sql.NullString
	if err := db.QueryRow(`SELECT "Item", "invoice" FROM "orders" WHERE "Item" = 'gadget'`).Scan(&item, &invoice); err != nil {
		t.Fatal(err)
	}
	if invoice.Valid {
		t.Errorf("missing row column must load as SQL NULL, got %q", invoice.String)
	}

	// Loading is append-only; a second pass duplicates rows.
	if _, err := st.InsertRows(ctx, "orders", []string{"Item", "invoice"}, rows); err != nil {
		t.Fatal(err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "orders"`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("got %d rows after double load, want 4", count)
	}
}

func TestInsertRowsEmpty(t *testing.T) {
	st, _ := openTestStore(t)
	n, err := st.InsertRows(context.Background(), "orders", []string{"a"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", n, err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	st, db := openTestStore(t)

	if err := st.EnsureStatsTable(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.EnsureStatsTable(ctx); err != nil {
		t.Fatalf("repeated ensure: %v", err)
	}

	start := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	rec := storage.StatsRecord{
		XMLFile:      "orders_001.xml",
		StagingTable: "orders",
		SystemDate:   start,
		StartTime:    start,
		EndTime:      start.Add(2 * time.Second),
		RecordCount:  42,
		Status:       "Success",
	}
	if err := st.AppendStats(ctx, rec); err != nil {
		t.Fatal(err)
	}

	var (
		file, table, sysDate, startStr, status string
		count                                  int64
	)
	err := db.QueryRow(`SELECT "xml_file", "staging_table", "system_date", "start_time", "record_count", "status" FROM "FileProcessingStats"`).
		Scan(&file, &table, &sysDate, &startStr, &count, &status)
	if err != nil {
		t.Fatal(err)
	}

	if file != "orders_001.xml" || table != "orders" || count != 42 || status != "Success" {
		t.Errorf("stats row = (%s, %s, %d, %s)", file, table, count, status)
	}
	if sysDate != "2024-05-01" {
		t.Errorf("system_date = %q, want 2024-05-01", sysDate)
	}
	if _, perr := time.Parse(time.RFC3339Nano, startStr); perr != nil {
		t.Errorf("start_time %q is not RFC3339Nano: %v", startStr, perr)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("orders", []string{"a", "b"}, [][]any{{"1", "2"}, {"3", nil}})
	wantQ := `INSERT INTO "orders" ("a", "b") VALUES (?, ?), (?, ?)`
	if q != wantQ {
		t.Errorf("query:\n got %s\nwant %s", q, wantQ)
	}
	if want := []any{"1", "2", "3", nil}; !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}
