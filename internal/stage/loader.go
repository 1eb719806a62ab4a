// Package stage drives the extraction-and-load pipeline: it reconciles each
// staging table's live schema against an extraction result, appends the rows,
// and records one audit entry per processing attempt.
package stage

import (
	"context"
	"fmt"

	"xmlstage/internal/extract"
	"xmlstage/internal/storage"
)

// Status strings recorded in the audit table.
const (
	StatusSuccess = "Success"
	StatusNoData  = "No data found"
)

// failStatus renders a store-side failure as an audit status string.
func failStatus(err error) string {
	return "Failed: " + err.Error()
}

// SyncSchema reconciles the live column set of table against desired.
//
// The reconciliation is a two-phase diff-then-migrate: create the table with
// the full desired column set when absent; otherwise add each missing column.
// Schema evolution is strictly additive; nothing is ever dropped. Column
// comparison is case-insensitive to match store identifier folding.
//
// There is no transactional isolation across the exists-check, the diff and
// the ALTERs: a concurrent run may add the same column first, in which case
// the ALTER fails (or no-ops, store-dependent) and the error surfaces here.
// Single-writer operation is assumed.
func SyncSchema(ctx context.Context, st storage.Store, table string, columns []string) error {
	exists, err := st.TableExists(ctx, table)
	if err != nil {
		return err
	}

	if !exists {
		return st.CreateTable(ctx, table, columns)
	}

	existing, err := st.TableColumns(ctx, table)
	if err != nil {
		return err
	}

	for _, c := range storage.MissingColumns(columns, existing) {
		if err := st.AddColumn(ctx, table, c); err != nil {
			return err
		}
	}
	return nil
}

// Load synchronizes the schema for result's column set and appends every row
// of result to table.
//
// Returns the number of rows inserted and a status string. Any store-side
// failure aborts the remaining inserts for this call and is converted into a
// failure status; it never propagates as an error. Inserts are chunked and
// non-transactional: rows inserted before a mid-load failure stay committed
// and are reflected in the returned count.
//
// Loading the same result twice inserts every row twice; there are no
// dedupe or upsert semantics.
func Load(ctx context.Context, st storage.Store, table string, result extract.Result) (int64, string) {
	columns := result.Columns()
	if len(columns) == 0 {
		return 0, failStatus(fmt.Errorf("no columns extracted for table %s", table))
	}

	if err := SyncSchema(ctx, st, table, columns); err != nil {
		return 0, failStatus(err)
	}

	n, err := st.InsertRows(ctx, table, columns, result.ValueRows(columns))
	if err != nil {
		return n, failStatus(err)
	}
	return n, StatusSuccess
}
