package stage

import (
	"context"

	"xmlstage/internal/storage"
)

// RecordStats ensures the audit table exists and appends one record.
//
// The caller converts any returned error into a diagnostic only; audit
// failures must never abort or retry the surrounding file/table processing.
func RecordStats(ctx context.Context, st storage.Store, rec storage.StatsRecord) error {
	if err := st.EnsureStatsTable(ctx); err != nil {
		return err
	}
	return st.AppendStats(ctx, rec)
}
