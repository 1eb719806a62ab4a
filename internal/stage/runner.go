package stage

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/antchfx/xmlquery"

	"xmlstage/internal/config"
	"xmlstage/internal/extract"
	"xmlstage/internal/metrics"
	"xmlstage/internal/storage"
	"xmlstage/internal/xmldoc"
)

// Runner executes the nested loop over files x table configurations.
//
// Processing is strictly sequential: one file at a time, and within a file,
// one table config at a time. Failures are contained at the smallest
// enclosing unit of work; a failed table config never aborts its siblings,
// and a failed file never aborts the remaining files.
type Runner struct {
	Config *config.Config

	// NewStore is the storage factory seam. The store is a scoped
	// resource: Runner opens (and closes) one store per load call and one
	// per stats-record call.
	NewStore func(ctx context.Context, cfg storage.Config) (storage.Store, error)

	// ReadFile is a filesystem seam for tests.
	ReadFile func(path string) ([]byte, error)

	// Now is a clock seam for deterministic audit timestamps in tests.
	Now func() time.Time

	// Logf emits diagnostics. Defaults to log.Printf.
	Logf func(format string, a ...any)
}

// NewRunner constructs a Runner with production seams.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		Config:   cfg,
		NewStore: storage.New,
		ReadFile: os.ReadFile,
		Now:      time.Now,
		Logf:     log.Printf,
	}
}

// Run processes every file against every configured table spec.
//
// Per file: parse once; a parse failure skips all table configs for that
// file and moves on. Per (file, table-config): extract, load, and append
// exactly one audit record regardless of outcome. Run returns after the last
// file; it only errors when the context is canceled between units of work.
func (r *Runner) Run(ctx context.Context, files []string) error {
	storeCfg := storage.Config{
		Kind: r.Config.Database.Kind,
		DSN:  r.Config.Database.DSN(),
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.processFile(ctx, storeCfg, path)
	}
	return nil
}

// processFile parses one file and runs every table config against it.
func (r *Runner) processFile(ctx context.Context, storeCfg storage.Config, path string) {
	name := filepath.Base(path)

	raw, err := r.ReadFile(path)
	if err != nil {
		r.Logf("skipping %s: %v", name, err)
		metrics.IncCounter("files_failed", 1)
		return
	}

	doc, err := xmldoc.Prepare(raw)
	if err != nil {
		r.Logf("skipping %s: %v", name, err)
		metrics.IncCounter("files_failed", 1)
		return
	}

	for _, t := range r.Config.Tables {
		start := r.Now()
		count, status := r.processTable(ctx, storeCfg, doc, t)
		end := r.Now()

		if status != StatusSuccess {
			r.Logf("%s -> %s: %s", name, t.Name, status)
		}

		metrics.ObserveDuration("load_duration_seconds", end.Sub(start).Seconds(), "table:"+t.Name)
		metrics.IncCounter("rows_loaded", float64(count), "table:"+t.Name)

		r.recordStats(ctx, storeCfg, storage.StatsRecord{
			XMLFile:      name,
			StagingTable: t.Name,
			SystemDate:   start,
			StartTime:    start,
			EndTime:      end,
			RecordCount:  count,
			Status:       status,
		})
	}

	metrics.IncCounter("files_processed", 1)
}

// processTable runs extraction and load for one (file, table-config) pair.
//
// Every outcome maps to a count and an audit status; nothing escalates past
// this method.
func (r *Runner) processTable(ctx context.Context, storeCfg storage.Config, doc *xmlquery.Node, t config.TableSpec) (int64, string) {
	common, err := extract.CommonFields(doc, t.CommonFields, r.Config.Namespaces)
	if err != nil {
		return 0, failStatus(err)
	}

	rows, err := extract.FlattenRecords(doc, t.XPath, r.Config.Namespaces)
	if err != nil {
		return 0, failStatus(err)
	}
	if len(rows) == 0 {
		// Non-fatal: the record path matched nothing. No load happens
		// and processing continues with the next table config.
		return 0, StatusNoData
	}

	result := extract.Materialize(rows, common)

	st, err := r.NewStore(ctx, storeCfg)
	if err != nil {
		return 0, failStatus(err)
	}
	defer st.Close()

	count, status := Load(ctx, st, t.Name, result)
	if status != StatusSuccess {
		metrics.IncCounter("loads_failed", 1, "table:"+t.Name)
	}
	return count, status
}

// recordStats appends one audit record over a store scoped to this call.
// Failure to record is logged and never escalated.
func (r *Runner) recordStats(ctx context.Context, storeCfg storage.Config, rec storage.StatsRecord) {
	st, err := r.NewStore(ctx, storeCfg)
	if err != nil {
		r.Logf("stats: open store: %v", err)
		return
	}
	defer st.Close()

	if err := RecordStats(ctx, st, rec); err != nil {
		r.Logf("stats: %v", err)
	}
}
