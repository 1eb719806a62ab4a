package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"xmlstage/internal/config"
	"xmlstage/internal/storage"
)

const runnerXML = `<?xml version="1.0"?>
<Orders>
	<Header><Invoice>INV-9</Invoice></Header>
	<Order><Item>widget</Item></Order>
	<Order><Item>gadget</Item></Order>
</Orders>`

// storeTracker hands out fakeStores and aggregates what they saw, so
// assertions survive the runner's open-per-call store lifecycle.
type storeTracker struct {
	mu     sync.Mutex
	opens  int
	stores []*fakeStore
	stats  []storage.StatsRecord
	openEr error
}

func (tr *storeTracker) factory(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.opens++
	if tr.openEr != nil {
		return nil, tr.openEr
	}
	st := &trackedStore{fakeStore: &fakeStore{}, tr: tr}
	tr.stores = append(tr.stores, st.fakeStore)
	return st, nil
}

type trackedStore struct {
	*fakeStore
	tr *storeTracker
}

func (s *trackedStore) AppendStats(ctx context.Context, rec storage.StatsRecord) error {
	s.tr.mu.Lock()
	s.tr.stats = append(s.tr.stats, rec)
	s.tr.mu.Unlock()
	return s.fakeStore.AppendStats(ctx, rec)
}

func testRunner(cfg *config.Config, tr *storeTracker, files map[string][]byte) *Runner {
	r := NewRunner(cfg)
	r.NewStore = tr.factory
	r.ReadFile = func(path string) ([]byte, error) {
		raw, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("open %s: no such file", path)
		}
		return raw, nil
	}
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick time.Duration
	r.Now = func() time.Time {
		tick += time.Second
		return base.Add(tick)
	}
	r.Logf = func(string, ...any) {}
	return r
}

func twoTableConfig() *config.Config {
	return &config.Config{
		Database: config.Database{Kind: "sqlite", RawDSN: "file:ignored"},
		Tables: []config.TableSpec{
			{Name: "orders", XPath: "//Order", CommonFields: map[string]string{"invoice": "//Header/Invoice"}},
			{Name: "shipments", XPath: "//Shipment"},
		},
	}
}

func TestRun_StatsOncePerFileTablePair(t *testing.T) {
	t.Parallel()

	tr := &storeTracker{}
	r := testRunner(twoTableConfig(), tr, map[string][]byte{
		"in/a.xml": []byte(runnerXML),
	})

	if err := r.Run(context.Background(), []string{"in/a.xml"}); err != nil {
		t.Fatal(err)
	}

	// One record per (file, table-config), for both the success and the
	// no-data outcome.
	if len(tr.stats) != 2 {
		t.Fatalf("got %d stats records, want 2: %v", len(tr.stats), tr.stats)
	}

	byTable := map[string]storage.StatsRecord{}
	for _, rec := range tr.stats {
		if rec.XMLFile != "a.xml" {
			t.Errorf("xml_file = %q, want base name a.xml", rec.XMLFile)
		}
		byTable[rec.StagingTable] = rec
	}

	orders := byTable["orders"]
	if orders.Status != StatusSuccess || orders.RecordCount != 2 {
		t.Errorf("orders record = %+v", orders)
	}
	shipments := byTable["shipments"]
	if shipments.Status != StatusNoData || shipments.RecordCount != 0 {
		t.Errorf("shipments record = %+v", shipments)
	}
	if !orders.EndTime.After(orders.StartTime) {
		t.Errorf("end %v not after start %v", orders.EndTime, orders.StartTime)
	}
}

func TestRun_NoDataSkipsLoad(t *testing.T) {
	t.Parallel()

	cfg := twoTableConfig()
	cfg.Tables = cfg.Tables[1:] // only the non-matching table

	tr := &storeTracker{}
	r := testRunner(cfg, tr, map[string][]byte{"a.xml": []byte(runnerXML)})

	if err := r.Run(context.Background(), []string{"a.xml"}); err != nil {
		t.Fatal(err)
	}

	// Only the stats store is opened; no load store, no inserts.
	if tr.opens != 1 {
		t.Errorf("stores opened = %d, want 1 (stats only)", tr.opens)
	}
	for _, st := range tr.stores {
		if len(st.inserted) != 0 {
			t.Errorf("no rows may be inserted on the no-data path, got %v", st.inserted)
		}
	}
}

func TestRun_UnreadableFileSkipsAllTables(t *testing.T) {
	t.Parallel()

	tr := &storeTracker{}
	r := testRunner(twoTableConfig(), tr, nil)

	if err := r.Run(context.Background(), []string{"missing.xml"}); err != nil {
		t.Fatal(err)
	}
	if tr.opens != 0 || len(tr.stats) != 0 {
		t.Errorf("unreadable file must produce no store opens (%d) and no stats (%d)",
			tr.opens, len(tr.stats))
	}
}

func TestRun_UnparsableFileSkipsAllTables(t *testing.T) {
	t.Parallel()

	tr := &storeTracker{}
	r := testRunner(twoTableConfig(), tr, map[string][]byte{
		"junk.xml": []byte("this is not xml at all"),
		"good.xml": []byte(runnerXML),
	})

	if err := r.Run(context.Background(), []string{"junk.xml", "good.xml"}); err != nil {
		t.Fatal(err)
	}

	// junk.xml contributes nothing; good.xml still gets its full pass.
	if len(tr.stats) != 2 {
		t.Fatalf("got %d stats records, want 2 from good.xml only", len(tr.stats))
	}
	for _, rec := range tr.stats {
		if rec.XMLFile != "good.xml" {
			t.Errorf("unexpected stats for %s", rec.XMLFile)
		}
	}
}

func TestRun_StoreOpenFailureIsRecorded(t *testing.T) {
	t.Parallel()

	tr := &storeTracker{openEr: errors.New("connection refused")}
	var logged []string
	r := testRunner(twoTableConfig(), tr, map[string][]byte{"a.xml": []byte(runnerXML)})
	r.Logf = func(format string, a ...any) {
		logged = append(logged, fmt.Sprintf(format, a...))
	}

	if err := r.Run(context.Background(), []string{"a.xml"}); err != nil {
		t.Fatal(err)
	}

	// The load failure becomes a status; the stats store also fails to
	// open, which is only logged.
	var sawStatus, sawStats bool
	for _, line := range logged {
		if strings.Contains(line, "Failed: connection refused") {
			sawStatus = true
		}
		if strings.Contains(line, "stats: open store") {
			sawStats = true
		}
	}
	if !sawStatus {
		t.Errorf("missing failure status in log: %v", logged)
	}
	if !sawStats {
		t.Errorf("missing stats-store failure in log: %v", logged)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &storeTracker{}
	r := testRunner(twoTableConfig(), tr, map[string][]byte{"a.xml": []byte(runnerXML)})

	if err := r.Run(ctx, []string{"a.xml"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if tr.opens != 0 {
		t.Errorf("no work expected after cancellation, opened %d stores", tr.opens)
	}
}
