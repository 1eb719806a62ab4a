// Package datadog implements a Datadog backend for the internal/metrics
// facade.
//
// Submitting only once at process exit makes dashboards awkward for long
// loads (a single spike rather than a time series), so this backend:
//
//   - buffers metrics in-memory (fast, lock-protected)
//   - periodically Flush()es on a ticker (default: once per minute)
//   - Flush()es one final time on Close()
//
// Concurrency model: pipeline code can call IncCounter/ObserveDuration at any
// time; Flush snapshots and resets buffers under a mutex, then submits
// out-of-lock; the flush loop calls Flush periodically and Close stops it.
// If the process dies with SIGKILL, Close never runs; no backend can fix
// that.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"xmlstage/internal/metrics"
)

// metricPrefix namespaces every submitted metric.
const metricPrefix = "xmlstage."

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "xmlstage".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them; unit tests
	// use them to avoid real network submission and nondeterministic
	// clocks/tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics.
//
// The Datadog SDK exposes a concrete *datadogV2.MetricsApi; depending on this
// tiny interface instead enables deterministic tests with a fake submitter.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu        sync.Mutex
	counters  map[string]float64
	durations map[string][]float64
}

// NewBackend constructs a Datadog backend using the official client and
// starts its periodic flush goroutine.
//
// Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
// Credentials come from the client's standard environment handling; network
// errors surface from Flush, not from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "xmlstage"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[string]float64),
		durations:  make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
// Close is "call once": a second call panics on the closed channel, matching
// typical process-lifetime backend semantics.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, tags ...string) {
	if delta <= 0 {
		return
	}
	k := bufferKey(name, tags)

	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, seconds float64, tags ...string) {
	if seconds < 0 {
		return
	}
	k := bufferKey(name, tags)

	b.mu.Lock()
	b.durations[k] = append(b.durations[k], seconds)
	b.mu.Unlock()
}

// snapshot is the detached buffered state used to build one flush payload,
// so collect+reset happens under the lock and submission out of it.
type snapshot struct {
	counters  map[string]float64
	durations map[string][]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{counters: b.counters, durations: b.durations}
	b.counters = make(map[string]float64)
	b.durations = make(map[string][]float64)
	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.counters) == 0 && len(s.durations) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Buffers reset even when submission fails, so a broken sink never blocks
// future writes; delivery is best-effort.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed timestamp.
// It is pure (no locks, no network, no clocks), which keeps the naming and
// tagging contract unit-testable.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.counters)+len(s.durations)*4)

	for k, v := range s.counters {
		if v == 0 {
			continue
		}
		name, tags := splitBufferKey(k)
		series = append(series, countSeries(metricPrefix+name, v, withTags(b.baseTags, tags...), nowUnix))
	}

	for k, samples := range s.durations {
		if len(samples) == 0 {
			continue
		}
		name, tags := splitBufferKey(k)
		full := withTags(b.baseTags, tags...)

		cp := append([]float64(nil), samples...)
		sort.Float64s(cp)

		series = append(series, gaugeSeries(metricPrefix+name+".p50", percentileNearestRank(cp, 0.50), full, nowUnix))
		series = append(series, gaugeSeries(metricPrefix+name+".p95", percentileNearestRank(cp, 0.95), full, nowUnix))
		series = append(series, gaugeSeries(metricPrefix+name+".max", cp[len(cp)-1], full, nowUnix))
		series = append(series, gaugeSeries(metricPrefix+name+".samples", float64(len(cp)), full, nowUnix))
	}

	return series
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

// bufferKey joins a metric name with its sorted tags so one buffered entry
// exists per (name, tag set).
func bufferKey(name string, tags []string) string {
	if len(tags) == 0 {
		return name
	}
	cp := append([]string(nil), tags...)
	sort.Strings(cp)
	return name + "\x00" + strings.Join(cp, "\x00")
}

func splitBufferKey(k string) (name string, tags []string) {
	parts := strings.Split(k, "\x00")
	return parts[0], parts[1:]
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:ingest".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
