package metrics

import (
	"errors"
	"reflect"
	"testing"
)

type recordingBackend struct {
	counters  []string
	durations []string
	flushed   int
	flushErr  error
}

func (r *recordingBackend) IncCounter(name string, delta float64, tags ...string) {
	r.counters = append(r.counters, name)
}

func (r *recordingBackend) ObserveDuration(name string, seconds float64, tags ...string) {
	r.durations = append(r.durations, name)
}

func (r *recordingBackend) Flush() error {
	r.flushed++
	return r.flushErr
}

func TestFacadeForwardsToBackend(t *testing.T) {
	rec := &recordingBackend{flushErr: errors.New("sink down")}
	SetBackend(rec)
	defer SetBackend(nil)

	IncCounter("files_processed", 1)
	ObserveDuration("load_duration_seconds", 0.25, "table:orders")
	if err := Flush(); !errors.Is(err, rec.flushErr) {
		t.Errorf("Flush() = %v", err)
	}

	if want := []string{"files_processed"}; !reflect.DeepEqual(rec.counters, want) {
		t.Errorf("counters = %v", rec.counters)
	}
	if want := []string{"load_duration_seconds"}; !reflect.DeepEqual(rec.durations, want) {
		t.Errorf("durations = %v", rec.durations)
	}
	if rec.flushed != 1 {
		t.Errorf("flushed %d times", rec.flushed)
	}
}

func TestNilBackendResetsToNop(t *testing.T) {
	rec := &recordingBackend{}
	SetBackend(rec)
	SetBackend(nil)

	IncCounter("files_processed", 1)
	if err := Flush(); err != nil {
		t.Errorf("nop Flush() = %v", err)
	}
	if len(rec.counters) != 0 {
		t.Errorf("replaced backend still receiving: %v", rec.counters)
	}
}
