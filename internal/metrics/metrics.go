// Package metrics is a minimal facade between the pipeline and a metrics
// backend. The core depends only on this package; concrete backends (Datadog)
// live in subpackages and are installed with SetBackend.
//
// The default backend is a nop, so instrumentation calls are always safe.
package metrics

import "sync"

// Backend buffers and ships metrics. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter.
	IncCounter(name string, delta float64, tags ...string)

	// ObserveDuration records one duration sample, in seconds.
	ObserveDuration(name string, seconds float64, tags ...string)

	// Flush submits buffered metrics to the backend's sink.
	Flush() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// IncCounter adds delta to a named counter on the installed backend.
func IncCounter(name string, delta float64, tags ...string) {
	current().IncCounter(name, delta, tags...)
}

// ObserveDuration records one duration sample on the installed backend.
func ObserveDuration(name string, seconds float64, tags ...string) {
	current().ObserveDuration(name, seconds, tags...)
}

// Flush submits buffered metrics on the installed backend.
func Flush() error {
	return current().Flush()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, ...string)      {}
func (nopBackend) ObserveDuration(string, float64, ...string) {}
func (nopBackend) Flush() error                               { return nil }
