package testutil

import (
	"sync"
	"testing"
	"time"
)

// RunConcurrently starts every fn in its own goroutine, releases them
// together and waits for all of them. The test fails if they do not finish
// within timeout, which is how lock-ordering tests detect a deadlock.
func RunConcurrently(t *testing.T, timeout time.Duration, fns ...func()) {
	t.Helper()

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fn()
		}()
	}
	close(start)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("%d goroutines did not finish within %s (deadlock?)", len(fns), timeout)
	}
}

// Recorder collects ExecutionRecords from concurrent goroutines.
type Recorder struct {
	mu      sync.Mutex
	records map[string][]ExecutionRecord
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{records: make(map[string][]ExecutionRecord)}
}

// Track runs fn and records how long it took under key.
func (r *Recorder) Track(key string, fn func()) {
	rec := ExecutionRecord{Start: time.Now()}
	fn()
	rec.End = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = append(r.records[key], rec)
}

// Records returns the records stored under key.
func (r *Recorder) Records(key string) []ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutionRecord(nil), r.records[key]...)
}
