package stream

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// lockedSink is a memorySink safe to inspect while Watch runs in a
// separate goroutine.
type lockedSink struct {
	mu   sync.Mutex
	sink memorySink
}

func (s *lockedSink) Append(rec EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Append(rec)
}

func (s *lockedSink) Summary(totalLog float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Summary(totalLog)
}

func (s *lockedSink) Close() error { return nil }

func (s *lockedSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sink.records)
}

func (s *lockedSink) record(i int) EvaluationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.records[i]
}

func (s *lockedSink) summaryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sink.summaries)
}

func waitForRecords(t *testing.T, sink *lockedSink, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for sink.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d records, still %d", n, sink.count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatchProcessesExistingFilesThenStops(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "01.tsv", 30)
	writeDataFile(t, dir, "02.tsv", 40)

	sink := &memorySink{}
	loop := newTestLoop(t, dir, sink, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := loop.Watch(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("expected 2 records from the initial scan, got %d", len(sink.records))
	}
	if len(sink.summaries) != 1 {
		t.Fatalf("expected a summary on shutdown, got %d", len(sink.summaries))
	}
}

func TestWatchProcessesNewFileExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "01.tsv", 30)

	sink := &lockedSink{}
	loop := newTestLoop(t, dir, sink, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Watch(ctx, 20*time.Millisecond) }()

	waitForRecords(t, sink, 1)
	// Give the watcher time to attach before the new file appears.
	time.Sleep(200 * time.Millisecond)

	writeDataFile(t, dir, "02.tsv", 40)
	waitForRecords(t, sink, 2)

	// The create also delivers write events; none of them may replay it.
	time.Sleep(200 * time.Millisecond)
	if got := sink.count(); got != 2 {
		t.Fatalf("expected the new file to be processed once, got %d records", got)
	}
	if rec := sink.record(1); rec.SourceFile != "02.tsv" {
		t.Fatalf("second record came from %q, want 02.tsv", rec.SourceFile)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.summaryCount() != 1 {
		t.Fatalf("expected a summary on shutdown, got %d", sink.summaryCount())
	}
}

func TestWatchSurvivesFileMovedAway(t *testing.T) {
	dir := t.TempDir()
	elsewhere := t.TempDir()
	writeDataFile(t, dir, "01.tsv", 30)

	sink := &lockedSink{}
	loop := newTestLoop(t, dir, sink, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Watch(ctx, 250*time.Millisecond) }()

	waitForRecords(t, sink, 1)
	time.Sleep(200 * time.Millisecond)

	// A file that vanishes before its settle delay elapses is skipped.
	writeDataFile(t, dir, "02.tsv", 40)
	if err := os.Rename(filepath.Join(dir, "02.tsv"), filepath.Join(elsewhere, "02.tsv")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	writeDataFile(t, dir, "03.tsv", 40)
	waitForRecords(t, sink, 2)
	if rec := sink.record(1); rec.SourceFile != "03.tsv" {
		t.Fatalf("second record came from %q, want 03.tsv", rec.SourceFile)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("watch stopped after a file was moved away: %v", err)
	}
}
