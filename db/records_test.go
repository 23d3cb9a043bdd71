package db

import (
	"path/filepath"
	"testing"

	"streamvb/stream"
)

func TestRecordStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	store, err := OpenRecordStore(path, "test-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	records := []stream.EvaluationRecord{
		{Epoch: 0, Score: -1.25, TestInstances: 9, SourceFile: "01.tsv"},
		{Epoch: 1, Score: -2.5, TestInstances: 13, SourceFile: "03.tsv"},
	}
	for _, rec := range records {
		if err := store.Append(rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := store.Summary(-3.75); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Records()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	for i, rec := range records {
		if got[i] != rec {
			t.Fatalf("record %d mismatch: %+v vs %+v", i, got[i], rec)
		}
	}
}

func TestRecordStoreSeparatesRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")

	a, err := OpenRecordStore(path, "run-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Append(stream.EvaluationRecord{Epoch: 0, Score: -1, TestInstances: 5, SourceFile: "x.tsv"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.Close()

	b, err := OpenRecordStore(path, "run-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()
	got, err := b.Records()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("run-b should see no records, got %d", len(got))
	}
}
