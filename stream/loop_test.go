package stream

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streamvb/data"
	"streamvb/learner"
	"streamvb/model"
)

type memorySink struct {
	records   []EvaluationRecord
	summaries []float64
}

func (m *memorySink) Append(rec EvaluationRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Summary(totalLog float64) error {
	m.summaries = append(m.summaries, totalLog)
	return nil
}

func (m *memorySink) Close() error { return nil }

func writeDataFile(t *testing.T, dir, name string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("x:continuous\td:discrete(3)\tc:discrete(2)\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%g\t%d\t%d\n", float64(i%7)*0.25, i%3, i%2)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestLoop(t *testing.T, dir string, sink RecordSink, seed int64) *Loop {
	t.Helper()
	schema, err := data.NewSchema([]data.Attribute{
		{Name: "x", Kind: data.Continuous},
		{Name: "d", Kind: data.Discrete, States: 3},
		{Name: "c", Kind: data.Discrete, States: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dag, err := model.NaiveBayesDAG(schema, "c", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svb := learner.New(learner.Config{WindowSize: 100}, nil)
	if err := svb.InitLearning(dag); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svb.RandomInitialize(seed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loop, err := New(Config{
		SourceDir:    dir,
		MinInstances: 10,
		WindowSize:   100,
		Seed:         seed,
	}, &data.TSVLoader{}, dag, svb, sink, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return loop
}

func TestRunSkipsShortFilesAndCountsHeldOut(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "01.tsv", 30)
	writeDataFile(t, dir, "02.tsv", 5)
	writeDataFile(t, dir, "03.tsv", 40)

	sink := &memorySink{}
	loop := newTestLoop(t, dir, sink, 1)

	total, err := loop.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("expected 2 records (short file skipped), got %d", len(sink.records))
	}
	if sink.records[0].Epoch != 0 || sink.records[1].Epoch != 1 {
		t.Fatalf("epoch indices wrong: %d, %d", sink.records[0].Epoch, sink.records[1].Epoch)
	}
	// testCount = total - floor(total*2/3) - 1: one instance sits on the
	// split boundary and is dropped from both partitions.
	if sink.records[0].TestInstances != 9 {
		t.Fatalf("expected 9 held-out instances for 30, got %d", sink.records[0].TestInstances)
	}
	if sink.records[1].TestInstances != 13 {
		t.Fatalf("expected 13 held-out instances for 40, got %d", sink.records[1].TestInstances)
	}

	want := sink.records[0].Score + sink.records[1].Score
	if total != want {
		t.Fatalf("total %v does not match record sum %v", total, want)
	}
	if len(sink.summaries) != 1 || sink.summaries[0] != total {
		t.Fatalf("summary not written with the final total: %v", sink.summaries)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "01.tsv", 30)
	writeDataFile(t, dir, "02.tsv", 24)
	writeDataFile(t, dir, "03.tsv", 40)

	run := func() []EvaluationRecord {
		sink := &memorySink{}
		loop := newTestLoop(t, dir, sink, 7)
		if _, err := loop.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return sink.records
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("record counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("records diverge at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSkippedFileDoesNotPerturbRNG(t *testing.T) {
	withShort := t.TempDir()
	writeDataFile(t, withShort, "01.tsv", 30)
	writeDataFile(t, withShort, "02.tsv", 5)
	writeDataFile(t, withShort, "03.tsv", 40)

	without := t.TempDir()
	writeDataFile(t, without, "01.tsv", 30)
	writeDataFile(t, without, "03.tsv", 40)

	run := func(dir string) []EvaluationRecord {
		sink := &memorySink{}
		loop := newTestLoop(t, dir, sink, 3)
		if _, err := loop.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return sink.records
	}

	a := run(withShort)
	b := run(without)
	if len(a) != len(b) {
		t.Fatalf("record counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Score != b[i].Score || a[i].TestInstances != b[i].TestInstances {
			t.Fatalf("skip perturbed the run at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRunFailsFastOnUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "01.tsv"), []byte("not\ta\theader\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writeDataFile(t, dir, "02.tsv", 30)

	sink := &memorySink{}
	loop := newTestLoop(t, dir, sink, 1)
	if _, err := loop.Run(); err == nil {
		t.Fatal("expected run to abort on malformed file")
	}
	if len(sink.records) != 0 {
		t.Fatalf("no records should be written after a fatal load, got %d", len(sink.records))
	}
}

func TestRunRejectsSchemaDrift(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "01.tsv", 30)
	if err := os.WriteFile(filepath.Join(dir, "02.tsv"),
		[]byte("y:continuous\tc:discrete(2)\n1\t0\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sink := &memorySink{}
	loop := newTestLoop(t, dir, sink, 1)
	if _, err := loop.Run(); err == nil {
		t.Fatal("expected run to abort on schema drift")
	}
}

func TestTextSinkFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	sink, err := NewTextSink(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Append(EvaluationRecord{Epoch: 0, Score: -1.5, TestInstances: 9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Append(EvaluationRecord{Epoch: 1, Score: -2.25, TestInstances: 13}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Summary(-3.75); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != "0\t-1.5\t9" {
		t.Fatalf("unexpected record line: %q", lines[0])
	}
	if lines[1] != "1\t-2.25\t13" {
		t.Fatalf("unexpected record line: %q", lines[1])
	}
	if lines[2] != "TOTAL LOG: -3.75" {
		t.Fatalf("unexpected summary line: %q", lines[2])
	}
}
