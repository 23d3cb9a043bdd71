package stream

import (
	"bufio"
	"fmt"
	"os"
)

// EvaluationRecord is the outcome of one processed epoch. Appended once and
// never mutated.
type EvaluationRecord struct {
	Epoch         int
	Score         float64
	TestInstances int
	SourceFile    string
}

// RecordSink receives one record per epoch, durably, in order.
type RecordSink interface {
	Append(rec EvaluationRecord) error
	Summary(totalLog float64) error
	Close() error
}

// TextSink writes tab-separated records, one line per epoch, flushed after
// every append so a crash preserves all completed epochs. The summary is a
// final total line.
type TextSink struct {
	f *os.File
	w *bufio.Writer
}

func NewTextSink(path string) (*TextSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &TextSink{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *TextSink) Append(rec EvaluationRecord) error {
	if _, err := fmt.Fprintf(s.w, "%d\t%v\t%d\n", rec.Epoch, rec.Score, rec.TestInstances); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *TextSink) Summary(totalLog float64) error {
	if _, err := fmt.Fprintf(s.w, "TOTAL LOG: %v\n", totalLog); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *TextSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// MultiSink fans records out to several sinks in order.
type MultiSink []RecordSink

func (m MultiSink) Append(rec EvaluationRecord) error {
	for _, s := range m {
		if err := s.Append(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Summary(totalLog float64) error {
	for _, s := range m {
		if err := s.Summary(totalLog); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
