// Package stream drives the incremental learner across an ordered sequence
// of data files, evaluating held-out likelihood after every file and
// restarting learner state between files.
package stream

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"

	"go.uber.org/zap"

	"streamvb/data"
	"streamvb/learner"
	"streamvb/model"
)

// Config is the immutable run surface of the restart loop.
type Config struct {
	SourceDir    string
	FileExt      string  // filename filter, default ".tsv"
	SplitRatio   float64 // train share, default 2/3
	MinInstances int     // files shorter than this are skipped outright
	WindowSize   int     // instances consumed per fold and per evaluation
	Seed         int64
}

func (c Config) withDefaults() Config {
	if c.FileExt == "" {
		c.FileExt = ".tsv"
	}
	if c.SplitRatio == 0 {
		c.SplitRatio = 2.0 / 3.0
	}
	return c
}

// Loop owns the learner state for the lifetime of a run. Single-threaded:
// each file is processed to completion before the next begins.
type Loop struct {
	cfg     Config
	loader  data.Loader
	dag     *model.DAG
	svb     *learner.SVB
	sink    RecordSink
	log     *zap.Logger
	rng     *rand.Rand
	schema  *data.Schema
	epoch   int
	total   float64
	records int
}

// New wires a loop. The RNG is seeded once here and reused across every
// file; its draw sequence, not per-file seeding, carries the determinism
// contract.
func New(cfg Config, loader data.Loader, dag *model.DAG, svb *learner.SVB, sink RecordSink, log *zap.Logger) (*Loop, error) {
	cfg = cfg.withDefaults()
	if cfg.SourceDir == "" {
		return nil, errors.New("source directory is required")
	}
	if cfg.WindowSize < 1 {
		return nil, errors.New("window size must be at least 1")
	}
	if loader == nil || dag == nil || svb == nil || sink == nil {
		return nil, errors.New("loader, dag, learner and sink are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		cfg:    cfg,
		loader: loader,
		dag:    dag,
		svb:    svb,
		sink:   sink,
		log:    log,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Run visits every matching file in the source directory in lexicographic
// name order, then writes the accumulated total to the sink. Any read
// failure aborts the run; there is no partial-epoch recovery.
func (l *Loop) Run() (float64, error) {
	files, err := data.ListFiles(l.cfg.SourceDir, l.cfg.FileExt)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", l.cfg.SourceDir, err)
	}
	for _, path := range files {
		if err := l.ProcessFile(path); err != nil {
			return 0, err
		}
	}
	if err := l.sink.Summary(l.total); err != nil {
		return 0, err
	}
	l.log.Info("run complete", zap.Int("epochs", l.records), zap.Float64("totalLog", l.total))
	return l.total, nil
}

// ProcessFile runs one epoch: load, skip-or-shuffle, split, one windowed
// train fold, held-out scoring, record, then the restart sequence (reset,
// warm on the test window, reset again) so the next file starts from a
// fresh learner.
func (l *Loop) ProcessFile(path string) error {
	batch, err := l.loader.Load(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if l.schema == nil {
		l.schema = batch.Schema()
	} else if !l.schema.Equal(batch.Schema()) {
		return fmt.Errorf("load %s: schema differs from earlier files", path)
	}

	// The skip happens before any RNG draw, so a short file leaves the
	// shuffle sequence of later files untouched.
	if batch.Len() < l.cfg.MinInstances {
		l.log.Info("skipping short file",
			zap.String("file", filepath.Base(path)),
			zap.Int("instances", batch.Len()),
			zap.Int("min", l.cfg.MinInstances))
		return nil
	}

	l.log.Info("epoch", zap.Int("index", l.epoch), zap.String("file", filepath.Base(path)))

	batch.Shuffle(l.rng)
	train, test, err := batch.Split(l.cfg.SplitRatio)
	if err != nil {
		return err
	}

	// Only the leading window of the train partition is folded; one window
	// per epoch is the restart protocol, not an oversight.
	trainWin, err := train.FirstWindow(l.cfg.WindowSize)
	if err != nil {
		return err
	}
	if err := l.svb.Update(trainWin); err != nil {
		return fmt.Errorf("update on %s: %w", path, err)
	}

	testWin, err := test.FirstWindow(l.cfg.WindowSize)
	if err != nil {
		return err
	}
	ll, err := l.svb.PredictiveLogLikelihood(testWin)
	if err != nil {
		return fmt.Errorf("evaluate on %s: %w", path, err)
	}
	score := 0.0
	if testWin.Len() > 0 {
		score = ll / float64(testWin.Len())
	}

	rec := EvaluationRecord{
		Epoch:         l.epoch,
		Score:         score,
		TestInstances: test.Len(),
		SourceFile:    filepath.Base(path),
	}
	if err := l.sink.Append(rec); err != nil {
		return fmt.Errorf("record epoch %d: %w", l.epoch, err)
	}
	l.total += score
	l.records++

	l.log.Info("epoch scored",
		zap.Int("index", l.epoch),
		zap.Float64("score", score),
		zap.Int("testInstances", test.Len()))
	l.logModel()

	// Restart sequence: discard the posterior, warm it on the held-out
	// window for parity with the evaluation, then discard that too. The
	// next file always starts from a fresh learner.
	if err := l.svb.InitLearning(l.dag); err != nil {
		return err
	}
	if err := l.svb.Update(testWin); err != nil {
		return fmt.Errorf("warm on %s: %w", path, err)
	}
	l.logModel()
	if err := l.svb.InitLearning(l.dag); err != nil {
		return err
	}

	l.epoch++
	return nil
}

// Total returns the accumulated per-epoch score so far.
func (l *Loop) Total() float64 { return l.total }

// Records returns how many epochs have produced a record.
func (l *Loop) Records() int { return l.records }

func (l *Loop) logModel() {
	if !l.log.Core().Enabled(zap.DebugLevel) {
		return
	}
	bn, err := l.svb.CurrentModel()
	if err != nil {
		return
	}
	l.log.Debug("model", zap.String("summary", bn.String()))
}
