// Package learner wraps the streaming variational-Bayes updater behind a
// small state machine: batches fold into a running posterior window by
// window, and the whole posterior can be discarded and rebuilt at any time.
package learner

import (
	"errors"

	"streamvb/data"
	"streamvb/model"
)

// ErrNotReady is returned when an update or prediction is requested before
// InitLearning. This is a programming error and callers treat it as fatal.
var ErrNotReady = errors.New("learner not initialized")

// State of the adapter. Learning is the transient self-loop state while a
// window is being folded.
type State int

const (
	Uninitialized State = iota
	Ready
	Learning
)

// Config is the immutable tuning surface of the underlying engine.
type Config struct {
	MaxIterations int     // cap on inner fractional-update passes
	Threshold     float64 // stop when the tracked bound improves less than this
	TrackELBO     bool    // keep the bound trace for inspection
	WindowSize    int     // max instances folded per inner step
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.1
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 10000
	}
	return c
}

// Engine is the capability interface over the opaque inference engine. Any
// numerical implementation can sit behind it; the default is the conjugate
// engine in this package.
type Engine interface {
	Reset(dag *model.DAG) error
	RandomInitialize(seed int64)
	Fold(batch *data.Batch) error
	LogLikelihood(batch *data.Batch) (float64, error)
	Posterior() *model.BayesianNetwork
}

// SVB is the stateful incremental learner driving an Engine.
type SVB struct {
	cfg    Config
	engine Engine
	state  State
}

// New builds a learner. A nil engine selects the default conjugate engine.
func New(cfg Config, engine Engine) *SVB {
	cfg = cfg.withDefaults()
	if engine == nil {
		engine = newConjugateEngine(cfg)
	}
	return &SVB{cfg: cfg, engine: engine}
}

func (s *SVB) State() State { return s.state }

// InitLearning discards any prior posterior state and binds a fresh one to
// dag. Valid from any state; calling it twice in a row is a no-op reset.
func (s *SVB) InitLearning(dag *model.DAG) error {
	if err := s.engine.Reset(dag); err != nil {
		return err
	}
	s.state = Ready
	return nil
}

// RandomInitialize gives the posterior a non-degenerate starting point to
// break symmetry. Deterministic for a given seed.
func (s *SVB) RandomInitialize(seed int64) error {
	if s.state == Uninitialized {
		return ErrNotReady
	}
	s.engine.RandomInitialize(seed)
	return nil
}

// Update folds the batch into the running posterior, regrouped into windows
// of at most WindowSize instances and folded sequentially. Callers must not
// assume the call is atomic across the whole batch when the batch exceeds
// one window.
func (s *SVB) Update(batch *data.Batch) error {
	if s.state == Uninitialized {
		return ErrNotReady
	}
	windows, err := batch.Windows(s.cfg.WindowSize)
	if err != nil {
		return err
	}
	s.state = Learning
	defer func() { s.state = Ready }()
	for _, w := range windows {
		if err := s.engine.Fold(w); err != nil {
			return err
		}
	}
	return nil
}

// PredictiveLogLikelihood returns the summed per-instance log-likelihood of
// batch under the current posterior, without mutating learner state. Taking
// a mean is the caller's business.
func (s *SVB) PredictiveLogLikelihood(batch *data.Batch) (float64, error) {
	if s.state == Uninitialized {
		return 0, ErrNotReady
	}
	windows, err := batch.Windows(s.cfg.WindowSize)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, w := range windows {
		ll, err := s.engine.LogLikelihood(w)
		if err != nil {
			return 0, err
		}
		total += ll
	}
	return total, nil
}

// CurrentModel returns a read-only snapshot of the DAG and posterior.
func (s *SVB) CurrentModel() (*model.BayesianNetwork, error) {
	if s.state == Uninitialized {
		return nil, ErrNotReady
	}
	return s.engine.Posterior(), nil
}
