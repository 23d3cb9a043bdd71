package learner

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"streamvb/data"
	"streamvb/model"
)

const (
	priorCount    = 1.0
	varianceFloor = 1e-6
)

// conjugateEngine is the default Engine: Dirichlet pseudo-counts for
// discrete nodes and per-class Gaussian moment stats for continuous nodes,
// conditioned on a single parentless discrete class variable. Instances with
// a missing class label are folded fractionally: responsibilities under the
// current posterior, re-estimated for up to MaxIterations passes or until
// the expected-likelihood bound improves by less than Threshold.
type conjugateEngine struct {
	cfg      Config
	dag      *model.DAG
	vars     []model.Variable
	classIdx int
	stats    *stats
	elbo     []float64
}

type gaussStats struct {
	n     []float64
	sum   []float64
	sumSq []float64
}

type stats struct {
	classCounts []float64
	disc        map[int][][]float64 // var index -> [class state][state] counts
	cont        map[int]*gaussStats // var index -> per-class moments
}

func newConjugateEngine(cfg Config) *conjugateEngine {
	return &conjugateEngine{cfg: cfg}
}

// Reset rebinds the engine to dag and discards all accumulated statistics.
// The dag must have exactly one parentless discrete variable with every
// other variable conditioned on it alone.
func (e *conjugateEngine) Reset(dag *model.DAG) error {
	vars := dag.Variables()
	classIdx := -1
	for i, v := range vars {
		if len(dag.Parents(v.Name)) == 0 {
			if classIdx >= 0 {
				return errors.New("engine supports exactly one parentless variable")
			}
			classIdx = i
		}
	}
	if classIdx < 0 {
		return errors.New("engine needs a parentless class variable")
	}
	class := vars[classIdx]
	if !class.IsDiscrete() {
		return errors.New("engine needs a discrete class variable")
	}
	for i, v := range vars {
		if i == classIdx {
			continue
		}
		parents := dag.Parents(v.Name)
		if len(parents) != 1 || parents[0].Name != class.Name {
			return fmt.Errorf("engine cannot condition %q on parents other than the class", v.Name)
		}
	}

	st := &stats{
		classCounts: filled(class.States, priorCount),
		disc:        make(map[int][][]float64),
		cont:        make(map[int]*gaussStats),
	}
	for i, v := range vars {
		if i == classIdx {
			continue
		}
		if v.IsDiscrete() {
			rows := make([][]float64, class.States)
			for k := range rows {
				rows[k] = filled(v.States, priorCount)
			}
			st.disc[i] = rows
		} else {
			st.cont[i] = &gaussStats{
				n:     make([]float64, class.States),
				sum:   make([]float64, class.States),
				sumSq: make([]float64, class.States),
			}
		}
	}

	e.dag = dag
	e.vars = vars
	e.classIdx = classIdx
	e.stats = st
	e.elbo = nil
	return nil
}

// RandomInitialize perturbs the pseudo-counts so symmetric states start from
// distinct points. Nodes are visited in variable order so the draw sequence,
// and therefore the starting point, is fully determined by the seed.
func (e *conjugateEngine) RandomInitialize(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for k := range e.stats.classCounts {
		e.stats.classCounts[k] += rng.Float64() * 0.1
	}
	for i := range e.vars {
		if rows, ok := e.stats.disc[i]; ok {
			for _, row := range rows {
				for j := range row {
					row[j] += rng.Float64() * 0.1
				}
			}
		}
		if g, ok := e.stats.cont[i]; ok {
			for k := range g.n {
				g.n[k] += 0.01
				g.sum[k] += 0.01 * rng.NormFloat64()
			}
		}
	}
}

// Fold merges one window of instances into the running posterior.
func (e *conjugateEngine) Fold(batch *data.Batch) error {
	if err := e.checkBatch(batch); err != nil {
		return err
	}

	var missing []data.Instance
	delta := e.emptyDelta()
	for i := 0; i < batch.Len(); i++ {
		inst := batch.Instance(i)
		c := inst[e.classIdx]
		if data.IsMissing(c) {
			missing = append(missing, inst)
			continue
		}
		delta.add(e, inst, int(c), 1.0)
	}
	if len(missing) == 0 {
		e.stats.merge(delta)
		return nil
	}

	// Fractional updating: instances without a class label contribute
	// responsibility-weighted counts. Responsibilities and the hard counts
	// interact, so re-estimate until the bound stalls.
	hard := delta
	prev := math.Inf(-1)
	best := hard
	for it := 0; it < e.cfg.MaxIterations; it++ {
		scratch := e.stats.clone()
		scratch.merge(best)
		soft := e.emptyDelta()
		bound := 0.0
		for _, inst := range missing {
			logJoint := e.classLogJoint(scratch, inst)
			resp, norm := softmax(logJoint)
			bound += norm
			for k, r := range resp {
				if r > 0 {
					soft.add(e, inst, k, r)
				}
			}
		}
		if e.cfg.TrackELBO {
			e.elbo = append(e.elbo, bound)
		}
		next := hard.clone()
		next.merge(soft)
		best = next
		if bound-prev < e.cfg.Threshold {
			break
		}
		prev = bound
	}
	e.stats.merge(best)
	return nil
}

// LogLikelihood sums the per-instance log-likelihood of the window under the
// current posterior means. No state is touched.
func (e *conjugateEngine) LogLikelihood(batch *data.Batch) (float64, error) {
	if err := e.checkBatch(batch); err != nil {
		return 0, err
	}
	total := 0.0
	for i := 0; i < batch.Len(); i++ {
		inst := batch.Instance(i)
		logJoint := e.classLogJoint(e.stats, inst)
		c := inst[e.classIdx]
		if data.IsMissing(c) {
			_, norm := softmax(logJoint)
			total += norm
		} else {
			total += logJoint[int(c)]
		}
	}
	return total, nil
}

// ELBOTrace returns the recorded bound values, oldest first. Empty unless
// TrackELBO is set and fractional updates have run.
func (e *conjugateEngine) ELBOTrace() []float64 { return e.elbo }

// Posterior snapshots the current parameters.
func (e *conjugateEngine) Posterior() *model.BayesianNetwork {
	bn := &model.BayesianNetwork{DAG: e.dag}
	for i, v := range e.vars {
		node := model.NodeParameters{Variable: v}
		switch {
		case i == e.classIdx:
			node.Probabilities = [][]float64{normalized(e.stats.classCounts)}
		case v.IsDiscrete():
			for _, row := range e.stats.disc[i] {
				node.Probabilities = append(node.Probabilities, normalized(row))
			}
		default:
			g := e.stats.cont[i]
			for k := range g.n {
				mean, variance := g.moments(k)
				node.Means = append(node.Means, mean)
				node.StdDevs = append(node.StdDevs, math.Sqrt(variance))
			}
		}
		bn.Nodes = append(bn.Nodes, node)
	}
	return bn
}

func (e *conjugateEngine) checkBatch(batch *data.Batch) error {
	if e.stats == nil {
		return ErrNotReady
	}
	schema := batch.Schema()
	if schema.Len() != len(e.vars) {
		return fmt.Errorf("batch has %d attributes, model has %d variables", schema.Len(), len(e.vars))
	}
	// Width alone is not enough: a discrete value from a wider domain
	// would index past the count table.
	for i, v := range e.vars {
		attr := schema.Attribute(i)
		if attr.Name != v.Name || attr.Kind != v.Kind || attr.States != v.States {
			return fmt.Errorf("attribute %d is %s, model expects %s", i, describeAttr(attr.Name, attr.Kind, attr.States), describeAttr(v.Name, v.Kind, v.States))
		}
	}
	return nil
}

func describeAttr(name string, kind data.Kind, states int) string {
	if kind == data.Discrete {
		return fmt.Sprintf("%s:discrete(%d)", name, states)
	}
	return fmt.Sprintf("%s:continuous", name)
}

// classLogJoint returns, per class state k, log p(k) + sum log p(x_i | k)
// over the observed non-class values of inst.
func (e *conjugateEngine) classLogJoint(st *stats, inst data.Instance) []float64 {
	class := e.vars[e.classIdx]
	out := make([]float64, class.States)
	classTotal := sum(st.classCounts)
	for k := range out {
		lp := math.Log(st.classCounts[k] / classTotal)
		for i, v := range inst {
			if i == e.classIdx || data.IsMissing(v) {
				continue
			}
			if e.vars[i].IsDiscrete() {
				row := st.disc[i][k]
				lp += math.Log(row[int(v)] / sum(row))
			} else {
				mean, variance := st.cont[i].moments(k)
				lp += gaussLogPdf(v, mean, variance)
			}
		}
		out[k] = lp
	}
	return out
}

func (e *conjugateEngine) emptyDelta() *stats {
	class := e.vars[e.classIdx]
	d := &stats{
		classCounts: make([]float64, class.States),
		disc:        make(map[int][][]float64),
		cont:        make(map[int]*gaussStats),
	}
	for i := range e.stats.disc {
		rows := make([][]float64, class.States)
		for k := range rows {
			rows[k] = make([]float64, e.vars[i].States)
		}
		d.disc[i] = rows
	}
	for i := range e.stats.cont {
		d.cont[i] = &gaussStats{
			n:     make([]float64, class.States),
			sum:   make([]float64, class.States),
			sumSq: make([]float64, class.States),
		}
	}
	return d
}

// add folds one instance with the given class state and weight.
func (d *stats) add(e *conjugateEngine, inst data.Instance, classState int, weight float64) {
	d.classCounts[classState] += weight
	for i, v := range inst {
		if i == e.classIdx || data.IsMissing(v) {
			continue
		}
		if e.vars[i].IsDiscrete() {
			d.disc[i][classState][int(v)] += weight
		} else {
			g := d.cont[i]
			g.n[classState] += weight
			g.sum[classState] += weight * v
			g.sumSq[classState] += weight * v * v
		}
	}
}

func (d *stats) merge(o *stats) {
	for k, v := range o.classCounts {
		d.classCounts[k] += v
	}
	for i, rows := range o.disc {
		for k, row := range rows {
			for j, v := range row {
				d.disc[i][k][j] += v
			}
		}
	}
	for i, g := range o.cont {
		t := d.cont[i]
		for k := range g.n {
			t.n[k] += g.n[k]
			t.sum[k] += g.sum[k]
			t.sumSq[k] += g.sumSq[k]
		}
	}
}

func (d *stats) clone() *stats {
	c := &stats{
		classCounts: append([]float64(nil), d.classCounts...),
		disc:        make(map[int][][]float64, len(d.disc)),
		cont:        make(map[int]*gaussStats, len(d.cont)),
	}
	for i, rows := range d.disc {
		cr := make([][]float64, len(rows))
		for k, row := range rows {
			cr[k] = append([]float64(nil), row...)
		}
		c.disc[i] = cr
	}
	for i, g := range d.cont {
		c.cont[i] = &gaussStats{
			n:     append([]float64(nil), g.n...),
			sum:   append([]float64(nil), g.sum...),
			sumSq: append([]float64(nil), g.sumSq...),
		}
	}
	return c
}

// moments returns the posterior mean and a floored variance for one class
// state; with no observations it falls back to a standard normal.
func (g *gaussStats) moments(k int) (mean, variance float64) {
	if g.n[k] < varianceFloor {
		return 0, 1
	}
	mean = g.sum[k] / g.n[k]
	variance = g.sumSq[k]/g.n[k] - mean*mean
	if variance < varianceFloor {
		variance = varianceFloor
	}
	return mean, variance
}

func gaussLogPdf(x, mean, variance float64) float64 {
	d := x - mean
	return -0.5*math.Log(2*math.Pi*variance) - d*d/(2*variance)
}

// softmax exponentiates in a numerically safe way, returning the normalized
// weights and the log normalizer (log-sum-exp).
func softmax(logs []float64) ([]float64, float64) {
	max := math.Inf(-1)
	for _, v := range logs {
		if v > max {
			max = v
		}
	}
	total := 0.0
	out := make([]float64, len(logs))
	for i, v := range logs {
		out[i] = math.Exp(v - max)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out, max + math.Log(total)
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func sum(vs []float64) float64 {
	t := 0.0
	for _, v := range vs {
		t += v
	}
	return t
}

func normalized(counts []float64) []float64 {
	t := sum(counts)
	out := make([]float64, len(counts))
	for i, v := range counts {
		out[i] = v / t
	}
	return out
}
