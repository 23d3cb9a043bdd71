package data

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Instance is one row of values, aligned with the schema's attribute order.
// A missing value is NaN.
type Instance []float64

// Missing returns the missing-value marker.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether a value is the missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Batch is an ordered in-memory collection of instances sharing one schema.
type Batch struct {
	schema    *Schema
	instances []Instance
}

func NewBatch(schema *Schema) *Batch {
	return &Batch{schema: schema}
}

func (b *Batch) Schema() *Schema { return b.schema }

func (b *Batch) Len() int { return len(b.instances) }

func (b *Batch) Instance(i int) Instance { return b.instances[i] }

// Add appends an instance after checking its width and discrete state ranges.
func (b *Batch) Add(inst Instance) error {
	if len(inst) != b.schema.Len() {
		return fmt.Errorf("instance has %d values, schema has %d attributes", len(inst), b.schema.Len())
	}
	for i, v := range inst {
		if IsMissing(v) {
			continue
		}
		a := b.schema.Attribute(i)
		if a.Kind == Discrete {
			state := int(v)
			if float64(state) != v || state < 0 || state >= a.States {
				return fmt.Errorf("value %v out of range for %q (%d states)", v, a.Name, a.States)
			}
		}
	}
	b.instances = append(b.instances, inst)
	return nil
}

// Shuffle permutes the instance order in place using the supplied RNG. The
// caller owns the RNG; its draw sequence is part of the reproducibility
// contract, so the same RNG instance is reused across batches.
func (b *Batch) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(b.instances), func(i, j int) {
		b.instances[i], b.instances[j] = b.instances[j], b.instances[i]
	})
}

// Split partitions the batch at limit = floor(len*ratio) into
// train = [0, limit) and test = [limit+1, len). The instance at the boundary
// index belongs to neither partition; that gap is part of the observed
// protocol and must not be closed.
func (b *Batch) Split(ratio float64) (train, test *Batch, err error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, errors.New("split ratio must be in (0, 1)")
	}
	n := len(b.instances)
	limit := int(float64(n) * ratio)
	train = &Batch{schema: b.schema, instances: b.instances[0:limit]}
	test = &Batch{schema: b.schema}
	if limit+1 < n {
		test.instances = b.instances[limit+1 : n]
	}
	return train, test, nil
}

// Windows partitions the batch into sub-batches of at most size instances,
// in order, the last one possibly short. The sub-batches are index views
// over the same backing array, not copies.
func (b *Batch) Windows(size int) ([]*Batch, error) {
	if size < 1 {
		return nil, errors.New("window size must be at least 1")
	}
	var out []*Batch
	for lo := 0; lo < len(b.instances); lo += size {
		hi := lo + size
		if hi > len(b.instances) {
			hi = len(b.instances)
		}
		out = append(out, &Batch{schema: b.schema, instances: b.instances[lo:hi]})
	}
	return out, nil
}

// FirstWindow returns the leading sub-batch of at most size instances, or an
// empty batch when there are none.
func (b *Batch) FirstWindow(size int) (*Batch, error) {
	if size < 1 {
		return nil, errors.New("window size must be at least 1")
	}
	hi := size
	if hi > len(b.instances) {
		hi = len(b.instances)
	}
	return &Batch{schema: b.schema, instances: b.instances[0:hi]}, nil
}

// clone copies the instance slice so reordering one batch cannot reorder the
// other. Instance values themselves are never mutated by this package.
func (b *Batch) clone() *Batch {
	instances := make([]Instance, len(b.instances))
	copy(instances, b.instances)
	return &Batch{schema: b.schema, instances: instances}
}
