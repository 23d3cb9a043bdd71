package model

import (
	"fmt"
	"strings"

	"streamvb/data"
)

// Variable is a model node derived from a schema attribute. Variables are
// value-equal by name within one schema.
type Variable struct {
	Name   string
	Kind   data.Kind
	States int
}

func (v Variable) IsDiscrete() bool { return v.Kind == data.Discrete }

// DAG maps every variable in scope to its ordered parent set.
type DAG struct {
	vars    []Variable
	index   map[string]int
	parents map[string][]Variable
}

// NewDAG derives one variable per schema attribute, all initially parentless.
func NewDAG(schema *data.Schema) *DAG {
	d := &DAG{
		index:   make(map[string]int, schema.Len()),
		parents: make(map[string][]Variable, schema.Len()),
	}
	for i := 0; i < schema.Len(); i++ {
		a := schema.Attribute(i)
		d.vars = append(d.vars, Variable{Name: a.Name, Kind: a.Kind, States: a.States})
		d.index[a.Name] = i
	}
	return d
}

func (d *DAG) Variables() []Variable { return d.vars }

// Variable looks a node up by name.
func (d *DAG) Variable(name string) (Variable, bool) {
	i, ok := d.index[name]
	if !ok {
		return Variable{}, false
	}
	return d.vars[i], true
}

// Parents returns the ordered parent set of the named variable.
func (d *DAG) Parents(name string) []Variable {
	return d.parents[name]
}

// AddParent appends parent to child's parent set. Self-parenting is refused
// here; acyclicity is a whole-graph invariant owned by the builders.
func (d *DAG) AddParent(child, parent string) error {
	if child == parent {
		return fmt.Errorf("variable %q cannot be its own parent", child)
	}
	if _, ok := d.index[child]; !ok {
		return fmt.Errorf("unknown variable %q", child)
	}
	p, ok := d.Variable(parent)
	if !ok {
		return fmt.Errorf("unknown variable %q", parent)
	}
	for _, existing := range d.parents[child] {
		if existing.Name == parent {
			return fmt.Errorf("%q is already a parent of %q", parent, child)
		}
	}
	d.parents[child] = append(d.parents[child], p)
	return nil
}

func (d *DAG) String() string {
	var b strings.Builder
	for _, v := range d.vars {
		b.WriteString(v.Name)
		b.WriteString(" <- {")
		for i, p := range d.parents[v.Name] {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
		}
		b.WriteString("}\n")
	}
	return b.String()
}
