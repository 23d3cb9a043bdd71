package model

import (
	"fmt"

	"streamvb/data"
)

// BuilderFunc constructs the DAG of one classifier family over a schema.
// topics is the latent mixture size for families that use one; the naive
// Bayes family ignores it.
type BuilderFunc func(schema *data.Schema, className string, topics int) (*DAG, error)

// The family table is a closed set; families register here rather than
// through subtyping.
var builders = map[string]BuilderFunc{
	"naive-bayes": NaiveBayesDAG,
}

// Builder resolves a family tag to its DAG builder.
func Builder(tag string) (BuilderFunc, error) {
	b, ok := builders[tag]
	if !ok {
		return nil, fmt.Errorf("unknown model family %q", tag)
	}
	return b, nil
}

// NaiveBayesDAG builds the naive Bayes structure: the class variable is
// parentless and every other variable has exactly the class as parent.
func NaiveBayesDAG(schema *data.Schema, className string, topics int) (*DAG, error) {
	if topics < 1 {
		return nil, fmt.Errorf("topic count must be at least 1, got %d", topics)
	}
	if schema.IndexOf(className) < 0 {
		return nil, fmt.Errorf("class variable %q not in schema", className)
	}
	d := NewDAG(schema)
	for _, v := range d.Variables() {
		if v.Name == className {
			continue
		}
		if err := d.AddParent(v.Name, className); err != nil {
			return nil, err
		}
	}
	return d, nil
}
