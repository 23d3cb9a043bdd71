// Package classifier defines structural classifier families: a DAG-building
// contract plus validation of existing models against the family invariant.
package classifier

import (
	"errors"
	"fmt"

	"streamvb/data"
	"streamvb/learner"
	"streamvb/model"
)

var (
	// ErrInvalidStructure marks a DAG that does not match the family
	// invariant. Never repaired, always surfaced at construction.
	ErrInvalidStructure = errors.New("invalid structure")
	// ErrInvalidConfiguration marks a schema the family cannot be built on.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// NaiveBayes is the reference structural family: one parentless discrete
// class variable, every other variable a child of exactly the class.
type NaiveBayes struct {
	schema    *data.Schema
	dag       *model.DAG
	className string
	errMsg    string
	learner   *learner.SVB
}

// New builds the family DAG over schema with the named class variable.
func New(schema *data.Schema, className string) (*NaiveBayes, error) {
	nb := &NaiveBayes{schema: schema, className: className}
	if !nb.IsValidConfiguration() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfiguration, nb.errMsg)
	}
	i := schema.IndexOf(className)
	if i < 0 {
		return nil, fmt.Errorf("%w: class variable %q not in schema", ErrInvalidConfiguration, className)
	}
	if schema.Attribute(i).Kind != data.Discrete {
		nb.errMsg = "class variable must be discrete"
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfiguration, nb.errMsg)
	}
	dag, err := model.NaiveBayesDAG(schema, className, 1)
	if err != nil {
		return nil, err
	}
	nb.dag = dag
	return nb, nil
}

// FromModel validates an already learned DAG against the family invariant
// and, on success, binds the class name to the discovered parentless
// variable.
func FromModel(schema *data.Schema, dag *model.DAG) (*NaiveBayes, error) {
	var class model.Variable
	parentless := 0
	for _, v := range dag.Variables() {
		if len(dag.Parents(v.Name)) == 0 {
			parentless++
			class = v
		}
	}
	if parentless != 1 {
		return nil, fmt.Errorf("%w: expected exactly one class variable", ErrInvalidStructure)
	}
	if !class.IsDiscrete() {
		return nil, fmt.Errorf("%w: class variable must be discrete", ErrInvalidStructure)
	}
	for _, v := range dag.Variables() {
		if v.Name == class.Name {
			continue
		}
		parents := dag.Parents(v.Name)
		if len(parents) != 1 || parents[0].Name != class.Name {
			return nil, fmt.Errorf("%w: non-naive-bayes structure", ErrInvalidStructure)
		}
	}
	return &NaiveBayes{schema: schema, dag: dag, className: class.Name}, nil
}

// IsValidConfiguration is the schema pre-flight check, distinct from DAG
// validation: the family needs at least one finite-state attribute. On
// failure the explanatory message is kept on the classifier.
func (nb *NaiveBayes) IsValidConfiguration() bool {
	if nb.schema.DiscreteCount() == 0 {
		nb.errMsg = "at least one discrete variable required"
		return false
	}
	return true
}

func (nb *NaiveBayes) DAG() *model.DAG { return nb.dag }

func (nb *NaiveBayes) ClassName() string { return nb.className }

// ErrorMessage returns the explanation recorded by the last failed check.
func (nb *NaiveBayes) ErrorMessage() string { return nb.errMsg }

func (nb *NaiveBayes) SetLearner(l *learner.SVB) { nb.learner = l }

func (nb *NaiveBayes) Learner() *learner.SVB { return nb.learner }
