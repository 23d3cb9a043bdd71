package data

import (
	"errors"
	"fmt"
)

// Kind is the state-space kind of an attribute.
type Kind int

const (
	Discrete Kind = iota
	Continuous
)

func (k Kind) String() string {
	if k == Discrete {
		return "discrete"
	}
	return "continuous"
}

// Attribute describes one variable of a dataset. Immutable once the schema
// holding it is built.
type Attribute struct {
	Name   string
	Kind   Kind
	States int // number of categories, Discrete only
}

// Schema is the ordered attribute list shared by every batch drawn from one
// source.
type Schema struct {
	attrs []Attribute
	index map[string]int
}

func NewSchema(attrs []Attribute) (*Schema, error) {
	if len(attrs) == 0 {
		return nil, errors.New("schema needs at least one attribute")
	}
	index := make(map[string]int, len(attrs))
	for i, a := range attrs {
		if a.Name == "" {
			return nil, fmt.Errorf("attribute %d has empty name", i)
		}
		if _, dup := index[a.Name]; dup {
			return nil, fmt.Errorf("duplicate attribute name %q", a.Name)
		}
		if a.Kind == Discrete && a.States < 2 {
			return nil, fmt.Errorf("discrete attribute %q needs at least 2 states", a.Name)
		}
		index[a.Name] = i
	}
	return &Schema{attrs: attrs, index: index}, nil
}

func (s *Schema) Len() int { return len(s.attrs) }

func (s *Schema) Attribute(i int) Attribute { return s.attrs[i] }

// IndexOf returns the position of the named attribute, or -1.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// DiscreteCount reports how many attributes have a finite state space.
func (s *Schema) DiscreteCount() int {
	n := 0
	for _, a := range s.attrs {
		if a.Kind == Discrete {
			n++
		}
	}
	return n
}

// Equal reports whether two schemas describe the same attributes in the same
// order. Batches from different files must agree on this before they can feed
// one learner.
func (s *Schema) Equal(o *Schema) bool {
	if o == nil || len(s.attrs) != len(o.attrs) {
		return false
	}
	for i, a := range s.attrs {
		if a != o.attrs[i] {
			return false
		}
	}
	return true
}
