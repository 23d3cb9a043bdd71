package model

import (
	"fmt"
	"strings"
)

// NodeParameters is the posterior summary for one variable. Discrete nodes
// carry one probability row per parent configuration; continuous nodes carry
// per-configuration Gaussian moments.
type NodeParameters struct {
	Variable      Variable
	Probabilities [][]float64
	Means         []float64
	StdDevs       []float64
}

// BayesianNetwork is a read-only snapshot of a DAG and its current posterior
// parameters. It is rendered for progress reporting and never parsed back.
type BayesianNetwork struct {
	DAG   *DAG
	Nodes []NodeParameters
}

func (bn *BayesianNetwork) String() string {
	var b strings.Builder
	b.WriteString("Bayesian network:\n")
	for _, n := range bn.Nodes {
		fmt.Fprintf(&b, "  %s [%s", n.Variable.Name, n.Variable.Kind)
		if n.Variable.IsDiscrete() {
			fmt.Fprintf(&b, "(%d)", n.Variable.States)
		}
		b.WriteString("] <- {")
		for i, p := range bn.DAG.Parents(n.Variable.Name) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
		}
		b.WriteString("}\n")
		for i, row := range n.Probabilities {
			fmt.Fprintf(&b, "    p[%d] = %s\n", i, formatRow(row))
		}
		for i := range n.Means {
			fmt.Fprintf(&b, "    gauss[%d] = N(%.4f, %.4f)\n", i, n.Means[i], n.StdDevs[i])
		}
	}
	return b.String()
}

func formatRow(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
