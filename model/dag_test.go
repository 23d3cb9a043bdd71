package model

import (
	"testing"

	"streamvb/data"
)

func testSchema(t *testing.T) *data.Schema {
	t.Helper()
	schema, err := data.NewSchema([]data.Attribute{
		{Name: "C", Kind: data.Discrete, States: 2},
		{Name: "X1", Kind: data.Discrete, States: 3},
		{Name: "X2", Kind: data.Continuous},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return schema
}

func TestNaiveBayesDAGStructure(t *testing.T) {
	schema := testSchema(t)
	dag, err := NaiveBayesDAG(schema, "C", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dag.Parents("C")) != 0 {
		t.Fatalf("class should be parentless, got %v", dag.Parents("C"))
	}
	for _, name := range []string{"X1", "X2"} {
		parents := dag.Parents(name)
		if len(parents) != 1 || parents[0].Name != "C" {
			t.Fatalf("expected %s <- {C}, got %v", name, parents)
		}
	}
}

func TestNaiveBayesDAGAnyClassChoice(t *testing.T) {
	schema := testSchema(t)
	for _, class := range []string{"C", "X1", "X2"} {
		dag, err := NaiveBayesDAG(schema, class, 1)
		if err != nil {
			t.Fatalf("class %s: unexpected error: %v", class, err)
		}
		parentless := 0
		for _, v := range dag.Variables() {
			parents := dag.Parents(v.Name)
			if len(parents) == 0 {
				parentless++
				if v.Name != class {
					t.Fatalf("class %s: %s is parentless", class, v.Name)
				}
				continue
			}
			if len(parents) != 1 || parents[0].Name != class {
				t.Fatalf("class %s: expected %s <- {%s}, got %v", class, v.Name, class, parents)
			}
		}
		if parentless != 1 {
			t.Fatalf("class %s: expected one parentless variable, got %d", class, parentless)
		}
	}
}

func TestNaiveBayesDAGRejectsBadInput(t *testing.T) {
	schema := testSchema(t)
	if _, err := NaiveBayesDAG(schema, "nope", 1); err == nil {
		t.Fatal("expected error for unknown class")
	}
	if _, err := NaiveBayesDAG(schema, "C", 0); err == nil {
		t.Fatal("expected error for zero topics")
	}
}

func TestBuilderRegistry(t *testing.T) {
	if _, err := Builder("naive-bayes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Builder("bcc-mixture"); err == nil {
		t.Fatal("expected error for unknown family")
	}
}

func TestAddParentGuards(t *testing.T) {
	schema := testSchema(t)
	dag := NewDAG(schema)

	if err := dag.AddParent("C", "C"); err == nil {
		t.Fatal("expected error for self-parenting")
	}
	if err := dag.AddParent("X1", "C"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dag.AddParent("X1", "C"); err == nil {
		t.Fatal("expected error for duplicate parent")
	}
	if err := dag.AddParent("ghost", "C"); err == nil {
		t.Fatal("expected error for unknown child")
	}
}
