package dag

import (
	"errors"
	"reflect"
	"testing"
)

func build(t *testing.T, edges [][2]string) *DAG {
	t.Helper()
	g := New()
	for _, e := range edges {
		g.EnsureNode(e[0])
		g.EnsureNode(e[1])
		if err := g.AddEdge(Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatalf("AddEdge(%v) error: %v", e, err)
		}
	}
	return g
}

func TestEnsureNode(t *testing.T) {
	g := New()
	a := g.EnsureNode("a")
	a.Meta["version"] = "1.0"
	if again := g.EnsureNode("a"); again != a {
		t.Error("EnsureNode(a) returned a different node")
	}
	n, ok := g.Node("a")
	if !ok || n.Meta["version"] != "1.0" {
		t.Errorf("Node(a) = %+v, %v", n, ok)
	}
	if g.NodeCount() != 1 {
		t.Errorf("NodeCount() = %d, want 1", g.NodeCount())
	}
}

func TestAddEdgeUnknown(t *testing.T) {
	g := New()
	g.EnsureNode("a")
	if err := g.AddEdge(Edge{From: "x", To: "a"}); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("AddEdge() = %v, want %v", err, ErrUnknownSourceNode)
	}
	if err := g.AddEdge(Edge{From: "a", To: "x"}); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("AddEdge() = %v, want %v", err, ErrUnknownTargetNode)
	}
}

func TestParents(t *testing.T) {
	g := build(t, [][2]string{{"b", "c"}, {"a", "c"}, {"a", "b"}, {"a", "c"}})

	if got := g.Parents("c"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Parents(c) = %v, want [a b]", got)
	}
	if got := g.Parents("a"); got != nil {
		t.Errorf("Parents(a) = %v, want nil", got)
	}
	if got := len(g.Edges()); got != 3 {
		t.Errorf("len(Edges()) = %d, want 3", got)
	}
}

func TestSources(t *testing.T) {
	g := build(t, [][2]string{{"app", "lib"}, {"tool", "lib"}})
	var got []string
	for _, n := range g.Sources() {
		got = append(got, n.ID)
	}
	if !reflect.DeepEqual(got, []string{"app", "tool"}) {
		t.Errorf("Sources() = %v, want [app tool]", got)
	}
}

func TestValidate(t *testing.T) {
	if err := build(t, [][2]string{{"a", "b"}, {"b", "c"}}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	cyclic := build(t, [][2]string{{"a", "b"}, {"b", "a"}})
	if err := cyclic.Validate(); !errors.Is(err, ErrGraphHasCycle) {
		t.Errorf("Validate() = %v, want %v", err, ErrGraphHasCycle)
	}
}
