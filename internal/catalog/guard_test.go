package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWouldCreateCycle(t *testing.T) {
	a := newAdjacency("a", "b", "c", "d")
	a.AddEdge("b", "a") // b requires a
	a.AddEdge("c", "b") // c requires b

	tests := []struct {
		name      string
		from      string
		candidate string
		want      bool
	}{
		{name: "self edge", from: "a", candidate: "a", want: true},
		{name: "direct back edge", from: "a", candidate: "b", want: true},
		{name: "transitive back edge", from: "a", candidate: "c", want: true},
		{name: "forward edge", from: "c", candidate: "a", want: false},
		{name: "unrelated course", from: "d", candidate: "c", want: false},
		{name: "unknown source", from: "ghost", candidate: "a", want: false},
		{name: "unknown candidate", from: "a", candidate: "ghost", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WouldCreateCycle(a, tc.from, tc.candidate))
		})
	}
}

func TestWouldCreateCycleSelfEdgeOnEmptyGraph(t *testing.T) {
	assert.True(t, WouldCreateCycle(NewAdjacency(), "x", "x"))
	assert.False(t, WouldCreateCycle(nil, "x", "y"))
}

func TestWouldCreateCycleTerminatesOnCyclicInput(t *testing.T) {
	es := NewEdgeSet([]string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})
	assert.False(t, WouldCreateCycle(es, "d", "a"))
	assert.True(t, WouldCreateCycle(es, "c", "b"))
}

func TestRejectedEdgeLeavesGraphUnchanged(t *testing.T) {
	a := newAdjacency("a", "b")
	a.AddEdge("b", "a")

	if !WouldCreateCycle(a, "a", "b") {
		t.Fatal("expected cycle")
	}
	assert.Empty(t, a.Prerequisites("a"))
	assert.Equal(t, []string{"b"}, a.Dependents("a"))
}
