package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectAccumulatesWiresOnOneEdge(t *testing.T) {
	t.Parallel()

	g := New[string]()
	g.AddNode("s1", StepKind, "first")
	g.AddNode("s2", StepKind, "second")

	require.NoError(t, g.Connect("s1", "s2", Wire{Source: "y", Destination: "z"}))
	require.NoError(t, g.Connect("s1", "s2", Wire{Source: "log", Destination: "extra"}))

	require.Equal(t, []Wire{{Source: "y", Destination: "z"}, {Source: "log", Destination: "extra"}}, g.Edge("s1", "s2"))
	require.Len(t, g.Edges(), 1)
	require.Equal(t, []string{"s2"}, g.Successors("s1"))
	require.Equal(t, []string{"s1"}, g.Predecessors("s2"))
	require.Nil(t, g.Edge("s2", "s1"))
}

func TestConnectRequiresKnownNodes(t *testing.T) {
	t.Parallel()

	g := New[int]()
	g.EnsureNode("a", InputKind)

	require.Error(t, g.Connect("a", "missing", Wire{}))
	require.Error(t, g.Connect("missing", "a", Wire{}))
}

func TestAddNodeKeepsPositionAndUpdatesValue(t *testing.T) {
	t.Parallel()

	g := New[string]()
	g.EnsureNode("s2", StepKind)
	g.AddNode("s1", StepKind, "one")
	g.AddNode("s2", StepKind, "two")

	require.Equal(t, []string{"s2", "s1"}, g.NodeIDs())
	node, ok := g.Node("s2")
	require.True(t, ok)
	require.Equal(t, "two", node.Value)
	require.Equal(t, 2, g.Len())
}

func TestNodeIDsFiltersByKind(t *testing.T) {
	t.Parallel()

	g := New[struct{}]()
	g.EnsureNode("in1", InputKind)
	g.EnsureNode("s1", StepKind)
	g.EnsureNode("out1", OutputKind)
	g.EnsureNode("in2", InputKind)

	require.Equal(t, []string{"in1", "in2"}, g.NodeIDs(InputKind))
	require.Equal(t, []string{"s1", "out1"}, g.NodeIDs(StepKind, OutputKind))
	require.True(t, g.HasNode("out1"))
	require.False(t, g.HasNode("nope"))
}

func TestCycleDetection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		edges [][2]string
		cycle []string
	}{
		{
			name:  "chain",
			edges: [][2]string{{"a", "b"}, {"b", "c"}},
		},
		{
			name:  "diamond",
			edges: [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
		},
		{
			name:  "mutual",
			edges: [][2]string{{"a", "b"}, {"b", "a"}},
			cycle: []string{"a", "b", "a"},
		},
		{
			name:  "self loop",
			edges: [][2]string{{"a", "a"}},
			cycle: []string{"a", "a"},
		},
		{
			name:  "cycle behind entry",
			edges: [][2]string{{"in", "a"}, {"a", "b"}, {"b", "c"}, {"c", "a"}},
			cycle: []string{"a", "b", "c", "a"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := New[struct{}]()
			for _, edge := range tc.edges {
				g.EnsureNode(edge[0], StepKind)
				g.EnsureNode(edge[1], StepKind)
				require.NoError(t, g.Connect(edge[0], edge[1], Wire{}))
			}

			require.Equal(t, tc.cycle, g.Cycle())
			require.Equal(t, tc.cycle == nil, g.IsAcyclic())
		})
	}
}

func TestTopologicalOrder(t *testing.T) {
	t.Parallel()

	g := New[struct{}]()
	for _, id := range []string{"s2", "in1", "s1", "final"} {
		g.EnsureNode(id, StepKind)
	}
	require.NoError(t, g.Connect("in1", "s1", Wire{Destination: "x"}))
	require.NoError(t, g.Connect("s1", "s2", Wire{Source: "y", Destination: "z"}))
	require.NoError(t, g.Connect("s2", "final", Wire{Source: "w"}))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"in1", "s1", "s2", "final"}, order)
}

func TestTopologicalOrderReportsCycle(t *testing.T) {
	t.Parallel()

	g := New[struct{}]()
	g.EnsureNode("a", StepKind)
	g.EnsureNode("b", StepKind)
	require.NoError(t, g.Connect("a", "b", Wire{}))
	require.NoError(t, g.Connect("b", "a", Wire{}))

	_, err := g.TopologicalOrder()
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Equal(t, []string{"a", "b", "a"}, cycleErr.Cycle)
	require.Equal(t, "cycle detected: a -> b -> a", err.Error())
}

func TestWarningsAreCopied(t *testing.T) {
	t.Parallel()

	g := New[struct{}]()
	g.Warn("ignoring invalid output value: %s", "s2.x")

	warnings := g.Warnings()
	require.Equal(t, []string{"ignoring invalid output value: s2.x"}, warnings)
	warnings[0] = "changed"
	require.Equal(t, "ignoring invalid output value: s2.x", g.Warnings()[0])
}

func TestWireString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "y->z", Wire{Source: "y", Destination: "z"}.String())
	require.Equal(t, "-->x", Wire{Destination: "x"}.String())
	require.Equal(t, "w->-", Wire{Source: "w"}.String())
	require.Equal(t, "output", OutputKind.String())
}
