// Package graph runs an ordered set of stages as a cyclic dataflow graph.
//
// Stages are addressed by declaration index. Each tick evaluates them in
// index order over a shared value vector that is overwritten in place, so an
// edge to a lower index reads the value computed earlier in the same tick and
// an edge to the same or a higher index reads the previous tick's value.
// Every cycle therefore crosses at least one one-tick delay.
package graph

import (
	"context"
	"fmt"
)

// Value is a stage output. A nil Value means undefined: the stage has not
// produced anything yet, or chose not to emit this tick.
type Value = any

// Stage is one node of the graph. Step receives the current values of the
// stage's edges, in edge order; the slice is reused between ticks.
type Stage interface {
	Step(ctx context.Context, inputs []Value) (Value, error)
}

// Primer is implemented by stages that initialize internal buffers before the
// first tick.
type Primer interface {
	Prime() error
}

// StageFunc adapts a function to a Stage.
type StageFunc func(ctx context.Context, inputs []Value) (Value, error)

func (f StageFunc) Step(ctx context.Context, inputs []Value) (Value, error) {
	return f(ctx, inputs)
}

// Node declares one stage and the indices it reads from.
type Node struct {
	Name  string
	Stage Stage
	Edges []int
}

// Graph is a validated, immutable node list.
type Graph struct {
	nodes []Node
}

// New validates nodes and returns a Graph. Any edge index must name an
// existing node; cycles and self-edges are allowed.
func New(nodes []Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, invalidf("no stages")
	}
	seen := make(map[string]int, len(nodes))
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		if n.Stage == nil {
			return nil, invalidf("stage %d (%s) is nil", i, n.Name)
		}
		if n.Name == "" {
			n.Name = fmt.Sprintf("stage%d", i)
		}
		if prev, dup := seen[n.Name]; dup {
			return nil, invalidf("stages %d and %d are both named %q", prev, i, n.Name)
		}
		seen[n.Name] = i
		for _, j := range n.Edges {
			if j < 0 || j >= len(nodes) {
				return nil, invalidf("stage %d (%s) has edge to %d, want 0..%d", i, n.Name, j, len(nodes)-1)
			}
		}
		n.Edges = append([]int(nil), n.Edges...)
		out[i] = n
	}
	return &Graph{nodes: out}, nil
}

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.nodes) }

// Name returns the name of stage i.
func (g *Graph) Name(i int) string { return g.nodes[i].Name }

// Feedback returns the edges resolved from the previous tick, as
// [consumer, producer] pairs.
func (g *Graph) Feedback() [][2]int {
	var out [][2]int
	for i, n := range g.nodes {
		for _, j := range n.Edges {
			if j >= i {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}
