package graph

import (
	"context"
	"errors"
	"testing"
)

// echo returns its first input unchanged.
type echo struct{}

func (echo) Step(_ context.Context, in []Value) (Value, error) {
	if len(in) == 0 {
		return nil, nil
	}
	return in[0], nil
}

// counter emits 1, 2, 3, ... and records what its input looked like each tick.
type counter struct {
	n      int
	seen   []Value
	primed int
}

func (c *counter) Prime() error { c.primed++; return nil }

func (c *counter) Step(_ context.Context, in []Value) (Value, error) {
	c.seen = append(c.seen, in[0])
	c.n++
	return c.n, nil
}

// recorder returns its input and keeps a copy of every value it saw.
type recorder struct {
	seen []Value
}

func (r *recorder) Step(_ context.Context, in []Value) (Value, error) {
	r.seen = append(r.seen, in[0])
	return in[0], nil
}

func TestMutualFeedbackLatency(t *testing.T) {
	src := &counter{}
	sink := &recorder{}
	g, err := New([]Node{
		{Name: "source", Stage: src, Edges: []int{2}},
		{Name: "idle", Stage: echo{}},
		{Name: "echo", Stage: sink, Edges: []int{0}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e := NewEngine(g)
	if err := e.Prime(); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := e.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d: %v", i+1, err)
		}
	}

	// node 2 sees node 0's value from the same tick
	for i, v := range sink.seen {
		if v != i+1 {
			t.Errorf("tick %d: echo saw %v, want %d", i+1, v, i+1)
		}
	}
	// node 0 sees node 2's value from the previous tick, undefined on the first
	if src.seen[0] != nil {
		t.Errorf("tick 1: source saw %v, want undefined", src.seen[0])
	}
	for i := 1; i < len(src.seen); i++ {
		if src.seen[i] != i {
			t.Errorf("tick %d: source saw %v, want %d", i+1, src.seen[i], i)
		}
	}
	if src.primed != 1 {
		t.Errorf("primed %d times, want 1", src.primed)
	}
	if e.Ticks() != 5 {
		t.Errorf("Ticks = %d, want 5", e.Ticks())
	}
}

func TestSelfEdgeIsDelayed(t *testing.T) {
	acc := StageFunc(func(_ context.Context, in []Value) (Value, error) {
		prev, _ := in[0].(int)
		return prev + 1, nil
	})
	g, err := New([]Node{{Name: "acc", Stage: acc, Edges: []int{0}}})
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(g)
	for i := 1; i <= 4; i++ {
		if err := e.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
		if got := e.Value(0); got != i {
			t.Errorf("tick %d: value = %v, want %d", i, got, i)
		}
	}
}

func TestValuesStartUndefined(t *testing.T) {
	g, _ := New([]Node{{Stage: echo{}}, {Stage: echo{}, Edges: []int{0}}})
	e := NewEngine(g)
	for i, v := range e.Values() {
		if v != nil {
			t.Errorf("values[%d] = %v before any tick, want nil", i, v)
		}
	}
	if g.Name(1) != "stage1" {
		t.Errorf("default name = %q, want stage1", g.Name(1))
	}
}

func TestFeedbackEdges(t *testing.T) {
	g, _ := New([]Node{
		{Name: "a", Stage: echo{}, Edges: []int{2}},
		{Name: "b", Stage: echo{}, Edges: []int{0, 1}},
		{Name: "c", Stage: echo{}, Edges: []int{1}},
	})
	got := g.Feedback()
	want := [][2]int{{0, 2}, {1, 1}}
	if len(got) != len(want) {
		t.Fatalf("Feedback = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Feedback[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInvalidGraphs(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
	}{
		{"empty", nil},
		{"nil stage", []Node{{Name: "a"}}},
		{"edge past end", []Node{{Name: "a", Stage: echo{}, Edges: []int{1}}}},
		{"negative edge", []Node{{Name: "a", Stage: echo{}, Edges: []int{-1}}}},
		{"duplicate name", []Node{{Name: "a", Stage: echo{}}, {Name: "a", Stage: echo{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nodes)
			if !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("New error = %v, want ErrInvalidGraph", err)
			}
			var ge *GraphError
			if !errors.As(err, &ge) || ge.Msg == "" {
				t.Errorf("expected GraphError with message, got %v", err)
			}
		})
	}
}

func TestStageErrorStopsRun(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	g, _ := New([]Node{
		{Name: "src", Stage: StageFunc(func(context.Context, []Value) (Value, error) {
			calls++
			if calls == 3 {
				return nil, boom
			}
			return calls, nil
		})},
		{Name: "after", Stage: echo{}, Edges: []int{0}},
	})
	e := NewEngine(g)

	var observed []uint64
	e.OnTick(func(tick uint64, values []Value) { observed = append(observed, tick) })

	err := e.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want boom", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Tick != 3 || se.Name != "src" {
		t.Errorf("StageError = %+v, want tick 3 stage src", se)
	}
	if len(observed) != 2 {
		t.Errorf("observed %d ticks, want 2", len(observed))
	}
	// the failed tick leaves the previous tick's values in place
	if e.Value(1) != 2 {
		t.Errorf("after = %v, want 2", e.Value(1))
	}
}

func TestRunHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	g, _ := New([]Node{{Stage: StageFunc(func(context.Context, []Value) (Value, error) {
		ticks++
		if ticks == 10 {
			cancel()
		}
		return ticks, nil
	})}})
	err := NewEngine(g).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if ticks != 10 {
		t.Errorf("ticks = %d, want 10", ticks)
	}
}

func TestPrimeError(t *testing.T) {
	g, _ := New([]Node{{Name: "bad", Stage: failingPrimer{}}})
	if err := NewEngine(g).Tick(context.Background()); err == nil {
		t.Error("Tick should surface a priming failure")
	}
}

type failingPrimer struct{ echo }

func (failingPrimer) Prime() error { return errors.New("no buffers") }
