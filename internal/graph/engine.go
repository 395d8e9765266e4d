package graph

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// TickFunc observes the value vector after a completed tick. The slice is
// owned by the engine and must not be retained.
type TickFunc func(tick uint64, values []Value)

// Engine owns a Graph and its tick value vector. Ticks run on a single
// goroutine; Values and Ticks may be called concurrently with Run.
type Engine struct {
	graph *Graph

	mu     sync.RWMutex
	values []Value
	ticks  uint64
	primed bool

	onTick []TickFunc
	inputs [][]Value
}

// NewEngine creates an engine with every value undefined.
func NewEngine(g *Graph) *Engine {
	e := &Engine{
		graph:  g,
		values: make([]Value, g.Len()),
		inputs: make([][]Value, g.Len()),
	}
	for i, n := range g.nodes {
		e.inputs[i] = make([]Value, len(n.Edges))
	}
	return e
}

// OnTick registers fn to run after every tick. Register before Run.
func (e *Engine) OnTick(fn TickFunc) {
	e.onTick = append(e.onTick, fn)
}

// Prime gives every stage one chance to initialize. It runs once; later
// calls are no-ops. Tick primes implicitly.
func (e *Engine) Prime() error {
	if e.primed {
		return nil
	}
	for i, n := range e.graph.nodes {
		p, ok := n.Stage.(Primer)
		if !ok {
			continue
		}
		if err := p.Prime(); err != nil {
			return fmt.Errorf("prime stage %d (%s): %w", i, n.Name, err)
		}
	}
	e.primed = true
	log.WithFields(log.Fields{
		"component": "graph",
		"stages":    e.graph.Len(),
	}).Debug("Graph primed")
	return nil
}

// Tick evaluates every stage once, in declaration order.
func (e *Engine) Tick(ctx context.Context) error {
	if err := e.Prime(); err != nil {
		return err
	}
	tick := e.ticks + 1
	for i, n := range e.graph.nodes {
		in := e.inputs[i]
		e.mu.RLock()
		for k, j := range n.Edges {
			in[k] = e.values[j]
		}
		e.mu.RUnlock()

		v, err := n.Stage.Step(ctx, in)
		if err != nil {
			return &StageError{Tick: tick, Index: i, Name: n.Name, Err: err}
		}

		e.mu.Lock()
		e.values[i] = v
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.ticks = tick
	e.mu.Unlock()

	for _, fn := range e.onTick {
		fn(tick, e.values)
	}
	return nil
}

// Run ticks until ctx is cancelled or a stage fails.
func (e *Engine) Run(ctx context.Context) error {
	logger := log.WithField("component", "graph")
	logger.WithField("stages", e.graph.Len()).Info("Engine started")
	for {
		if err := ctx.Err(); err != nil {
			logger.WithField("ticks", e.Ticks()).Info("Engine stopped")
			return err
		}
		if err := e.Tick(ctx); err != nil {
			logger.WithFields(log.Fields{
				"ticks": e.Ticks(),
				"error": err,
			}).Info("Engine stopped")
			return err
		}
	}
}

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ticks
}

// Values returns a copy of the value vector.
func (e *Engine) Values() []Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Value(nil), e.values...)
}

// Value returns the current value of stage i.
func (e *Engine) Value(i int) Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values[i]
}
