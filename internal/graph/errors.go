package graph

import (
	"errors"
	"fmt"
)

var ErrInvalidGraph = errors.New("invalid stage graph")

// GraphError wraps deterministic graph validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

// StageError reports a stage that failed during a tick.
type StageError struct {
	Tick  uint64
	Index int
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("tick %d: stage %d (%s): %v", e.Tick, e.Index, e.Name, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
