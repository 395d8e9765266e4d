// Package fixture encodes light states for physical outputs and drives them:
// a 32-channel serial relay board, a KiNET LED panel over UDP and a
// colour-bulb bridge over HTTP.
package fixture

import (
	"context"
	"errors"

	"github.com/tep-xi/lightshow/internal/colorize"
)

// ErrShortWrite is returned when a transport accepts fewer bytes than a
// complete frame. It is not recoverable.
var ErrShortWrite = errors.New("short write")

// Update is everything an output needs for one tick.
type Update struct {
	Tick     uint64
	Decision colorize.Decision
	Activity []float64 // thresholded score per bucket
}

// Sink is an output driver. Drive is called once per tick from the engine
// goroutine; Close releases the transport after a best-effort reset.
type Sink interface {
	Name() string
	Drive(ctx context.Context, u Update) error
	Close() error
}
