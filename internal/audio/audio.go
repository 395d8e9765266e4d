// Package audio delivers fixed-size mono frames from a capture source.
package audio

import (
	"context"
	"errors"
	"fmt"
)

// ErrFrameSize reports a frame whose length does not match the configured size.
var ErrFrameSize = errors.New("frame size mismatch")

// Frame is one tick's worth of mono signed 16-bit samples. Treat it as immutable.
type Frame []int16

// Source delivers captured samples. ReadPeriod may fill less than len(buf);
// the Framer keeps reading until a frame is complete.
type Source interface {
	ReadPeriod(ctx context.Context, buf []int16) (int, error)
	Close() error
}

// Framer assembles frames of a fixed size from a Source.
type Framer struct {
	src  Source
	size int
}

// NewFramer creates a Framer producing frames of size samples.
func NewFramer(src Source, size int) *Framer {
	if size <= 0 {
		panic("audio: frame size must be > 0")
	}
	return &Framer{src: src, size: size}
}

// Size returns the frame length in samples.
func (f *Framer) Size() int {
	return f.size
}

// Next blocks until a full frame has been read. Short reads are not errors.
func (f *Framer) Next(ctx context.Context) (Frame, error) {
	frame := make(Frame, f.size)
	filled := 0
	for filled < f.size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := f.src.ReadPeriod(ctx, frame[filled:])
		filled += n
		if err != nil {
			return nil, fmt.Errorf("read period (%d/%d samples): %w", filled, f.size, err)
		}
	}
	return frame, nil
}

// CheckFrame returns ErrFrameSize unless len(frame) == size.
func CheckFrame(frame Frame, size int) error {
	if len(frame) != size {
		return fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(frame), size)
	}
	return nil
}
