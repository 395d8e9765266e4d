package audio

import (
	"context"
	"io"
	"sync"
)

// PushSource is a Source fed by a producer goroutine, such as a network ingest.
// Chunks pushed while the buffer is full are dropped rather than blocking the producer.
type PushSource struct {
	ch      chan []int16
	pending []int16

	once sync.Once
	done chan struct{}
}

// NewPushSource creates a PushSource holding up to depth chunks.
func NewPushSource(depth int) *PushSource {
	return &PushSource{
		ch:   make(chan []int16, depth),
		done: make(chan struct{}),
	}
}

// Push queues a chunk of samples. It reports false if the chunk was dropped.
func (p *PushSource) Push(samples []int16) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.ch <- samples:
		return true
	default:
		return false
	}
}

// ReadPeriod copies queued samples into buf, blocking until at least one chunk is available.
func (p *PushSource) ReadPeriod(ctx context.Context, buf []int16) (int, error) {
	if len(p.pending) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-p.done:
			return 0, io.EOF
		case chunk := <-p.ch:
			p.pending = chunk
		}
	}
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Close unblocks readers and rejects further pushes.
func (p *PushSource) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
