package stream

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the observable state after one engine tick.
type Snapshot struct {
	Tick        uint64    `json:"tick"`
	Time        time.Time `json:"time"`
	Primed      bool      `json:"primed"`
	Activity    []float64 `json:"activity,omitempty"`
	Permutation []string  `json:"permutation,omitempty"`
	Beat        float64   `json:"beat"`
	Flair       float64   `json:"flair"`
	Reseeded    bool      `json:"reseeded"`
	Relay       [4]byte   `json:"relay"`
}

// Broadcaster fans out tick snapshots from the engine to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	latest    Snapshot
}

// Listener receives snapshots from the broadcaster.
type Listener struct {
	C    chan Snapshot // buffered channel of tick snapshots
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener. Returns a Listener that receives snapshots.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan Snapshot, 64),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Latest returns the most recently broadcast snapshot.
func (b *Broadcaster) Latest() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// Run reads snapshots from source and fans out to all listeners.
// Slow listeners get snapshots dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-source:
			if !ok {
				return
			}
			b.publish(snap)
		}
	}
}

func (b *Broadcaster) publish(snap Snapshot) {
	b.mu.Lock()
	b.latest = snap
	b.mu.Unlock()

	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- snap:
		default:
			// listener too slow, drop snapshot to keep broadcast moving
		}
	}
	b.mu.RUnlock()
}
