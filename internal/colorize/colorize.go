// Package colorize maps activity scores to light-state assignments.
//
// A Colorizer keeps a permutation of four state slots {steady, flicker, off, off}
// over four outputs and a pseudo-random generator. A positive beat reshuffles
// the permutation; a rising flair reseeds the generator. Every decision carries
// a snapshot of the generator state, so a downstream consumer can rebuild the
// generator and make the same random choice without sharing the live instance.
package colorize

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	mrand "math/rand/v2"
)

// LightState is the per-output state for one tick.
type LightState uint8

const (
	Off LightState = iota
	Flicker
	Steady
)

func (s LightState) String() string {
	switch s {
	case Off:
		return "off"
	case Flicker:
		return "flicker"
	case Steady:
		return "steady"
	default:
		return fmt.Sprintf("LightState(%d)", uint8(s))
	}
}

// Slots is the number of outputs a Permutation assigns.
const Slots = 4

// Permutation assigns a LightState to each output position.
type Permutation [Slots]LightState

// baseSlots is the multiset every permutation is drawn from: bright, faded, off, off.
var baseSlots = Permutation{Steady, Flicker, Off, Off}

const algorithmChaCha8 = "chacha8"

// ErrNoSnapshot is returned when a snapshot carries no generator state.
var ErrNoSnapshot = errors.New("no rng snapshot")

// RNGSnapshot is a copyable capture of generator state.
type RNGSnapshot struct {
	Algorithm string
	State     []byte
}

// Rand rebuilds an independent generator positioned at the captured state.
func (s RNGSnapshot) Rand() (*mrand.Rand, error) {
	if s.Algorithm == "" {
		return nil, ErrNoSnapshot
	}
	if s.Algorithm != algorithmChaCha8 {
		return nil, fmt.Errorf("unsupported rng algorithm %q", s.Algorithm)
	}
	var src mrand.ChaCha8
	if err := src.UnmarshalBinary(s.State); err != nil {
		return nil, fmt.Errorf("restore rng state: %w", err)
	}
	return mrand.New(&src), nil
}

// Feedback is what the output stage reports back about the previous tick.
type Feedback struct {
	Flair bool // flair was above baseline when the outputs were last driven
}

// Decision is the colorizer's output for one tick.
type Decision struct {
	Permutation Permutation
	Snapshot    RNGSnapshot
	Beat        float64
	Flair       float64
	Resampled   bool
	Reseeded    bool
}

// Colorizer is the stateful decision logic. It is not safe for concurrent use.
type Colorizer struct {
	entropy  io.Reader
	src      *mrand.ChaCha8
	rng      *mrand.Rand
	perm     Permutation
	snapshot RNGSnapshot
}

// New seeds a Colorizer from entropy and draws an initial permutation.
// A nil entropy uses crypto/rand.
func New(entropy io.Reader) (*Colorizer, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	c := &Colorizer{entropy: entropy, perm: baseSlots}
	if err := c.reseed(); err != nil {
		return nil, err
	}
	c.perm = c.shuffled()
	return c, nil
}

// Permutation returns the current assignment.
func (c *Colorizer) Permutation() Permutation {
	return c.perm
}

// Step applies one tick of activity. activity[0] is the beat score and
// activity[1] the flair score. fb is the previous tick's output feedback,
// nil while it is still undefined.
func (c *Colorizer) Step(activity []float64, fb *Feedback) (Decision, error) {
	if len(activity) < 2 {
		return Decision{}, fmt.Errorf("colorize needs 2 activity scores, got %d", len(activity))
	}
	beat, flair := activity[0], activity[1]
	d := Decision{Beat: beat, Flair: flair}

	if beat > 0 {
		c.perm = c.shuffled()
		d.Resampled = true
	}
	// reseed on the rising edge only: the outputs already acted on a positive flair last tick
	if flair > 0 && (fb == nil || !fb.Flair) {
		if err := c.reseed(); err != nil {
			return Decision{}, err
		}
		d.Reseeded = true
	}

	d.Permutation = c.perm
	d.Snapshot = RNGSnapshot{Algorithm: c.snapshot.Algorithm, State: append([]byte(nil), c.snapshot.State...)}
	return d, nil
}

// shuffled draws a new arrangement of baseSlots that differs from the current one.
func (c *Colorizer) shuffled() Permutation {
	for {
		p := baseSlots
		c.rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		if p != c.perm {
			return p
		}
	}
}

func (c *Colorizer) reseed() error {
	var seed [32]byte
	if _, err := io.ReadFull(c.entropy, seed[:]); err != nil {
		return fmt.Errorf("read entropy: %w", err)
	}
	c.src = mrand.NewChaCha8(seed)
	c.rng = mrand.New(c.src)

	state, err := c.src.MarshalBinary()
	if err != nil {
		return fmt.Errorf("capture rng state: %w", err)
	}
	c.snapshot = RNGSnapshot{Algorithm: algorithmChaCha8, State: state}
	return nil
}
