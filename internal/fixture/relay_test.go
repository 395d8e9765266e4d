package fixture

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tep-xi/lightshow/internal/colorize"
)

// fakePort records writes and can be told to accept fewer bytes.
type fakePort struct {
	bytes.Buffer
	frames [][]byte
	limit  int // max bytes accepted per write, 0 = all
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	n := len(b)
	if p.limit > 0 && n > p.limit {
		n = p.limit
	}
	p.frames = append(p.frames, append([]byte(nil), b[:n]...))
	return p.Buffer.Write(b[:n])
}

func (p *fakePort) Close() error { p.closed = true; return nil }

// zeroReader feeds a deterministic seed to the colorizer.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i)
	}
	return len(p), nil
}

func testDecision(t *testing.T, perm colorize.Permutation, beat float64) colorize.Decision {
	t.Helper()
	c, err := colorize.New(zeroReader{})
	if err != nil {
		t.Fatal(err)
	}
	d, err := c.Step([]float64{-1, -1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	d.Permutation = perm
	d.Beat = beat
	return d
}

func TestEncodeRelay(t *testing.T) {
	tests := []struct {
		name     string
		channels []int
		want     [4]byte
	}{
		{"none", nil, [4]byte{}},
		{"first last", []int{0, 1, 31}, [4]byte{0xC0, 0x00, 0x00, 0x01}},
		{"byte boundaries", []int{7, 8, 15, 16}, [4]byte{0x01, 0x81, 0x80, 0x00}},
		{"duplicates", []int{3, 3, 3}, [4]byte{0x10, 0, 0, 0}},
		{"too large", []int{0, 1, 32}, [4]byte{}},
		{"negative", []int{-1, 5}, [4]byte{}},
		{"invalid before valid", []int{40, 0, 1, 31}, [4]byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeRelay(tt.channels); got != tt.want {
				t.Errorf("EncodeRelay(%v) = % x, want % x", tt.channels, got, tt.want)
			}
		})
	}
}

func TestLitChannels(t *testing.T) {
	groups := [][]int{{1, 2}, {3}, {4}, {5}}
	perm := colorize.Permutation{colorize.Off, colorize.Steady, colorize.Flicker, colorize.Off}

	tests := []struct {
		name     string
		activity []float64
		tick     uint64
		want     []int
	}{
		{"silent", []float64{-1, -1, -1, -1}, 2, []int{29}},
		{"off group ignores activity", []float64{5, -1, -1, 5}, 2, []int{29}},
		{"steady follows activity", []float64{-1, 0.1, -1, -1}, 3, []int{29, 3}},
		{"flicker on even tick", []float64{-1, 1, 1, -1}, 4, []int{29, 3, 4}},
		{"flicker off on odd tick", []float64{-1, 1, 1, -1}, 5, []int{29, 3}},
		{"missing activity", nil, 0, []int{29}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LitChannels(groups, []int{29}, perm, tt.activity, tt.tick)
			if !equalInts(got, tt.want) {
				t.Errorf("LitChannels = %v, want %v", got, tt.want)
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRelayDriverWritesFrames(t *testing.T) {
	port := &fakePort{}
	r := NewRelayDriver(port, [][]int{{0}, {1}, {8}, {31}}, []int{29})

	d := testDecision(t, colorize.Permutation{colorize.Steady, colorize.Off, colorize.Off, colorize.Flicker}, 1)
	if err := r.Drive(context.Background(), Update{Tick: 2, Decision: d, Activity: []float64{1, 1, 1, 1}}); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	want := EncodeRelay([]int{29, 0, 31})
	if r.Last() != want {
		t.Errorf("Last = % x, want % x", r.Last(), want)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	last := port.frames[len(port.frames)-1]
	if !bytes.Equal(last, []byte{0, 0, 0, 0}) {
		t.Errorf("final frame = % x, want all zero", last)
	}
}

func TestRelayShortWriteIsFatal(t *testing.T) {
	port := &fakePort{limit: 3}
	r := NewRelayDriver(port, nil, []int{0})
	err := r.Drive(context.Background(), Update{Decision: testDecision(t, colorize.Permutation{}, 0)})
	if !errors.Is(err, ErrShortWrite) {
		t.Errorf("Drive error = %v, want ErrShortWrite", err)
	}
}
