package audio

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// --- Conversion ---

func TestToInt16Clipping(t *testing.T) {
	tests := []struct {
		input float64
		want  int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-2, -32768},
		{0.5, 16383},
	}
	for _, tt := range tests {
		if got := ToInt16(tt.input); got != tt.want {
			t.Errorf("ToInt16(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestDownmixInto(t *testing.T) {
	src := [][2]float64{{1, 1}, {1, -1}, {-0.5, -0.5}}
	dst := make([]int16, 2)
	if n := DownmixInto(dst, src); n != 2 {
		t.Fatalf("DownmixInto wrote %d, want 2", n)
	}
	if dst[0] != 32767 || dst[1] != 0 {
		t.Errorf("DownmixInto = %v, want [32767 0]", dst)
	}
}

// --- Framer ---

// trickleSource returns at most step samples per read, counting up from 1.
type trickleSource struct {
	step  int
	next  int16
	limit int
	reads int
}

func (s *trickleSource) ReadPeriod(_ context.Context, buf []int16) (int, error) {
	s.reads++
	if s.limit > 0 && int(s.next) >= s.limit {
		return 0, io.EOF
	}
	n := min(s.step, len(buf))
	for i := 0; i < n; i++ {
		s.next++
		buf[i] = s.next
	}
	return n, nil
}

func (s *trickleSource) Close() error { return nil }

func TestFramerAccumulatesShortReads(t *testing.T) {
	src := &trickleSource{step: 3}
	f := NewFramer(src, 10)

	frame, err := f.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(frame) != 10 {
		t.Fatalf("len(frame) = %d, want 10", len(frame))
	}
	for i, v := range frame {
		if v != int16(i+1) {
			t.Errorf("frame[%d] = %d, want %d", i, v, i+1)
		}
	}
	if src.reads != 4 {
		t.Errorf("reads = %d, want 4 (3+3+3+1)", src.reads)
	}

	frame, err = f.Next(context.Background())
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if frame[0] != 11 {
		t.Errorf("second frame starts at %d, want 11", frame[0])
	}
}

func TestFramerPropagatesError(t *testing.T) {
	src := &trickleSource{step: 4, limit: 6}
	f := NewFramer(src, 10)
	_, err := f.Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Errorf("Next error = %v, want wrapped io.EOF", err)
	}
}

func TestFramerHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFramer(&trickleSource{step: 1}, 10)
	if _, err := f.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next error = %v, want context.Canceled", err)
	}
}

func TestCheckFrame(t *testing.T) {
	if err := CheckFrame(make(Frame, 8), 8); err != nil {
		t.Errorf("CheckFrame matching size: %v", err)
	}
	if err := CheckFrame(make(Frame, 7), 8); !errors.Is(err, ErrFrameSize) {
		t.Errorf("CheckFrame mismatch = %v, want ErrFrameSize", err)
	}
}

// --- PushSource ---

func TestPushSourceFeedsFramer(t *testing.T) {
	p := NewPushSource(8)
	p.Push([]int16{1, 2, 3})
	p.Push([]int16{4, 5})
	p.Push([]int16{6, 7, 8, 9})

	f := NewFramer(p, 6)
	frame, err := f.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i, v := range frame {
		if v != int16(i+1) {
			t.Errorf("frame[%d] = %d, want %d", i, v, i+1)
		}
	}

	// leftovers of the last chunk carry into the next frame
	buf := make([]int16, 6)
	n, err := p.ReadPeriod(context.Background(), buf)
	if err != nil || n != 3 || buf[0] != 7 {
		t.Errorf("ReadPeriod = (%d, %v) first=%d, want (3, nil) first=7", n, err, buf[0])
	}
}

func TestPushSourceDropsWhenFull(t *testing.T) {
	p := NewPushSource(1)
	if !p.Push([]int16{1}) {
		t.Fatal("first push should be accepted")
	}
	if p.Push([]int16{2}) {
		t.Error("push into a full source should be dropped")
	}
}

func TestPushSourceCloseUnblocks(t *testing.T) {
	p := NewPushSource(1)
	done := make(chan error, 1)
	go func() {
		_, err := p.ReadPeriod(context.Background(), make([]int16, 4))
		done <- err
	}()

	p.Close()
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("ReadPeriod after Close = %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadPeriod did not unblock after Close")
	}
	if p.Push([]int16{1}) {
		t.Error("Push after Close should be rejected")
	}
}

// --- FileSource ---

func writeTestWav(t *testing.T, rate beep.SampleRate, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	i := 0
	tone := beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if i >= samples {
			return 0, false
		}
		n := 0
		for n < len(buf) && i < samples {
			v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
			buf[n] = [2]float64{v, v}
			n++
			i++
		}
		return n, true
	})

	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, tone, format); err != nil {
		t.Fatalf("wav.Encode: %v", err)
	}
	return path
}

func TestFileSourceReplaysToEOF(t *testing.T) {
	path := writeTestWav(t, 8000, 1000)

	src, err := OpenFile(path, 8000, 170, false)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer src.Close()

	f := NewFramer(src, 170)
	frames := 0
	nonZero := false
	for {
		frame, err := f.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		for _, s := range frame {
			if s != 0 {
				nonZero = true
			}
		}
		frames++
	}
	if frames != 1000/170 {
		t.Errorf("frames = %d, want %d", frames, 1000/170)
	}
	if !nonZero {
		t.Error("decoded tone is silent")
	}
}

func TestOpenFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(path, []byte("hello"), 0o644)
	if _, err := OpenFile(path, 8000, 170, false); err == nil {
		t.Error("OpenFile should reject a .txt file")
	}
}
