package monitor

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tep-xi/lightshow/internal/stream"
)

func TestUpdateCountsSnapshots(t *testing.T) {
	b := stream.NewBroadcaster()
	l := b.Subscribe()
	m := NewModel(l)

	msgs := []SnapshotMsg{
		{Tick: 1},
		{Tick: 12, Primed: true, Beat: 0.5, Flair: -1},
		{Tick: 13, Primed: true, Beat: -0.2, Flair: 2, Reseeded: true},
	}
	var model tea.Model = m
	var cmd tea.Cmd
	for _, msg := range msgs {
		model, cmd = model.Update(msg)
		if cmd == nil {
			t.Fatalf("tick %d: expected a command waiting for the next snapshot", msg.Tick)
		}
	}

	got := model.(Model)
	if got.Ticks != 3 || got.Beats != 1 || got.Reseeds != 1 {
		t.Errorf("ticks=%d beats=%d reseeds=%d, want 3 1 1", got.Ticks, got.Beats, got.Reseeds)
	}
	if got.Last.Tick != 13 {
		t.Errorf("last tick = %d, want 13", got.Last.Tick)
	}
}

func TestWaitForSnapshot(t *testing.T) {
	b := stream.NewBroadcaster()
	l := b.Subscribe()
	l.C <- stream.Snapshot{Tick: 7}

	msg := waitForSnapshot(l)()
	if s, ok := msg.(SnapshotMsg); !ok || s.Tick != 7 {
		t.Fatalf("msg = %#v, want SnapshotMsg for tick 7", msg)
	}

	b.Unsubscribe(l)
	if _, ok := waitForSnapshot(l)().(ClosedMsg); !ok {
		t.Error("an unsubscribed listener should yield ClosedMsg")
	}
}

func TestQuitKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"q", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(stream.NewBroadcaster().Subscribe())
			model, cmd := m.Update(tt.key)
			if !model.(Model).Quit {
				t.Error("Quit not set")
			}
			if cmd == nil {
				t.Fatal("expected tea.Quit")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("command did not quit")
			}
		})
	}
}

func TestClosedQuits(t *testing.T) {
	m := NewModel(stream.NewBroadcaster().Subscribe())
	model, cmd := m.Update(ClosedMsg{})
	if !model.(Model).Closed || cmd == nil {
		t.Fatal("ClosedMsg should mark the model closed and quit")
	}
	if model.(Model).Quit {
		t.Error("a closed listener is not an operator quit")
	}
}

func TestViewPriming(t *testing.T) {
	m := NewModel(stream.NewBroadcaster().Subscribe())
	m.Last = stream.Snapshot{Tick: 5}
	if v := m.View(); !strings.Contains(v, "Priming") {
		t.Errorf("view before priming:\n%s", v)
	}
}

func TestViewPrimed(t *testing.T) {
	m := NewModel(stream.NewBroadcaster().Subscribe())
	m.Last = stream.Snapshot{
		Tick:        99,
		Primed:      true,
		Activity:    []float64{1.25, -0.5, 0, 8},
		Permutation: []string{"steady", "off", "flicker", "off"},
		Relay:       [4]byte{0xC0, 0, 0, 0x01},
	}
	v := m.View()
	for _, want := range []string{"beat", "flair", "+1.25", "-0.50", "steady", "flicker", "relay"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
	if strings.Contains(v, "Priming") {
		t.Error("primed view still says priming")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		activity   float64
		wantFilled int
	}{
		{-1, 0},
		{0, 0},
		{barFullness / 2, 5},
		{barFullness * 3, 10},
	}
	for _, tt := range tests {
		bar := renderBar(tt.activity, 10)
		if got := strings.Count(bar, "█"); got != tt.wantFilled {
			t.Errorf("renderBar(%v) filled %d, want %d", tt.activity, got, tt.wantFilled)
		}
		if got := strings.Count(bar, "░"); got != 10-tt.wantFilled {
			t.Errorf("renderBar(%v) empty %d, want %d", tt.activity, got, 10-tt.wantFilled)
		}
	}
}

func TestRenderRelay(t *testing.T) {
	out := renderRelay([4]byte{0xC0, 0, 0, 0x01})
	if got := strings.Count(out, "●"); got != 3 {
		t.Errorf("lit bits = %d, want 3", got)
	}
	if got := strings.Count(out, "○"); got != 29 {
		t.Errorf("dark bits = %d, want 29", got)
	}
}
