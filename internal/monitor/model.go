// Package monitor provides the Bubbletea terminal view of a running lightshow
package monitor

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tep-xi/lightshow/internal/stream"
)

// Model is the Bubbletea model for the live tick monitor
type Model struct {
	Last    stream.Snapshot
	Ticks   int // snapshots received, not the engine tick
	Beats   int
	Reseeds int

	StartTime time.Time
	Closed    bool
	Quit      bool // the operator asked to stop the show

	listener *stream.Listener

	Width  int
	Height int
}

// NewModel creates a monitor reading from l
func NewModel(l *stream.Listener) Model {
	return Model{
		listener:  l,
		StartTime: time.Now(),
	}
}

// Init starts waiting for the first snapshot
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.listener)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case SnapshotMsg:
		m.Last = stream.Snapshot(msg)
		m.Ticks++
		if msg.Primed && msg.Beat > 0 {
			m.Beats++
		}
		if msg.Reseeded {
			m.Reseeds++
		}
		return m, waitForSnapshot(m.listener)

	case ClosedMsg:
		m.Closed = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	return renderMonitor(m)
}

// waitForSnapshot creates a command that waits for the next tick
func waitForSnapshot(l *stream.Listener) tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-l.C:
			return SnapshotMsg(snap)
		case <-l.Done():
			return ClosedMsg{}
		}
	}
}
