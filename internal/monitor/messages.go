package monitor

import "github.com/tep-xi/lightshow/internal/stream"

// SnapshotMsg carries one tick's snapshot from the broadcaster.
type SnapshotMsg stream.Snapshot

// ClosedMsg indicates the listener was unsubscribed and no more ticks will arrive.
type ClosedMsg struct{}
