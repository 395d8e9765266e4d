package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStatusHandler(t *testing.T) {
	b := NewBroadcaster()
	b.publish(Snapshot{Tick: 42, Primed: true, Permutation: []string{"steady", "off", "flicker", "off"}})

	h := NewStatusHandler(b, func() int { return 3 })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Snapshot    Snapshot `json:"snapshot"`
		IngestPeers int      `json:"ingest_peers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Snapshot.Tick != 42 || !body.Snapshot.Primed || body.Snapshot.Permutation[2] != "flicker" {
		t.Errorf("snapshot = %+v", body.Snapshot)
	}
	if body.IngestPeers != 3 {
		t.Errorf("ingest_peers = %d, want 3", body.IngestPeers)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestTicksHandlerStreamsEvents(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(NewTicksHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	// headers are flushed before subscribing; wait for the listener to register
	deadline := time.Now().Add(2 * time.Second)
	for b.ListenerCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	b.publish(Snapshot{Tick: 9, Activity: []float64{1.5}})

	sc := bufio.NewScanner(resp.Body)
	var id, data string
	for sc.Scan() {
		line := sc.Text()
		if line == "" && data != "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "id: "); ok {
			id = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
		}
	}
	if id != "9" {
		t.Errorf("event id = %q, want 9", id)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		t.Fatalf("event data %q: %v", data, err)
	}
	if snap.Tick != 9 || snap.Activity[0] != 1.5 {
		t.Errorf("event snapshot = %+v", snap)
	}
}
