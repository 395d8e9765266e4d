package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// BridgeConfig is the subset of bridge settings the controller needs.
type BridgeConfig struct {
	URL        string
	User       string
	Group      int
	Lights     []int
	Brightness int
	Transition int // deciseconds
}

// MaxPulses is the number of pulses allowed in flight at once.
const MaxPulses = 4

// Bridge drives colour bulbs through a Hue-style REST bridge. Pulses are
// fire-and-forget: each one runs on its own goroutine and only logs failures.
type Bridge struct {
	cfg     BridgeConfig
	baseURL string
	http    *http.Client

	// CloseTimeout bounds how long Close waits for in-flight pulses.
	CloseTimeout time.Duration

	pulses chan struct{} // one token per in-flight pulse

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type groupAction struct {
	On     *bool  `json:"on,omitempty"`
	Effect string `json:"effect,omitempty"`
	Bri    *int   `json:"bri,omitempty"`
}

type lightState struct {
	Sat            *int `json:"sat,omitempty"`
	Bri            int  `json:"bri"`
	TransitionTime int  `json:"transitiontime"`
}

type bridgeResult struct {
	Error *struct {
		Type        int    `json:"type"`
		Address     string `json:"address"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewBridge creates a bridge controller. It does not contact the bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:          cfg,
		baseURL:      strings.TrimRight(cfg.URL, "/") + "/api/" + cfg.User,
		http:         &http.Client{Timeout: 5 * time.Second},
		CloseTimeout: 3 * time.Second,
		pulses:       make(chan struct{}, MaxPulses),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start puts the group into a colour loop at the configured brightness.
func (b *Bridge) Start(ctx context.Context) error {
	on, bri := true, b.cfg.Brightness
	if err := b.put(ctx, fmt.Sprintf("/groups/%d/action", b.cfg.Group), groupAction{On: &on, Effect: "colorloop", Bri: &bri}); err != nil {
		return fmt.Errorf("start bridge group %d: %w", b.cfg.Group, err)
	}
	log.WithFields(log.Fields{
		"component": "bridge",
		"group":     b.cfg.Group,
		"lights":    len(b.cfg.Lights),
	}).Info("Bridge group started")
	return nil
}

func (b *Bridge) Name() string { return "bridge" }

// Drive pulses one light when the beat score is positive. The light is picked
// with a generator rebuilt from the decision's snapshot. Beats arriving while
// MaxPulses pulses are still running are skipped.
func (b *Bridge) Drive(_ context.Context, u Update) error {
	if u.Decision.Beat <= 0 || len(b.cfg.Lights) == 0 {
		return nil
	}
	rng, err := u.Decision.Snapshot.Rand()
	if err != nil {
		return fmt.Errorf("bridge pick: %w", err)
	}
	light := b.cfg.Lights[rng.IntN(len(b.cfg.Lights))]

	select {
	case b.pulses <- struct{}{}:
	default:
		log.WithFields(log.Fields{
			"component": "bridge",
			"light":     light,
			"tick":      u.Tick,
		}).Debug("Pulse skipped, bridge busy")
		return nil
	}

	b.wg.Add(1)
	go func() {
		defer func() {
			<-b.pulses
			b.wg.Done()
		}()
		if err := b.Pulse(b.ctx, light); err != nil {
			log.WithFields(log.Fields{
				"component": "bridge",
				"light":     light,
				"tick":      u.Tick,
			}).WithError(err).Warn("Pulse failed")
		}
	}()
	return nil
}

// Pulse flashes a light to full saturation and brightness, then lets it fall
// back to the group brightness once the transition has run.
func (b *Bridge) Pulse(ctx context.Context, light int) error {
	path := fmt.Sprintf("/lights/%d/state", light)
	sat := 254
	if err := b.put(ctx, path, lightState{Sat: &sat, Bri: 254, TransitionTime: b.cfg.Transition}); err != nil {
		return fmt.Errorf("ramp up: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(b.cfg.Transition) * 100 * time.Millisecond):
	}
	if err := b.put(ctx, path, lightState{Bri: b.cfg.Brightness, TransitionTime: b.cfg.Transition}); err != nil {
		return fmt.Errorf("ramp down: %w", err)
	}
	return nil
}

// Close waits for in-flight pulses, abandons any still running after
// CloseTimeout, and stops the group's colour loop.
func (b *Bridge) Close() error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(b.CloseTimeout):
		log.WithField("component", "bridge").Warn("Abandoning in-flight pulses")
	}
	b.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.put(ctx, fmt.Sprintf("/groups/%d/action", b.cfg.Group), groupAction{Effect: "none"}); err != nil {
		return fmt.Errorf("reset bridge group %d: %w", b.cfg.Group, err)
	}
	return nil
}

func (b *Bridge) put(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("put %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	// The bridge answers 200 with a per-attribute result list.
	var results []bridgeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("put %s: bridge error %d at %s: %s", path, r.Error.Type, r.Error.Address, r.Error.Description)
		}
	}
	return nil
}
