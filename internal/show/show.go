// Package show wires the signal chain, the decision logic and the output
// drivers into the lightshow's stage graph.
//
//	0 source     frame from the capture source
//	1 spectrum   {0}
//	2 bucketize  {1}
//	3 trend      {2}
//	4 normalize  {3}
//	5 threshold  {4}
//	6 colorize   {5, 7}  7 is last tick's output feedback
//	7 output     {5, 6}
package show

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tep-xi/lightshow/internal/audio"
	"github.com/tep-xi/lightshow/internal/colorize"
	"github.com/tep-xi/lightshow/internal/config"
	"github.com/tep-xi/lightshow/internal/dsp"
	"github.com/tep-xi/lightshow/internal/fixture"
	"github.com/tep-xi/lightshow/internal/graph"
	"github.com/tep-xi/lightshow/internal/stream"
)

// Stage indices.
const (
	Source = iota
	Spectrum
	Bucketize
	Trend
	Normalize
	Threshold
	Colorize
	Output
)

// FrameSource yields one frame per call. *audio.Framer implements it.
type FrameSource interface {
	Next(ctx context.Context) (audio.Frame, error)
}

// Show is a built lightshow graph.
type Show struct {
	graph *graph.Graph
	relay config.RelayConfig
}

// New builds the graph from cfg. The sinks are driven in order every tick
// once a decision exists; closing them is the caller's job.
func New(cfg config.Config, frames FrameSource, c *colorize.Colorizer, sinks []fixture.Sink) (*Show, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	size := cfg.FrameSize()
	specs := make([][]dsp.Band, len(cfg.Buckets))
	for i, bucket := range cfg.Buckets {
		for _, b := range bucket {
			specs[i] = append(specs[i], dsp.Band{Lo: b.Lo, Hi: b.Hi, Weight: b.Weight})
		}
	}
	channels := len(specs)

	g, err := graph.New([]graph.Node{
		{Name: "source", Stage: &sourceStage{frames: frames, size: size}},
		{Name: "spectrum", Stage: &spectrumStage{fft: dsp.NewSpectrum(size)}, Edges: []int{Source}},
		{Name: "bucketize", Stage: &bucketStage{b: dsp.NewBucketizer(specs)}, Edges: []int{Spectrum}},
		{Name: "trend", Stage: &trendStage{window: cfg.TrendWindow, degree: cfg.TrendDegree, channels: channels}, Edges: []int{Bucketize}},
		{Name: "normalize", Stage: &normalizeStage{window: cfg.NormWindow, channels: channels}, Edges: []int{Trend}},
		{Name: "threshold", Stage: &thresholdStage{th: dsp.NewThresholder(cfg.Thresholds)}, Edges: []int{Normalize}},
		{Name: "colorize", Stage: &colorizeStage{c: c}, Edges: []int{Threshold, Output}},
		{Name: "output", Stage: &outputStage{sinks: sinks}, Edges: []int{Threshold, Colorize}},
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"component":     "show",
		"frame_size":    size,
		"tick":          cfg.TickDuration(),
		"channels":      channels,
		"priming_ticks": cfg.TrendWindow - 1,
		"feedback":      fmt.Sprint(g.Feedback()),
		"sinks":         len(sinks),
	}).Info("Show graph built")
	return &Show{graph: g, relay: cfg.Relay}, nil
}

// Graph returns the stage graph for an engine to run.
func (s *Show) Graph() *graph.Graph { return s.graph }

// Snapshot summarizes a tick's value vector for observers.
func (s *Show) Snapshot(tick uint64, values []graph.Value) stream.Snapshot {
	snap := stream.Snapshot{Tick: tick, Time: time.Now()}
	activity, _ := values[Threshold].([]float64)
	snap.Activity = append([]float64(nil), activity...)

	d, ok := values[Colorize].(colorize.Decision)
	if !ok {
		return snap
	}
	snap.Primed = true
	snap.Beat, snap.Flair, snap.Reseeded = d.Beat, d.Flair, d.Reseeded
	for _, st := range d.Permutation {
		snap.Permutation = append(snap.Permutation, st.String())
	}
	if s.relay.Enabled {
		snap.Relay = fixture.EncodeRelay(fixture.LitChannels(s.relay.Groups, s.relay.Constant, d.Permutation, activity, tick))
	}
	return snap
}

// Watch returns a graph.TickFunc that forwards snapshots to ch, dropping
// them when ch is full so observers never stall the engine.
func (s *Show) Watch(ch chan<- stream.Snapshot) graph.TickFunc {
	return func(tick uint64, values []graph.Value) {
		select {
		case ch <- s.Snapshot(tick, values):
		default:
		}
	}
}
