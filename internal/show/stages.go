package show

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tep-xi/lightshow/internal/audio"
	"github.com/tep-xi/lightshow/internal/colorize"
	"github.com/tep-xi/lightshow/internal/dsp"
	"github.com/tep-xi/lightshow/internal/fixture"
	"github.com/tep-xi/lightshow/internal/graph"
)

// Stages return nil (undefined) whenever a required input is undefined, so
// downstream stages stay quiet until the trend window has primed.

type sourceStage struct {
	frames FrameSource
	size   int
}

func (s *sourceStage) Step(ctx context.Context, _ []graph.Value) (graph.Value, error) {
	frame, err := s.frames.Next(ctx)
	if err != nil {
		return nil, err
	}
	if err := audio.CheckFrame(frame, s.size); err != nil {
		return nil, err
	}
	return frame, nil
}

type spectrumStage struct {
	fft *dsp.Spectrum
}

func (s *spectrumStage) Step(_ context.Context, in []graph.Value) (graph.Value, error) {
	frame, ok := in[0].(audio.Frame)
	if !ok {
		return nil, nil
	}
	return s.fft.Power(frame), nil
}

type bucketStage struct {
	b *dsp.Bucketizer
}

func (s *bucketStage) Step(_ context.Context, in []graph.Value) (graph.Value, error) {
	power, ok := in[0].([]float64)
	if !ok {
		return nil, nil
	}
	return s.b.Reduce(power), nil
}

type trendStage struct {
	window, degree, channels int
	tr                       *dsp.Trend
}

func (s *trendStage) Prime() error {
	tr, err := dsp.NewTrend(s.window, s.degree, s.channels)
	if err != nil {
		return err
	}
	s.tr = tr
	return nil
}

func (s *trendStage) Step(_ context.Context, in []graph.Value) (graph.Value, error) {
	levels, ok := in[0].([]float64)
	if !ok {
		return nil, nil
	}
	out, ok := s.tr.Push(levels)
	if !ok {
		return nil, nil
	}
	return out, nil
}

type normalizeStage struct {
	window, channels int
	n                *dsp.Normalizer
}

func (s *normalizeStage) Prime() error {
	s.n = dsp.NewNormalizer(s.window, s.channels)
	return nil
}

func (s *normalizeStage) Step(_ context.Context, in []graph.Value) (graph.Value, error) {
	slope, ok := in[0].([]float64)
	if !ok {
		return nil, nil
	}
	return s.n.Push(slope), nil
}

type thresholdStage struct {
	th *dsp.Thresholder
}

func (s *thresholdStage) Step(_ context.Context, in []graph.Value) (graph.Value, error) {
	z, ok := in[0].([]float64)
	if !ok {
		return nil, nil
	}
	return s.th.Apply(z), nil
}

type colorizeStage struct {
	c *colorize.Colorizer
}

func (s *colorizeStage) Step(_ context.Context, in []graph.Value) (graph.Value, error) {
	activity, ok := in[0].([]float64)
	if !ok {
		return nil, nil
	}
	var fb *colorize.Feedback
	if f, ok := in[1].(colorize.Feedback); ok {
		fb = &f
	}
	return s.c.Step(activity, fb)
}

// outputStage drives every sink and feeds back whether flair was up when it did.
type outputStage struct {
	sinks []fixture.Sink
	tick  uint64 // counts every step, so it matches the engine's tick number
}

func (s *outputStage) Step(ctx context.Context, in []graph.Value) (graph.Value, error) {
	s.tick++
	activity, _ := in[0].([]float64)
	d, ok := in[1].(colorize.Decision)
	if !ok {
		return nil, nil
	}
	u := fixture.Update{Tick: s.tick, Decision: d, Activity: activity}
	for _, sink := range s.sinks {
		if err := sink.Drive(ctx, u); err != nil {
			return nil, fmt.Errorf("%s: %w", sink.Name(), err)
		}
	}
	if d.Resampled || d.Reseeded {
		log.WithFields(log.Fields{
			"component":   "show",
			"tick":        s.tick,
			"permutation": fmt.Sprint(d.Permutation),
			"beat":        d.Beat,
			"flair":       d.Flair,
			"reseeded":    d.Reseeded,
		}).Debug("Decision changed")
	}
	return colorize.Feedback{Flair: d.Flair > 0}, nil
}
