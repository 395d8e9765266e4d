package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	log "github.com/sirupsen/logrus"
)

// PortAudioSource captures mono int16 audio from the default input device.
type PortAudioSource struct {
	stream *portaudio.Stream
	buf    []int16
}

// OpenPortAudio initializes PortAudio and starts a blocking capture stream
// with one period of periodSize samples.
func OpenPortAudio(sampleRate, periodSize int) (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	buf := make([]int16, periodSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), periodSize, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start capture stream: %w", err)
	}

	log.WithFields(log.Fields{
		"component":   "audio",
		"sample_rate": sampleRate,
		"period_size": periodSize,
	}).Info("Capture stream started")
	return &PortAudioSource{stream: stream, buf: buf}, nil
}

// ReadPeriod blocks for one device period. An input overflow loses samples
// but is not fatal; the period is still delivered.
func (p *PortAudioSource) ReadPeriod(ctx context.Context, buf []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := p.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return 0, fmt.Errorf("capture read: %w", err)
		}
		log.WithField("component", "audio").Debug("Capture input overflowed")
	}
	return copy(buf, p.buf), nil
}

// Close stops the stream and releases PortAudio.
func (p *PortAudioSource) Close() error {
	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	termErr := portaudio.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}
