package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	log "github.com/sirupsen/logrus"
)

// FileSource replays a wav or mp3 file as if it were a capture device.
type FileSource struct {
	path     string
	closer   beep.StreamSeekCloser
	streamer beep.Streamer
	scratch  [][2]float64

	ticker *time.Ticker // nil when not pacing
	period time.Duration
}

// OpenFile decodes path and resamples it to sampleRate. When realtime is set,
// each period is released no faster than the wall clock would deliver it.
func OpenFile(path string, sampleRate, periodSize int, realtime bool) (*FileSource, error) {
	stream, format, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var streamer beep.Streamer = stream
	target := beep.SampleRate(sampleRate)
	if format.SampleRate != target {
		streamer = beep.Resample(4, format.SampleRate, target, stream)
	}

	fs := &FileSource{
		path:     path,
		closer:   stream,
		streamer: streamer,
		scratch:  make([][2]float64, periodSize),
		period:   time.Duration(periodSize) * time.Second / time.Duration(sampleRate),
	}
	if realtime {
		fs.ticker = time.NewTicker(fs.period)
	}

	log.WithFields(log.Fields{
		"component":   "audio",
		"file":        path,
		"file_rate":   int(format.SampleRate),
		"target_rate": sampleRate,
		"realtime":    realtime,
	}).Info("File source opened")
	return fs, nil
}

// ReadPeriod streams up to len(buf) samples. It returns io.EOF once the file is exhausted.
func (f *FileSource) ReadPeriod(ctx context.Context, buf []int16) (int, error) {
	if f.ticker != nil {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-f.ticker.C:
		}
	}

	want := min(len(buf), len(f.scratch))
	n, ok := f.streamer.Stream(f.scratch[:want])
	if !ok && n == 0 {
		if err := f.streamer.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	return DownmixInto(buf, f.scratch[:n]), nil
}

// Close stops pacing and releases the decoder.
func (f *FileSource) Close() error {
	if f.ticker != nil {
		f.ticker.Stop()
	}
	return f.closer.Close()
}

// decodeFile opens an mp3 or wav file by extension.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		stream, format, err := mp3.Decode(file)
		if err != nil {
			file.Close()
			return nil, beep.Format{}, err
		}
		return stream, format, nil
	case ".wav":
		stream, format, err := wav.Decode(file)
		if err != nil {
			file.Close()
			return nil, beep.Format{}, err
		}
		return stream, format, nil
	default:
		file.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format %q", ext)
	}
}
