// Package hlssource is a minimal HLS Decoder Adapter: it polls a local
// playlist file for newly appended segments and emits one Frame per
// segment boundary, deriving each segment's PTS from the cumulative
// "#EXTINF" duration the way the teacher's
// pkg/ffmpeg.WaitForKeyframe/getKeyframeDuration parses an ".m3u8"
// tail to learn a segment's duration. Actual TS/fMP4 payload decode is
// out of scope; this adapter exists to exercise the Input Queue's
// offset/backpressure handling end-to-end against a real,
// variable-pace timeline rather than a synthetic one.
package hlssource

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/media"
)

type chanPairLocal struct {
	frames  chan media.PipelineEvent[media.Frame]
	samples chan media.PipelineEvent[media.InputSamples]
	closed  chan struct{}
}

func newChanPairLocal(frameBuf int) *chanPairLocal {
	return &chanPairLocal{
		frames:  make(chan media.PipelineEvent[media.Frame], frameBuf),
		samples: make(chan media.PipelineEvent[media.InputSamples], 1),
		closed:  make(chan struct{}),
	}
}

func (c *chanPairLocal) publishFrame(ev media.PipelineEvent[media.Frame]) {
	select {
	case <-c.closed:
	case c.frames <- ev:
	}
}

func (c *chanPairLocal) publishSamples(ev media.PipelineEvent[media.InputSamples]) {
	select {
	case <-c.closed:
	case c.samples <- ev:
	}
}

func (c *chanPairLocal) close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// Source polls playlistPath at pollInterval, tracking which "#EXTINF"
// entries it has already turned into a Frame.
type Source struct {
	inputID      media.InputId
	playlistPath string
	resolution   media.Resolution
	pollInterval time.Duration
	log          *culog.Logger

	cp   *chanPairLocal
	once sync.Once
}

// NewSource starts polling playlistPath immediately.
func NewSource(inputID media.InputId, playlistPath string, resolution media.Resolution, pollInterval time.Duration, log *culog.Logger) *Source {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	s := &Source{
		inputID:      inputID,
		playlistPath: playlistPath,
		resolution:   resolution,
		pollInterval: pollInterval,
		log:          log,
		cp:           newChanPairLocal(8),
	}
	go s.run()
	return s
}

func (s *Source) Frames() <-chan media.PipelineEvent[media.Frame] { return s.cp.frames }
func (s *Source) Samples() <-chan media.PipelineEvent[media.InputSamples] {
	return s.cp.samples
}

func (s *Source) run() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// This adapter is video-only; mark the audio stream done up front
	// rather than leave it to a forwarding goroutine that will never
	// see anything.
	s.cp.publishSamples(media.NewEOS[media.InputSamples]())

	var pts media.PTS
	seen := 0

	for {
		select {
		case <-s.cp.closed:
			s.cp.publishFrame(media.NewEOS[media.Frame]())
			return
		case <-ticker.C:
			durations, err := segmentDurations(s.playlistPath)
			if err != nil {
				s.log.Warn().Input(s.inputID).Msgf("read playlist: %v", err)
				continue
			}
			for ; seen < len(durations); seen++ {
				size := s.resolution.Width * s.resolution.Height * 4
				if size <= 0 {
					size = 4
				}
				frame := media.Frame{
					Data:       media.RGBA8{Bytes: make([]byte, size)},
					Resolution: s.resolution,
					PTS:        pts,
				}
				s.cp.publishFrame(media.NewData(frame))
				pts = pts.Add(durations[seen])
			}
		}
	}
}

// segmentDurations parses every "#EXTINF:<seconds>," line in a
// playlist, in order, the way getKeyframeDuration reads a single
// trailing one.
func segmentDurations(path string) ([]time.Duration, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []time.Duration
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#EXTINF:") {
			continue
		}
		field := strings.TrimPrefix(line, "#EXTINF:")
		field = strings.TrimSuffix(field, ",")
		seconds, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		out = append(out, time.Duration(seconds*float64(time.Second)))
	}
	return out, nil
}

// Close stops polling and emits a terminal frame EOS.
func (s *Source) Close() {
	s.once.Do(s.cp.close)
}
