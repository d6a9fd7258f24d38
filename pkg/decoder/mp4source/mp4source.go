// Package mp4source is the MP4-file Decoder Adapter: it iterates a
// track's sample table and emits one Frame (video) or InputSamples
// batch (audio) per sample, then watches a fragment directory via
// fsnotify for live-appended fragments the way a recording session
// extends an initially-finite file. Actual MP4 box parsing is out of
// scope: callers supply a SampleReader that already knows how to read
// sample N's bytes/timing, mirroring the teacher's own pattern of
// layering adapters over a parsing library it doesn't reimplement
// (pkg/video/gortsplib wrapping RTP/SDP semantics it consumes rather
// than re-deriving).
package mp4source

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/media"
)

// Sample is one decoded-container sample's timing and payload, as read
// from an MP4 sample table. Data is already-decoded placeholder
// content; codec bitstream decode is out of scope.
type Sample struct {
	Data            []byte
	StartTime       uint64
	RenderingOffset int64
}

// SampleReader abstracts an open MP4 track's sample table. The box
// parsing that implements it lives outside this package.
type SampleReader interface {
	// SampleCount returns the track's sample count, consistent with
	// the resolved Open Question: iteration runs 1..SampleCount
	// (1-based, last index excluded), matching the original reader's
	// sample indexing exactly.
	SampleCount() uint32
	Timescale() uint32
	// ReadSample returns (sample, true, nil) for a present sample, or
	// (_, false, nil) for an index with no sample (a hole in the
	// table), or an error for a read failure.
	ReadSample(index uint32) (Sample, bool, error)
}

// NewReaderFunc builds a SampleReader for an appended fragment file.
type NewReaderFunc func(path string) (SampleReader, error)

// chanPairLocal mirrors pkg/decoder's chanPair; duplicated here rather
// than exported across packages (see rtpsource's identical copy).
type chanPairLocal struct {
	frames  chan media.PipelineEvent[media.Frame]
	samples chan media.PipelineEvent[media.InputSamples]
	closed  chan struct{}
}

func newChanPairLocal(frameBuf, sampleBuf int) *chanPairLocal {
	return &chanPairLocal{
		frames:  make(chan media.PipelineEvent[media.Frame], frameBuf),
		samples: make(chan media.PipelineEvent[media.InputSamples], sampleBuf),
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

// VideoSource iterates a video track's sample table (1-based, per the
// original reader) and optionally keeps iterating appended fragments
// found in a watched directory.
type VideoSource struct {
	inputID    media.InputId
	resolution media.Resolution
	log        *culog.Logger
	cp         *chanPairLocal

	once sync.Once
}

// NewVideoSource starts a goroutine that reads every sample out of
// reader, tagging each Frame with resolution, then — if fragmentDir is
// non-empty — watches it for newly-appended fragment files, building a
// fresh SampleReader for each via newReader and draining it the same
// way. EOS is emitted once the watch is torn down via Close (or
// immediately after the initial read if fragmentDir is empty).
func NewVideoSource(
	inputID media.InputId,
	reader SampleReader,
	resolution media.Resolution,
	fragmentDir string,
	newReader NewReaderFunc,
	log *culog.Logger,
) *VideoSource {
	s := &VideoSource{inputID: inputID, resolution: resolution, log: log, cp: newChanPairLocal(8, 0)}
	go s.run(reader, fragmentDir, newReader)
	return s
}

func (s *VideoSource) Frames() <-chan media.PipelineEvent[media.Frame] { return s.cp.frames }
func (s *VideoSource) Samples() <-chan media.PipelineEvent[media.InputSamples] {
	return s.cp.samples
}

func (s *VideoSource) run(reader SampleReader, fragmentDir string, newReader NewReaderFunc) {
	s.drain(reader)

	if fragmentDir != "" && newReader != nil {
		s.watchFragments(fragmentDir, newReader)
	}

	s.cp.publishFrame(media.NewEOS[media.Frame]())
	s.cp.publishSamples(media.NewEOS[media.InputSamples]())
}

// drain reads every sample 1..SampleCount from reader and publishes a
// Frame per present sample.
func (s *VideoSource) drain(reader SampleReader) {
	count := reader.SampleCount()
	timescale := reader.Timescale()
	for i := uint32(1); i < count; i++ {
		select {
		case <-s.cp.closed:
			return
		default:
		}
		sample, ok, err := reader.ReadSample(i)
		if err != nil {
			s.log.Warn().Input(s.inputID).Msgf("mp4 read sample %d: %v", i, err)
			continue
		}
		if !ok {
			continue
		}
		pts := samplePTS(sample, timescale)
		frame := media.Frame{
			Data:       media.RGBA8{Bytes: sample.Data},
			Resolution: s.resolution,
			PTS:        pts,
		}
		s.cp.publishFrame(media.NewData(frame))
	}
}

func (s *VideoSource) watchFragments(dir string, newReader NewReaderFunc) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Error().Input(s.inputID).Msgf("fragment watch: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		s.log.Error().Input(s.inputID).Msgf("fragment watch add %s: %v", dir, err)
		return
	}

	for {
		select {
		case <-s.cp.closed:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			reader, err := newReader(filepath.Clean(ev.Name))
			if err != nil {
				s.log.Warn().Input(s.inputID).Msgf("open fragment %s: %v", ev.Name, err)
				continue
			}
			s.drain(reader)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Error().Input(s.inputID).Msgf("fragment watch: %v", err)
		}
	}
}

// Close releases the source; in-flight publishes unblock immediately.
func (s *VideoSource) Close() {
	s.once.Do(s.cp.close)
}

// AudioSource iterates an audio track's sample table the same way,
// emitting one InputSamples batch per sample.
type AudioSource struct {
	inputID    media.InputId
	sampleRate int
	mono       bool
	log        *culog.Logger
	cp         *chanPairLocal

	once sync.Once
}

// NewAudioSource starts draining reader's samples as InputSamples
// batches at sampleRate.
func NewAudioSource(inputID media.InputId, reader SampleReader, sampleRate int, mono bool, log *culog.Logger) *AudioSource {
	s := &AudioSource{inputID: inputID, sampleRate: sampleRate, mono: mono, log: log, cp: newChanPairLocal(0, 16)}
	go s.run(reader)
	return s
}

func (s *AudioSource) Frames() <-chan media.PipelineEvent[media.Frame] { return s.cp.frames }
func (s *AudioSource) Samples() <-chan media.PipelineEvent[media.InputSamples] {
	return s.cp.samples
}

func (s *AudioSource) run(reader SampleReader) {
	count := reader.SampleCount()
	timescale := reader.Timescale()
	for i := uint32(1); i < count; i++ {
		select {
		case <-s.cp.closed:
			s.cp.publishSamples(media.NewEOS[media.InputSamples]())
			s.cp.publishFrame(media.NewEOS[media.Frame]())
			return
		default:
		}
		sample, ok, err := reader.ReadSample(i)
		if err != nil {
			s.log.Warn().Input(s.inputID).Msgf("mp4 read sample %d: %v", i, err)
			continue
		}
		if !ok {
			continue
		}
		n := len(sample.Data) / 2
		if n == 0 {
			n = 1
		}
		batch := media.InputSamples{
			Samples:    make([]media.Sample, n),
			StartPTS:   samplePTS(sample, timescale),
			SampleRate: s.sampleRate,
			Mono:       s.mono,
		}
		s.cp.publishSamples(media.NewData(batch))
	}
	s.cp.publishSamples(media.NewEOS[media.InputSamples]())
	s.cp.publishFrame(media.NewEOS[media.Frame]())
}

// Close releases the source.
func (s *AudioSource) Close() {
	s.once.Do(s.cp.close)
}

func samplePTS(sample Sample, timescale uint32) media.PTS {
	if timescale == 0 {
		return 0
	}
	seconds := (float64(sample.StartTime) + float64(sample.RenderingOffset)) / float64(timescale)
	return media.PTS(seconds * float64(1e9))
}
