package inputqueue

import (
	"time"

	"github.com/bialy-nvr/compositor/pkg/media"
)

// DataSource is what a Decoder Adapter exposes to the Input Queue: two
// independent event streams, one per kind, each terminated exactly
// once by an EOS event.
type DataSource interface {
	Frames() <-chan media.PipelineEvent[media.Frame]
	Samples() <-chan media.PipelineEvent[media.InputSamples]
}

// Options configures one registered input.
type Options struct {
	// Required, if true, makes this input participate in the
	// "wait for required inputs" policy at tick time.
	Required bool
	// Offset shifts this input's source PTS before alignment. If
	// zero, the queue derives an offset from the first observed
	// frame/sample so the input's effective PTS starts at 0.
	Offset time.Duration
	// BufferDuration sizes this input's bounded channels and bounds
	// how long a tick will wait for a missing required input.
	// Defaults to DefaultBufferDuration.
	BufferDuration time.Duration
}

// DefaultBufferDuration is used when Options.BufferDuration is zero,
// sized for roughly 3 video frames at 30fps / 100ms of audio.
const DefaultBufferDuration = 100 * time.Millisecond

type frameItem struct {
	frame media.Frame
}

func (f frameItem) pts() media.PTS { return f.frame.PTS }

type sampleItem struct {
	samples media.InputSamples
}

func (s sampleItem) pts() media.PTS { return s.samples.StartPTS }
