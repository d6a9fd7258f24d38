// Package decoder is the Decoder Adapter boundary: it turns whatever a
// concrete transport (RTP, an MP4 fragment directory, an HLS playlist)
// delivers into the two PipelineEvent streams the Input Queue
// consumes. Actual codec decode (H.264/Opus/AAC bitstream -> pixels or
// PCM) is out of scope; each concrete source under this package tags
// frames/samples with a placeholder already-decoded payload and
// concerns itself only with framing, PTS derivation, and EOS
// sequencing.
package decoder

import "github.com/bialy-nvr/compositor/pkg/media"

// Source is what a concrete decoder adapter exposes. It is exactly
// pkg/inputqueue.DataSource plus Close, since every adapter owns a
// goroutine and/or an OS resource (socket, file, fsnotify watch) that
// must be released when the input is torn down.
type Source interface {
	Frames() <-chan media.PipelineEvent[media.Frame]
	Samples() <-chan media.PipelineEvent[media.InputSamples]
	Close()
}

// chanPair is the shared plumbing every concrete Source embeds: two
// buffered channels it publishes events on, and a close-once guard so
// Close is safe to call more than once and safe to call concurrently
// with publishing.
type chanPair struct {
	frames  chan media.PipelineEvent[media.Frame]
	samples chan media.PipelineEvent[media.InputSamples]
	closed  chan struct{}
}

func newChanPair(frameBuf, sampleBuf int) *chanPair {
	return &chanPair{
		frames:  make(chan media.PipelineEvent[media.Frame], frameBuf),
		samples: make(chan media.PipelineEvent[media.InputSamples], sampleBuf),
		closed:  make(chan struct{}),
	}
}

func (c *chanPair) Frames() <-chan media.PipelineEvent[media.Frame]     { return c.frames }
func (c *chanPair) Samples() <-chan media.PipelineEvent[media.InputSamples] { return c.samples }

// publishFrame sends a frame event unless the source has been closed.
func (c *chanPair) publishFrame(ev media.PipelineEvent[media.Frame]) {
	select {
	case <-c.closed:
	case c.frames <- ev:
	}
}

// publishSamples sends a samples event unless the source has been
// closed.
func (c *chanPair) publishSamples(ev media.PipelineEvent[media.InputSamples]) {
	select {
	case <-c.closed:
	case c.samples <- ev:
	}
}

func (c *chanPair) close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}
