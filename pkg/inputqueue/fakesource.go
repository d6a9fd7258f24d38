package inputqueue

import "github.com/bialy-nvr/compositor/pkg/media"

// fakeSource is a minimal DataSource used by tests to drive the queue
// with hand-scheduled frames/samples.
type fakeSource struct {
	frames  chan media.PipelineEvent[media.Frame]
	samples chan media.PipelineEvent[media.InputSamples]
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frames:  make(chan media.PipelineEvent[media.Frame], 32),
		samples: make(chan media.PipelineEvent[media.InputSamples], 32),
	}
}

func (f *fakeSource) Frames() <-chan media.PipelineEvent[media.Frame] { return f.frames }
func (f *fakeSource) Samples() <-chan media.PipelineEvent[media.InputSamples] {
	return f.samples
}

func (f *fakeSource) pushFrame(fr media.Frame)       { f.frames <- media.NewData(fr) }
func (f *fakeSource) endFrames()                     { f.frames <- media.NewEOS[media.Frame]() }
func (f *fakeSource) endSamples()                    { f.samples <- media.NewEOS[media.InputSamples]() }
