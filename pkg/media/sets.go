package media

// FrameSet maps an InputId to at most one Frame at a given tick's PTS.
// A missing entry means no video data was available for that input at
// that PTS.
type FrameSet map[InputId]*Frame

// SamplesSet maps an InputId to at most one InputSamples batch
// covering a tick's window. A missing entry means silence.
type SamplesSet map[InputId]*InputSamples

// OutputSamples is the fixed-duration stereo/mono batch the Audio
// Mixer produces for one output at one tick. Mono reports whether
// Samples was collapsed to a single channel (Left==Right throughout).
type OutputSamples struct {
	Samples  []Sample
	StartPTS PTS
	Mono     bool
}

// PipelineEvent is a tagged union carried on every producer->consumer
// stream in the pipeline: either a data item, or a terminal,
// idempotent end-of-stream marker.
type PipelineEvent[T any] struct {
	data T
	eos  bool
}

// NewData wraps a data item.
func NewData[T any](v T) PipelineEvent[T] {
	return PipelineEvent[T]{data: v}
}

// NewEOS returns the terminal EOS event.
func NewEOS[T any]() PipelineEvent[T] {
	return PipelineEvent[T]{eos: true}
}

// IsEOS reports whether this event is the terminal marker.
func (e PipelineEvent[T]) IsEOS() bool {
	return e.eos
}

// Data returns the carried value and whether this event carries data
// (i.e. is not EOS).
func (e PipelineEvent[T]) Data() (T, bool) {
	return e.data, !e.eos
}
