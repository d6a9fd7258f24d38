// Package inputqueue implements the Input Queue: it aligns
// heterogeneous, independently-paced decoded streams onto one output
// clock and emits a FrameSet/SamplesSet for every tick.
package inputqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bialy-nvr/compositor/pkg/media"
)

type registeredInput struct {
	id      media.InputId
	opts    Options
	src     DataSource
	frameQ  *boundedQueue[frameItem]
	sampleQ *boundedQueue[sampleItem]

	stopCh chan struct{}
	once   sync.Once

	mu            sync.Mutex
	offsetSet     bool
	offset        time.Duration
	lastFrame     *media.Frame
	frameEOS      bool
	samplesEOS    bool
}

func (r *registeredInput) stop() {
	r.once.Do(func() {
		close(r.stopCh)
		r.frameQ.Close()
		r.sampleQ.Close()
	})
}

func (r *registeredInput) bothEOS() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameEOS && r.samplesEOS
}

// effectiveOffset returns the offset to apply to this input's source
// PTS values, deriving it from the first observed item (so the
// input's effective PTS starts at 0) when Options.Offset was left at
// its zero value and no explicit first-frame anchor has been set yet.
func (r *registeredInput) effectiveOffset(sourcePTS media.PTS) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.Offset != 0 {
		return r.opts.Offset
	}
	if !r.offsetSet {
		r.offset = -sourcePTS.Duration()
		r.offsetSet = true
	}
	return r.offset
}

// Queue is the Input Queue. It owns one bounded channel pair per
// registered input and advances a global target PTS at the configured
// tick rate.
type Queue struct {
	videoPeriod time.Duration
	audioPeriod time.Duration
	aheadOfTime bool

	mu        sync.Mutex
	inputs    map[media.InputId]*registeredInput
	targetPTS media.PTS
	started   bool
}

// NewQueue returns an Input Queue. videoPeriod is the nominal interval
// between render ticks (drives target-PTS advance and video buffer
// sizing); audioPeriod is the duration of one audio batch window
// (e.g. 20ms). aheadOfTime toggles the policy used when a required
// input has no data ready at tick time: if false, NextTick waits up to
// that input's BufferDuration; if true, it proceeds immediately using
// the input's last known frame.
func NewQueue(videoPeriod, audioPeriod time.Duration, aheadOfTime bool) *Queue {
	return &Queue{
		videoPeriod: videoPeriod,
		audioPeriod: audioPeriod,
		aheadOfTime: aheadOfTime,
		inputs:      map[media.InputId]*registeredInput{},
	}
}

// errAlreadyRegistered is returned by AddInput for a duplicate id.
type errAlreadyRegistered struct{ id media.InputId }

func (e errAlreadyRegistered) Error() string {
	return fmt.Sprintf("input already registered: %v", e.id)
}

func videoCapacity(bufDur, period time.Duration) int {
	if period <= 0 {
		return 3
	}
	n := int(bufDur / period)
	if n < 1 {
		n = 3
	}
	return n
}

func audioCapacity(bufDur, period time.Duration) int {
	if period <= 0 {
		return 5
	}
	n := int(bufDur / period)
	if n < 1 {
		n = 5
	}
	return n
}

// AddInput registers a data source under id. The queue immediately
// starts forwarding goroutines that pull from src and feed the
// per-input bounded channels; a full channel blocks the forwarding
// goroutine (and transitively the decoder driving src), which is the
// pipeline's backpressure mechanism.
func (q *Queue) AddInput(id media.InputId, src DataSource, opts Options) error {
	if opts.BufferDuration == 0 {
		opts.BufferDuration = DefaultBufferDuration
	}

	q.mu.Lock()
	if _, exists := q.inputs[id]; exists {
		q.mu.Unlock()
		return errAlreadyRegistered{id}
	}
	r := &registeredInput{
		id:      id,
		opts:    opts,
		src:     src,
		frameQ:  newBoundedQueue[frameItem](videoCapacity(opts.BufferDuration, q.videoPeriod)),
		sampleQ: newBoundedQueue[sampleItem](audioCapacity(opts.BufferDuration, q.audioPeriod)),
		stopCh:  make(chan struct{}),
	}
	q.inputs[id] = r
	q.mu.Unlock()

	go q.forwardFrames(r)
	go q.forwardSamples(r)
	return nil
}

func (q *Queue) forwardFrames(r *registeredInput) {
	for {
		select {
		case <-r.stopCh:
			return
		case ev, ok := <-r.src.Frames():
			if !ok {
				r.mu.Lock()
				r.frameEOS = true
				r.mu.Unlock()
				r.frameQ.Close()
				return
			}
			if ev.IsEOS() {
				r.mu.Lock()
				r.frameEOS = true
				r.mu.Unlock()
				r.frameQ.Close()
				return
			}
			frame, _ := ev.Data()
			offset := r.effectiveOffset(frame.PTS)
			frame.PTS = frame.PTS.Add(offset)
			if frame.PTS < 0 {
				frame.PTS = 0
			}
			if !r.frameQ.Push(frameItem{frame: frame}) {
				return // queue closed (input removed)
			}
		}
	}
}

func (q *Queue) forwardSamples(r *registeredInput) {
	for {
		select {
		case <-r.stopCh:
			return
		case ev, ok := <-r.src.Samples():
			if !ok {
				r.mu.Lock()
				r.samplesEOS = true
				r.mu.Unlock()
				r.sampleQ.Close()
				return
			}
			if ev.IsEOS() {
				r.mu.Lock()
				r.samplesEOS = true
				r.mu.Unlock()
				r.sampleQ.Close()
				return
			}
			samples, _ := ev.Data()
			offset := r.effectiveOffset(samples.StartPTS)
			samples.StartPTS = samples.StartPTS.Add(offset)
			if samples.StartPTS < 0 {
				samples.StartPTS = 0
			}
			if !r.sampleQ.Push(sampleItem{samples: samples}) {
				return
			}
		}
	}
}

// RemoveInput unregisters id immediately; any pending items are
// discarded and the forwarding goroutines are released.
func (q *Queue) RemoveInput(id media.InputId) {
	q.mu.Lock()
	r, ok := q.inputs[id]
	if ok {
		delete(q.inputs, id)
	}
	q.mu.Unlock()
	if ok {
		r.stop()
	}
}

const pollInterval = 2 * time.Millisecond

// NextTick blocks until either the next scheduled PTS is ready to
// emit, or every required input has signaled EOS on both its streams.
// It returns the tick's PTS together with the FrameSet/SamplesSet
// assembled for it.
func (q *Queue) NextTick(ctx context.Context) (media.PTS, media.FrameSet, media.SamplesSet, error) {
	q.mu.Lock()
	target := q.targetPTS
	q.targetPTS = q.targetPTS.Add(q.videoPeriod)
	q.mu.Unlock()

	if err := q.waitForRequired(ctx, target); err != nil {
		return target, nil, nil, err
	}

	frameSet := media.FrameSet{}
	samplesSet := media.SamplesSet{}

	q.mu.Lock()
	snapshot := make([]*registeredInput, 0, len(q.inputs))
	for _, r := range q.inputs {
		snapshot = append(snapshot, r)
	}
	q.mu.Unlock()

	audioWindowEnd := target.Add(q.audioPeriod)

	for _, r := range snapshot {
		dueFrames := r.frameQ.PopUpTo(target)
		if len(dueFrames) > 0 {
			latest := dueFrames[len(dueFrames)-1].frame
			r.mu.Lock()
			r.lastFrame = &latest
			r.mu.Unlock()
			frameSet[r.id] = &latest
		} else if q.aheadOfTime {
			r.mu.Lock()
			cached := r.lastFrame
			r.mu.Unlock()
			if cached != nil {
				frameSet[r.id] = cached
			}
		}

		dueSamples := r.sampleQ.PopUpTo(audioWindowEnd.Add(-time.Nanosecond))
		if len(dueSamples) > 0 {
			combined := dueSamples[0].samples
			for _, extra := range dueSamples[1:] {
				combined = combined.Concat(extra.samples)
			}
			samplesSet[r.id] = &combined
		}
	}

	return target, frameSet, samplesSet, nil
}

// waitForRequired implements the blocking policy for required inputs
// that have nothing ready yet: poll until every active (non-EOS)
// required input has an item due by target, or the longest
// BufferDuration among them elapses, or the input reaches EOS, or ctx
// is done. Ahead-of-time mode skips waiting entirely since it is
// willing to reuse each input's last known frame.
func (q *Queue) waitForRequired(ctx context.Context, target media.PTS) error {
	if q.aheadOfTime {
		return nil
	}

	q.mu.Lock()
	var deadline time.Duration
	required := make([]*registeredInput, 0)
	for _, r := range q.inputs {
		if !r.opts.Required {
			continue
		}
		required = append(required, r)
		if r.opts.BufferDuration > deadline {
			deadline = r.opts.BufferDuration
		}
	}
	q.mu.Unlock()

	if len(required) == 0 {
		return nil
	}

	budget := time.After(deadline)
	for {
		allReady := true
		for _, r := range required {
			if r.bothEOS() {
				continue
			}
			pts, ok := r.frameQ.PeekFrontPTS()
			frameReady := ok && pts <= target
			samplePTS, sok := r.sampleQ.PeekFrontPTS()
			sampleReady := sok && samplePTS <= target
			if !frameReady && !sampleReady {
				allReady = false
				break
			}
		}
		if allReady {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-budget:
			return nil // proceed with whatever is ready; boundary case in spec.
		case <-time.After(pollInterval):
		}
	}
}

// InputCount reports how many inputs are currently registered, mainly
// for tests and diagnostics.
func (q *Queue) InputCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inputs)
}

// AudioPeriod returns the duration of one audio batch window, as
// configured by NewQueue. Callers that window their own output against
// a tick (e.g. the Audio Mixer) use this to size that window
// identically to the one NextTick drained samples up to.
func (q *Queue) AudioPeriod() time.Duration {
	return q.audioPeriod
}
