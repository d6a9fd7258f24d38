// Package orchestrator is the Pipeline Orchestrator: it drives one
// tick at a time through the Input Queue, Scene State, Renderer
// Driver, and Audio Mixer, and fans each output's result out to its
// encode sink, tracking per-output end conditions so EOS is emitted
// exactly once per stream.
package orchestrator

import (
	"context"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bialy-nvr/compositor/pkg/audiomixer"
	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/inputqueue"
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/renderer"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

// VideoSink receives one rendered frame (or an EOS) per tick for a
// registered video output.
type VideoSink interface {
	SendFrame(pts media.PTS, img *ebiten.Image) error
	SendEOS() error
}

// AudioSink receives one mixed sample buffer (or an EOS) per tick for
// a registered audio output.
type AudioSink interface {
	SendSamples(pts media.PTS, samples media.OutputSamples) error
	SendEOS() error
}

type videoOutput struct {
	sink VideoSink
	end  *endConditionState
}

type audioOutput struct {
	sink AudioSink
	end  *endConditionState
}

// Orchestrator owns the tick loop and every output's end-condition
// bookkeeping. The Input Queue, Scene State, Renderer Driver, and
// Audio Mixer it wraps are each independently safe for concurrent use;
// this type adds the per-output routing and EOS sequencing on top.
type Orchestrator struct {
	queue    *inputqueue.Queue
	scene    *scene.SceneState
	mixer    *audiomixer.AudioMixer
	renderer *renderer.Renderer
	log      *culog.Logger

	mu      sync.Mutex
	video   map[media.OutputId]*videoOutput
	audio   map[media.OutputId]*audioOutput
	inputs  map[media.InputId]struct{}
}

// New returns a Pipeline Orchestrator wired to its four subsystems.
func New(queue *inputqueue.Queue, sceneState *scene.SceneState, mixer *audiomixer.AudioMixer, renderDriver *renderer.Renderer, log *culog.Logger) *Orchestrator {
	return &Orchestrator{
		queue:    queue,
		scene:    sceneState,
		mixer:    mixer,
		renderer: renderDriver,
		log:      log,
		video:    map[media.OutputId]*videoOutput{},
		audio:    map[media.OutputId]*audioOutput{},
		inputs:   map[media.InputId]struct{}{},
	}
}

// RegisterVideoOutput attaches a video sink with its own end
// condition, seeded with the inputs already registered at call time.
func (o *Orchestrator) RegisterVideoOutput(id media.OutputId, sink VideoSink, end EndCondition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.video[id] = &videoOutput{sink: sink, end: newEndConditionState(end, o.connectedInputsLocked())}
}

// RegisterAudioOutput attaches an audio sink with its own end
// condition.
func (o *Orchestrator) RegisterAudioOutput(id media.OutputId, sink AudioSink, end EndCondition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio[id] = &audioOutput{sink: sink, end: newEndConditionState(end, o.connectedInputsLocked())}
}

// UnregisterVideoOutput/UnregisterAudioOutput drop an output entirely;
// no further EOS is sent on it (it was explicitly torn down, not
// ended by its condition).
func (o *Orchestrator) UnregisterVideoOutput(id media.OutputId) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.video, id)
}

func (o *Orchestrator) UnregisterAudioOutput(id media.OutputId) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.audio, id)
}

func (o *Orchestrator) connectedInputsLocked() []media.InputId {
	ids := make([]media.InputId, 0, len(o.inputs))
	for id := range o.inputs {
		ids = append(ids, id)
	}
	return ids
}

// OnInputRegistered/OnInputUnregistered/OnInputEOS propagate an
// input lifecycle event to every output's end condition state.
func (o *Orchestrator) OnInputRegistered(id media.InputId) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inputs[id] = struct{}{}
	for _, v := range o.video {
		v.end.onInputRegistered(id)
	}
	for _, a := range o.audio {
		a.end.onInputRegistered(id)
	}
}

func (o *Orchestrator) OnInputUnregistered(id media.InputId) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inputs, id)
	for _, v := range o.video {
		v.end.onInputUnregistered(id)
	}
	for _, a := range o.audio {
		a.end.onInputUnregistered(id)
	}
}

func (o *Orchestrator) OnInputEOS(id media.InputId) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, v := range o.video {
		v.end.onInputEOS(id)
	}
	for _, a := range o.audio {
		a.end.onInputEOS(id)
	}
}

// RunTick advances exactly one tick: pulls the next aligned
// FrameSet/SamplesSet from the Input Queue, runs the Renderer Driver
// and Audio Mixer concurrently, and routes each output's result (or
// EOS) to its sink. It returns the tick's pts.
func (o *Orchestrator) RunTick(ctx context.Context) (media.PTS, error) {
	pts, frameSet, samplesSet, err := o.queue.NextTick(ctx)
	if err != nil {
		return pts, err
	}

	inputResolutions := make(map[media.InputId]media.Resolution, len(frameSet))
	for id, f := range frameSet {
		if f != nil {
			inputResolutions[id] = f.Resolution
		}
	}
	o.scene.RegisterRenderEvent(pts, inputResolutions)

	var g errgroup.Group

	var rendered map[media.OutputId]*ebiten.Image
	var mixed map[media.OutputId]media.OutputSamples

	g.Go(func() error {
		outputs := o.scene.GetOutputs()
		r, err := o.renderer.RenderTick(pts, outputs, frameSet)
		rendered = r
		return err
	})
	g.Go(func() error {
		mixed = o.mixer.Mix(pts, o.queue.AudioPeriod(), samplesSet)
		return nil
	})

	if err := g.Wait(); err != nil {
		return pts, err
	}

	o.routeVideo(pts, rendered)
	o.routeAudio(pts, mixed)

	return pts, nil
}

func (o *Orchestrator) routeVideo(pts media.PTS, rendered map[media.OutputId]*ebiten.Image) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, out := range o.video {
		switch out.end.eosStatusFor() {
		case eosAlreadySent:
			continue
		case eosSend:
			if err := out.sink.SendEOS(); err != nil {
				o.log.Error().Output(id).Msgf("send video EOS: %v", err)
			}
		default:
			img, ok := rendered[id]
			if !ok {
				continue
			}
			if err := out.sink.SendFrame(pts, img); err != nil {
				o.log.Error().Output(id).Msgf("send video frame: %v", err)
			}
		}
	}
}

func (o *Orchestrator) routeAudio(pts media.PTS, mixed map[media.OutputId]media.OutputSamples) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, out := range o.audio {
		switch out.end.eosStatusFor() {
		case eosAlreadySent:
			continue
		case eosSend:
			if err := out.sink.SendEOS(); err != nil {
				o.log.Error().Output(id).Msgf("send audio EOS: %v", err)
			}
		default:
			samples, ok := mixed[id]
			if !ok {
				continue
			}
			if err := out.sink.SendSamples(pts, samples); err != nil {
				o.log.Error().Output(id).Msgf("send audio samples: %v", err)
			}
		}
	}
}

// Run drives RunTick in a loop until ctx is cancelled, draining any
// in-flight tick before returning so a shutdown never truncates a
// partially-routed output.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if _, err := o.RunTick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
