package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/audiomixer"
	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/inputqueue"
	"github.com/bialy-nvr/compositor/pkg/layout"
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/renderer"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

type fakeAssets struct{}

func (fakeAssets) ImageFrame(media.RendererId, time.Duration) (media.Frame, bool) {
	return media.Frame{}, false
}
func (fakeAssets) ImageTotalDuration(media.RendererId) time.Duration { return 0 }
func (fakeAssets) ShaderApply(media.RendererId, []byte, []*ebiten.Image, layout.BoxLayout) (*ebiten.Image, error) {
	return ebiten.NewImage(1, 1), nil
}
func (fakeAssets) WebViewFrame(media.RendererId) (media.Frame, bool) {
	return media.Frame{}, false
}

type fakeVideoSink struct {
	frames int
	eos    bool
}

func (f *fakeVideoSink) SendFrame(media.PTS, *ebiten.Image) error { f.frames++; return nil }
func (f *fakeVideoSink) SendEOS() error                           { f.eos = true; return nil }

type fakeAudioSink struct {
	batches int
	eos     bool
}

func (f *fakeAudioSink) SendSamples(media.PTS, media.OutputSamples) error { f.batches++; return nil }
func (f *fakeAudioSink) SendEOS() error                                   { f.eos = true; return nil }

func newTestOrchestrator(t *testing.T) (*Orchestrator, media.OutputId) {
	t.Helper()
	q := inputqueue.NewQueue(20*time.Millisecond, 20*time.Millisecond, true)
	s := scene.NewSceneState()
	s.RegisterOutput("out1", media.Resolution{Width: 4, Height: 4})
	require.NoError(t, s.UpdateScene(map[media.OutputId]scene.Component{"out1": scene.View{}}))

	mixer := audiomixer.New(48000)
	mixer.RegisterOutput("out1", audiomixer.AudioMixingParams{})
	r := renderer.New(fakeAssets{})
	log := culog.NewLogger()
	t.Cleanup(log.Close)

	return New(q, s, mixer, r, log), "out1"
}

func TestRunTickRoutesToRegisteredSinks(t *testing.T) {
	o, outputID := newTestOrchestrator(t)

	videoSink := &fakeVideoSink{}
	audioSink := &fakeAudioSink{}
	o.RegisterVideoOutput(outputID, videoSink, Never{})
	o.RegisterAudioOutput(outputID, audioSink, Never{})

	_, err := o.RunTick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, videoSink.frames)
	require.Equal(t, 1, audioSink.batches)
	require.False(t, videoSink.eos)
}

func TestRunTickSendsEOSExactlyOnceWhenConditionEnds(t *testing.T) {
	o, outputID := newTestOrchestrator(t)

	videoSink := &fakeVideoSink{}
	o.RegisterVideoOutput(outputID, videoSink, AnyInput{})
	o.OnInputRegistered("cam1")
	o.OnInputUnregistered("cam1")

	_, err := o.RunTick(context.Background())
	require.NoError(t, err)
	require.True(t, videoSink.eos)
	require.Equal(t, 0, videoSink.frames)

	videoSink.eos = false
	_, err = o.RunTick(context.Background())
	require.NoError(t, err)
	require.False(t, videoSink.eos, "EOS must be sent exactly once")
}
