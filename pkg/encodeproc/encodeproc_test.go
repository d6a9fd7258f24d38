package encodeproc

import (
	"os/exec"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/encodeproc/procmock"
	"github.com/bialy-nvr/compositor/pkg/media"
)

func testSink(t *testing.T, newProcess NewProcessFunc) *ffmpegSink {
	t.Helper()
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	sink := NewFFmpegSink("out1", func() *exec.Cmd { return exec.Command("true") }, newProcess, log)
	return sink.(*ffmpegSink)
}

func TestFFmpegSinkStartsLazilyOnFirstSend(t *testing.T) {
	sink := testSink(t, procmock.NewOK)

	sink.mu.Lock()
	started := sink.started
	sink.mu.Unlock()
	require.False(t, started, "must not start before the first frame/samples arrive")

	frame := media.Frame{Data: media.RGBA8{Bytes: make([]byte, 4)}, Resolution: media.Resolution{Width: 1, Height: 1}}
	require.NoError(t, sink.Send(media.NewData(frame)))

	sink.mu.Lock()
	started = sink.started
	sink.mu.Unlock()
	require.True(t, started)

	sink.Close()
}

func TestFFmpegSinkRejectsNonRGBAFrame(t *testing.T) {
	sink := testSink(t, procmock.NewOK)
	t.Cleanup(sink.Close)

	frame := media.Frame{Data: media.PlanarYUV420{}}
	err := sink.Send(media.NewData(frame))
	require.Error(t, err)
}

func TestFFmpegSinkSendAudioWritesInterleavedPCM(t *testing.T) {
	sink := testSink(t, procmock.NewOK)
	t.Cleanup(sink.Close)

	batch := media.OutputSamples{Samples: []media.Sample{{Left: 1, Right: -1}}}
	require.NoError(t, sink.SendAudio(media.NewData(batch)))
}

func TestFFmpegSinkSendSucceedsEvenIfProcessLaterFailsToStart(t *testing.T) {
	sink := testSink(t, procmock.NewErr)
	t.Cleanup(sink.Close)

	frame := media.Frame{Data: media.RGBA8{Bytes: make([]byte, 4)}}
	// Starting happens on a background goroutine; the send itself still
	// succeeds against the process's stdin pipe regardless of whether
	// the process later fails, matching the fire-and-forget relationship
	// between feeding a pipe and the subprocess's own exit status.
	err := sink.Send(media.NewData(frame))
	require.NoError(t, err)
}

func TestVideoAdapterSendFrameConvertsImageToRGBA8(t *testing.T) {
	rs := &recordingSink{}
	adapter := NewVideoAdapter(rs)

	img := ebiten.NewImage(2, 2)
	require.NoError(t, adapter.SendFrame(media.PTS(0), img))
	require.Len(t, rs.sent, 1)
	data, ok := rs.sent[0].Data()
	require.True(t, ok)
	require.Equal(t, media.Resolution{Width: 2, Height: 2}, data.Resolution)
	rgba, ok := data.Data.(media.RGBA8)
	require.True(t, ok)
	require.Len(t, rgba.Bytes, 2*2*4)
}

func TestVideoAdapterSendEOSClosesSink(t *testing.T) {
	rs := &recordingSink{}
	adapter := NewVideoAdapter(rs)
	require.NoError(t, adapter.SendEOS())
	require.True(t, rs.closed)
	require.Len(t, rs.sent, 1)
	_, ok := rs.sent[0].Data()
	require.False(t, ok, "forwarded event must be EOS")
}

func TestAudioAdapterSendSamplesAndEOS(t *testing.T) {
	rs := &recordingSink{}
	adapter := NewAudioAdapter(rs)
	require.NoError(t, adapter.SendSamples(media.PTS(0), media.OutputSamples{}))
	require.NoError(t, adapter.SendEOS())
	require.True(t, rs.closed)
	require.Len(t, rs.sentAudio, 2)
}

type recordingSink struct {
	sent      []media.PipelineEvent[media.Frame]
	sentAudio []media.PipelineEvent[media.OutputSamples]
	closed    bool
}

func (r *recordingSink) Send(e media.PipelineEvent[media.Frame]) error {
	r.sent = append(r.sent, e)
	return nil
}
func (r *recordingSink) SendAudio(e media.PipelineEvent[media.OutputSamples]) error {
	r.sentAudio = append(r.sentAudio, e)
	return nil
}
func (r *recordingSink) Close() { r.closed = true }
