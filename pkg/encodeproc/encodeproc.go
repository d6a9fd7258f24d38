// Package encodeproc is the Encoder/Output Adapter: it shells out to an
// external encoder subprocess exactly the way the teacher pipeline's
// ffmpeg process wrapper does, feeding it raw frames and PCM samples
// over stdin pipes. Codec payloads themselves are out of scope; this
// package only owns the subprocess lifecycle and the framing of raw
// pixel/sample data onto its stdin.
package encodeproc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/perr"
)

// Sink is the boundary the core pipeline emits packetized output
// through. One Sink handles one elementary stream (video or audio) for
// one output.
type Sink interface {
	Send(event media.PipelineEvent[media.Frame]) error
	SendAudio(event media.PipelineEvent[media.OutputSamples]) error
	Close()
}

// Process is the subset of subprocess control the ffmpegSink depends
// on, narrow enough to fake in tests without spawning a real binary.
type Process interface {
	Start(ctx context.Context) error
	Stdin() io.WriteCloser
	SetTimeout(time.Duration)
	SetStdoutLogger(func(string))
	SetStderrLogger(func(string))
	Stop()
}

// process is the real subprocess-backed Process implementation.
type process struct {
	cmd     *exec.Cmd
	timeout time.Duration

	stdoutLogger func(string)
	stderrLogger func(string)

	stdin io.WriteCloser
	done  chan struct{}
}

// NewProcessFunc constructs a Process from an *exec.Cmd; swapped for a
// fake in tests the way the teacher's ffmpeg package does with
// NewProcessFunc.
type NewProcessFunc func(*exec.Cmd) Process

// NewProcess returns the real subprocess-backed Process.
func NewProcess(cmd *exec.Cmd) Process {
	return &process{cmd: cmd, timeout: time.Second}
}

func (p *process) Stdin() io.WriteCloser { return p.stdin }

func (p *process) SetTimeout(d time.Duration)           { p.timeout = d }
func (p *process) SetStdoutLogger(f func(string))       { p.stdoutLogger = f }
func (p *process) SetStderrLogger(f func(string))       { p.stderrLogger = f }

func (p *process) attachLogger(f func(string), label string, pipe func() (io.ReadCloser, error)) error {
	if f == nil {
		return nil
	}
	r, err := pipe()
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(r)
	go func() {
		for scanner.Scan() {
			f(fmt.Sprintf("%s: %s", label, scanner.Text()))
		}
	}()
	return nil
}

// Start starts the subprocess and blocks until it exits or ctx is
// cancelled, in which case it is asked to stop (SIGINT, then SIGKILL
// after the timeout).
func (p *process) Start(ctx context.Context) error {
	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return err
	}
	p.stdin = stdin

	if err := p.attachLogger(p.stdoutLogger, "stdout", p.cmd.StdoutPipe); err != nil {
		return err
	}
	if err := p.attachLogger(p.stderrLogger, "stderr", p.cmd.StderrPipe); err != nil {
		return err
	}

	if err := p.cmd.Start(); err != nil {
		return err
	}

	p.done = make(chan struct{})
	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.Stop()
		}
	}()

	err = p.cmd.Wait()
	close(p.done)

	// The encoder binary commonly exits non-zero on a deliberate
	// SIGINT stop; that is not a failure from this package's view.
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Stop sends SIGINT and escalates to SIGKILL if the process hasn't
// exited within the configured timeout.
func (p *process) Stop() {
	if p.cmd.Process == nil {
		return
	}
	p.cmd.Process.Signal(os.Interrupt) //nolint:errcheck
	select {
	case <-p.done:
	case <-time.After(p.timeout):
		p.cmd.Process.Signal(os.Kill) //nolint:errcheck
		<-p.done
	}
}

// ffmpegSink is the concrete Sink: one subprocess, fed raw frames or
// PCM samples on its stdin as they arrive. Video and audio for the
// same output are expected to run as two independently-started
// ffmpegSinks feeding two pipes into one muxing encoder command, the
// way the teacher pipes camera video and audio into one ffmpeg process
// via named FIFOs.
type ffmpegSink struct {
	newProcess NewProcessFunc
	cmd        func() *exec.Cmd
	log        *culog.Logger
	outputID   media.OutputId

	mu      sync.Mutex
	proc    Process
	cancel  context.CancelFunc
	started bool
}

// NewFFmpegSink returns a Sink that will, on first Send/SendAudio,
// start the subprocess built by cmd and keep feeding it raw bytes
// until Close.
func NewFFmpegSink(outputID media.OutputId, cmd func() *exec.Cmd, newProcess NewProcessFunc, log *culog.Logger) Sink {
	if newProcess == nil {
		newProcess = NewProcess
	}
	return &ffmpegSink{outputID: outputID, cmd: cmd, newProcess: newProcess, log: log}
}

func (s *ffmpegSink) ensureStarted() (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s.proc, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc := s.newProcess(s.cmd())
	proc.SetStdoutLogger(func(line string) { s.log.Debug().Output(s.outputID).Msgf("%s", line) })
	proc.SetStderrLogger(func(line string) { s.log.Warn().Output(s.outputID).Msgf("%s", line) })

	started := make(chan error, 1)
	go func() {
		started <- nil
		if err := proc.Start(ctx); err != nil {
			s.log.Error().Output(s.outputID).Msgf("encode process exited: %v", err)
		}
	}()
	<-started

	s.proc = proc
	s.cancel = cancel
	s.started = true
	return proc, nil
}

// Send writes one video frame's raw RGBA8 bytes to the encoder's
// stdin, or does nothing on EOS beyond what Close already handles.
func (s *ffmpegSink) Send(event media.PipelineEvent[media.Frame]) error {
	frame, ok := event.Data()
	if !ok {
		return nil
	}
	rgba, ok := frame.Data.(media.RGBA8)
	if !ok {
		return &perr.EncoderError{Msg: "frame is not RGBA8", Err: nil}
	}
	proc, err := s.ensureStarted()
	if err != nil {
		return &perr.EncoderError{Msg: "start encoder", Err: err}
	}
	if stdin := proc.Stdin(); stdin != nil {
		if _, err := stdin.Write(rgba.Bytes); err != nil {
			return &perr.EncoderError{Msg: "write video frame", Err: err}
		}
	}
	return nil
}

// SendAudio writes one tick's mixed PCM samples to the encoder's
// stdin as interleaved little-endian 16-bit stereo.
func (s *ffmpegSink) SendAudio(event media.PipelineEvent[media.OutputSamples]) error {
	batch, ok := event.Data()
	if !ok {
		return nil
	}
	proc, err := s.ensureStarted()
	if err != nil {
		return &perr.EncoderError{Msg: "start encoder", Err: err}
	}
	stdin := proc.Stdin()
	if stdin == nil {
		return nil
	}
	buf := make([]byte, 0, len(batch.Samples)*4)
	for _, sample := range batch.Samples {
		buf = append(buf,
			byte(sample.Left), byte(sample.Left>>8),
			byte(sample.Right), byte(sample.Right>>8))
	}
	if _, err := stdin.Write(buf); err != nil {
		return &perr.EncoderError{Msg: "write audio samples", Err: err}
	}
	return nil
}

// Close stops the subprocess if one was started.
func (s *ffmpegSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// VideoAdapter wraps a Sink to satisfy pkg/orchestrator.VideoSink,
// converting the rendered *ebiten.Image into a PipelineEvent[Frame]
// carrying RGBA8 pixel bytes.
type VideoAdapter struct {
	Sink Sink
}

// NewVideoAdapter returns a VideoAdapter over sink.
func NewVideoAdapter(sink Sink) *VideoAdapter {
	return &VideoAdapter{Sink: sink}
}

// SendFrame converts img to RGBA8 bytes and forwards it.
func (a *VideoAdapter) SendFrame(pts media.PTS, img *ebiten.Image) error {
	bounds := img.Bounds()
	buf := make([]byte, bounds.Dx()*bounds.Dy()*4)
	img.ReadPixels(buf)
	frame := media.Frame{
		Data:       media.RGBA8{Bytes: buf},
		Resolution: media.Resolution{Width: bounds.Dx(), Height: bounds.Dy()},
		PTS:        pts,
	}
	return a.Sink.Send(media.NewData(frame))
}

// SendEOS forwards the terminal marker and closes the sink.
func (a *VideoAdapter) SendEOS() error {
	err := a.Sink.Send(media.NewEOS[media.Frame]())
	a.Sink.Close()
	return err
}

// AudioAdapter wraps a Sink to satisfy pkg/orchestrator.AudioSink.
type AudioAdapter struct {
	Sink Sink
}

// NewAudioAdapter returns an AudioAdapter over sink.
func NewAudioAdapter(sink Sink) *AudioAdapter {
	return &AudioAdapter{Sink: sink}
}

// SendSamples forwards one tick's mixed batch.
func (a *AudioAdapter) SendSamples(pts media.PTS, samples media.OutputSamples) error {
	return a.Sink.SendAudio(media.NewData(samples))
}

// SendEOS forwards the terminal marker and closes the sink.
func (a *AudioAdapter) SendEOS() error {
	err := a.Sink.SendAudio(media.NewEOS[media.OutputSamples]())
	a.Sink.Close()
	return err
}
