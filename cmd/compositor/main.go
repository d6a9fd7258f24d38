// Command compositor starts the pipeline from a single YAML
// configuration file: it wires the Input Queue, Scene State, Audio
// Mixer, Renderer Driver, and Pipeline Orchestrator, registers every
// configured input and output, and runs until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/pion/rtp/v2"

	"github.com/bialy-nvr/compositor/pkg/assets"
	"github.com/bialy-nvr/compositor/pkg/audiomixer"
	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/decoder"
	"github.com/bialy-nvr/compositor/pkg/decoder/hlssource"
	"github.com/bialy-nvr/compositor/pkg/decoder/rtpsource"
	"github.com/bialy-nvr/compositor/pkg/encodeproc"
	"github.com/bialy-nvr/compositor/pkg/inputqueue"
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/orchestrator"
	"github.com/bialy-nvr/compositor/pkg/pipelinecfg"
	"github.com/bialy-nvr/compositor/pkg/pipelinemetrics"
	"github.com/bialy-nvr/compositor/pkg/renderer"
	"github.com/bialy-nvr/compositor/pkg/scene"
	"github.com/bialy-nvr/compositor/pkg/sysmon"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "compositor:", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "pipeline.yaml", "path to pipeline YAML configuration")
	flag.Parse()

	body, err := os.ReadFile(*configFlag)
	if err != nil {
		return fmt.Errorf("could not read %v: %w", *configFlag, err)
	}

	cfg, err := pipelinecfg.Load(body)
	if err != nil {
		return fmt.Errorf("could not load pipeline config: %w", err)
	}

	if cfg.GPUBackend != "" {
		// ebiten reads this at graphics-driver init time to pick a
		// specific backend instead of auto-detecting one.
		os.Setenv("EBITENGINE_GRAPHICS_LIBRARY", cfg.GPUBackend) //nolint:errcheck
	}

	app, err := newApp(cfg)
	if err != nil {
		return fmt.Errorf("could not build app: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	fatal := make(chan error, 1)
	go func() { fatal <- app.run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case runErr = <-fatal:
			cancel()
			return
		case sig := <-stop:
			app.log.Info().Src("main").Msgf("received %v, stopping", sig)
			cancel()
		}
		// app.run hasn't necessarily returned yet just because ctx was
		// cancelled; wait for it so shutdown never closes the logger
		// while it's still emitting entries.
		runErr = <-fatal
	}()

	ebiten.SetWindowSize(1, 1)
	ebiten.SetWindowTitle("compositor")
	game := &driverGame{ctx: ctx}
	if gameErr := ebiten.RunGame(game); gameErr != nil && gameErr != ebiten.Termination {
		runErr = gameErr
	}

	<-stopped
	app.shutdown()
	return runErr
}

// driverGame exists only so the Orchestrator's tick loop runs under an
// active ebiten graphics context; ebiten owns the GPU driver from the
// goroutine that calls RunGame, and every *ebiten.Image operation the
// Renderer Driver performs needs that context alive. The Orchestrator
// paces itself against the Input Queue's own target pts, not against
// ebiten's per-frame Update calls, so Update only watches for ctx to
// be cancelled (by a signal or a fatal pipeline error) to end the
// window loop.
type driverGame struct {
	ctx context.Context
}

func (g *driverGame) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	return nil
}

func (g *driverGame) Draw(*ebiten.Image) {}

func (g *driverGame) Layout(int, int) (int, int) { return 1, 1 }

// app holds every long-lived pipeline component newApp wires together.
type app struct {
	log            *culog.Logger
	metrics        *pipelinemetrics.Metrics
	sys            *sysmon.Monitor
	assetCache     *assets.Cache
	assetCachePath string
	orch           *orchestrator.Orchestrator

	closers []func()
	wg      sync.WaitGroup
}

func newApp(cfg *pipelinecfg.Config) (*app, error) { //nolint:funlen
	logger := culog.NewLogger()
	metrics := pipelinemetrics.New()
	sys := sysmon.New(5*time.Second, 90, 90, logger)

	var assetWG sync.WaitGroup
	cache := assets.NewCache(cfg.AssetCachePath, &assetWG)
	registry := assets.NewRegistry(cache, logger)

	sceneState := scene.NewSceneState()
	mixer := audiomixer.New(cfg.AudioSampleRate)
	renderDriver := renderer.New(registry)
	queue := inputqueue.NewQueue(cfg.TickDuration(), cfg.AudioBatchPeriod, cfg.AheadOfTimeProcessing)
	orch := orchestrator.New(queue, sceneState, mixer, renderDriver, logger)

	a := &app{log: logger, metrics: metrics, sys: sys, assetCache: cache, assetCachePath: cfg.AssetCachePath, orch: orch}

	for _, in := range cfg.Inputs {
		if in.BufferDuration == 0 {
			in.BufferDuration = cfg.DefaultBufferDuration
		}
		if err := a.registerInput(queue, sceneState, orch, in); err != nil {
			a.shutdown()
			return nil, fmt.Errorf("input %q: %w", in.ID, err)
		}
	}

	for _, out := range cfg.Outputs {
		a.registerOutput(sceneState, mixer, orch, out)
	}
	a.metrics.SetActiveOutputs(len(cfg.Outputs))

	return a, nil
}

func (a *app) registerInput(
	queue *inputqueue.Queue,
	sceneState *scene.SceneState,
	orch *orchestrator.Orchestrator,
	in pipelinecfg.InputConfig,
) error {
	src, closer, err := newDecoderSource(in, a.log)
	if err != nil {
		return err
	}

	opts := inputqueue.Options{
		Required:       in.Required,
		Offset:         in.Offset,
		BufferDuration: in.BufferDuration,
	}
	if err := queue.AddInput(in.ID, src, opts); err != nil {
		closer()
		return err
	}

	sceneState.RegisterInput(in.ID)
	orch.OnInputRegistered(in.ID)
	a.closers = append(a.closers, closer)
	a.metrics.SetActiveInputs(queue.InputCount())
	return nil
}

func (a *app) registerOutput(
	sceneState *scene.SceneState,
	mixer *audiomixer.AudioMixer,
	orch *orchestrator.Orchestrator,
	out pipelinecfg.OutputConfig,
) {
	end, err := pipelinecfg.ParseEndCondition(out.EndCondition)
	if err != nil {
		a.log.Error().Output(out.ID).Msgf("invalid end condition, output dropped: %v", err)
		return
	}
	orchEnd := toOrchestratorEndCondition(end)

	cmdFn := ffmpegCommand(out.EncoderCmd)
	sink := encodeproc.NewFFmpegSink(out.ID, cmdFn, encodeproc.NewProcess, a.log)

	sceneState.RegisterOutput(out.ID, out.Resolution)
	orch.RegisterVideoOutput(out.ID, encodeproc.NewVideoAdapter(sink), orchEnd)

	if out.HasAudio {
		mixer.RegisterOutput(out.ID, audiomixer.AudioMixingParams{
			Volumes:   map[media.InputId]float64{},
			Reduction: audiomixer.SumClip,
			Mono:      out.AudioMono,
		})
		orch.RegisterAudioOutput(out.ID, encodeproc.NewAudioAdapter(sink), orchEnd)
	}
}

// run starts every background loop and blocks on the Orchestrator's
// tick loop until ctx is cancelled or a fatal error occurs.
func (a *app) run(ctx context.Context) error {
	logFeed, cancelLogFeed := a.log.Subscribe()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		culog.LogToStdout(logFeed)
	}()
	defer cancelLogFeed()

	if a.assetCachePath != "" {
		if err := a.assetCache.Init(ctx); err != nil {
			return fmt.Errorf("could not open asset cache: %w", err)
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sys.Run(ctx)
	}()

	a.log.Info().Src("main").Msg("pipeline starting")
	return a.runTicks(ctx)
}

// runTicks drives the Orchestrator one tick at a time instead of
// calling its own Run loop directly, so each tick's wall-clock cost is
// observed on the tick-duration histogram.
func (a *app) runTicks(ctx context.Context) error {
	for {
		start := time.Now()
		if _, err := a.orch.RunTick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		a.metrics.ObserveTick(time.Since(start))
		if ctx.Err() != nil {
			return nil
		}
	}
}

// shutdown releases every input's decoder resources and waits for
// background loops to exit. Call after run's context has been
// cancelled.
func (a *app) shutdown() {
	for _, closer := range a.closers {
		closer()
	}
	a.wg.Wait()
	a.log.Close()
}

func toOrchestratorEndCondition(spec pipelinecfg.EndConditionSpec) orchestrator.EndCondition {
	switch spec.Kind {
	case "any_of":
		return orchestrator.AnyOf{Inputs: spec.Inputs}
	case "all_of":
		return orchestrator.AllOf{Inputs: spec.Inputs}
	case "any_input":
		return orchestrator.AnyInput{}
	case "all_inputs":
		return orchestrator.AllInputs{}
	default:
		return orchestrator.Never{}
	}
}

func ffmpegCommand(args []string) func() *exec.Cmd {
	return func() *exec.Cmd {
		if len(args) == 0 {
			return exec.Command("ffmpeg", "-f", "rawvideo", "-i", "-", "-f", "null", "-")
		}
		return exec.Command(args[0], args[1:]...)
	}
}

// newDecoderSource builds the Decoder Adapter matching in.Kind and
// returns a close function releasing every resource it opened
// (sockets, goroutines).
func newDecoderSource(in pipelinecfg.InputConfig, log *culog.Logger) (inputqueue.DataSource, func(), error) {
	switch in.Kind {
	case "rtp":
		return newRTPSource(in, log)
	case "hls":
		src := hlssource.NewSource(in.ID, in.PlaylistPath, in.Resolution, 0, log)
		return src, src.Close, nil
	case "mp4":
		return newMP4Source(in, log)
	default:
		return nil, nil, fmt.Errorf("unknown input kind %q", in.Kind)
	}
}

// dualSource pairs an RTP video source and audio source into one
// inputqueue.DataSource. Each source's unused half (the video source's
// Samples channel, the audio source's Frames channel) is drained in
// the background so CloseStream's EOS publish on that half never
// blocks forever with nobody listening.
type dualSource struct {
	video *rtpsource.VideoSource
	audio *rtpsource.AudioSource
}

func (d dualSource) Frames() <-chan media.PipelineEvent[media.Frame] { return d.video.Frames() }
func (d dualSource) Samples() <-chan media.PipelineEvent[media.InputSamples] {
	return d.audio.Samples()
}
func (d dualSource) Close() {
	d.video.Close()
	d.audio.Close()
}

func drainFrames(ch <-chan media.PipelineEvent[media.Frame]) {
	for range ch {
	}
}

func drainSamples(ch <-chan media.PipelineEvent[media.InputSamples]) {
	for range ch {
	}
}

func newRTPSource(in pipelinecfg.InputConfig, log *culog.Logger) (inputqueue.DataSource, func(), error) {
	sdpBody, err := os.ReadFile(in.SDPPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read sdp: %w", err)
	}
	rates, err := rtpsource.ClockRatesFromSDP(sdpBody)
	if err != nil {
		return nil, nil, fmt.Errorf("parse sdp: %w", err)
	}
	var clockRate uint32 = 90000
	for _, rate := range rates {
		clockRate = rate
		break
	}

	video := rtpsource.NewVideoSource(in.ID, in.Resolution, clockRate, log)
	audio := rtpsource.NewAudioSource(in.ID, in.SampleRate, in.Mono, clockRate, log)
	go drainFrames(audio.Frames())
	go drainSamples(video.Samples())

	videoConn, err := net.ListenPacket("udp", in.RTPVideoAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen video rtp: %w", err)
	}
	var audioConn net.PacketConn
	if in.RTPAudioAddr != "" {
		audioConn, err = net.ListenPacket("udp", in.RTPAudioAddr)
		if err != nil {
			videoConn.Close() //nolint:errcheck
			return nil, nil, fmt.Errorf("listen audio rtp: %w", err)
		}
	}

	go pumpRTP(videoConn, video.PushPacket, log, in.ID)
	if audioConn != nil {
		go pumpRTP(audioConn, audio.PushPacket, log, in.ID)
	}

	closer := func() {
		videoConn.Close() //nolint:errcheck
		if audioConn != nil {
			audioConn.Close() //nolint:errcheck
		}
		video.CloseStream()
		audio.CloseStream()
		video.Close()
		audio.Close()
	}
	return dualSource{video: video, audio: audio}, closer, nil
}

func pumpRTP(conn net.PacketConn, push func(*rtp.Packet), log *culog.Logger, id media.InputId) {
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			log.Warn().Input(id).Msgf("discarding malformed rtp packet: %v", err)
			continue
		}
		push(&pkt)
	}
}

// newMP4Source always returns an error: mp4source.SampleReader requires
// an MP4 box-table reader, and this repository contains no MP4 demuxer
// to build one on.
func newMP4Source(in pipelinecfg.InputConfig, _ *culog.Logger) (inputqueue.DataSource, func(), error) {
	return nil, nil, fmt.Errorf("mp4 input %q: no SampleReader implementation wired yet", in.ID)
}

var _ decoder.Source = dualSource{}
