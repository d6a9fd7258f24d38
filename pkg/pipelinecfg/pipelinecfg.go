// Package pipelinecfg loads the pipeline-level YAML configuration
// this compositor starts from: output framerate, audio batch period,
// default buffer durations, GPU backend selection, and the declarative
// list of inputs/outputs to register at startup. Grounded on the
// teacher's pkg/storage.NewConfigEnv (yaml.v2 struct tags, unmarshal
// then fill in defaults, then validate) and pkg/monitor.Config's
// typed-getter style for the per-input/output sub-configs.
package pipelinecfg

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/bialy-nvr/compositor/pkg/media"
)

// Config is the pipeline's top-level configuration.
type Config struct {
	// OutputFramerate is the target output video rate in frames per
	// second; the Orchestrator's target pts advances by 1/OutputFramerate
	// each tick.
	OutputFramerate int `yaml:"outputFramerate"`
	// AudioBatchPeriod is the duration of output audio covered by one
	// tick's OutputSamples batch (spec.md's "e.g. 20ms").
	AudioBatchPeriod time.Duration `yaml:"audioBatchPeriod"`
	// DefaultBufferDuration sizes an input's bounded channels when its
	// own Options.BufferDuration isn't set.
	DefaultBufferDuration time.Duration `yaml:"defaultBufferDuration"`
	// AheadOfTimeProcessing selects the Input Queue's missing-required-input
	// policy: if true, a tick proceeds with the last known frame instead
	// of blocking up to BufferDuration.
	AheadOfTimeProcessing bool `yaml:"aheadOfTimeProcessing"`
	// GPUBackend names the ebiten-backed rendering backend to
	// initialize (e.g. "opengl", "metal", "directx" — cmd/compositor
	// passes it straight through to ebiten as EBITENGINE_GRAPHICS_LIBRARY).
	GPUBackend string `yaml:"gpuBackend"`
	// AssetCachePath is the bbolt database file pkg/assets persists
	// registered images' raw source bytes to. Empty disables the durable
	// cache.
	AssetCachePath string `yaml:"assetCachePath"`
	// LogDBPath is the sqlite database pkg/culog persists structured
	// pipeline log entries to.
	LogDBPath string `yaml:"logDbPath"`
	// AudioSampleRate is the sample rate every output's mixed audio is
	// produced at; the Audio Mixer resamples each input up or down to
	// it.
	AudioSampleRate int `yaml:"audioSampleRate"`

	Inputs  []InputConfig  `yaml:"inputs"`
	Outputs []OutputConfig `yaml:"outputs"`
}

// InputConfig declares one input to register with the Input Queue at
// startup.
type InputConfig struct {
	ID             media.InputId `yaml:"id"`
	Kind           string        `yaml:"kind"` // "rtp", "mp4", "hls"
	Required       bool          `yaml:"required"`
	Offset         time.Duration `yaml:"offset"`
	BufferDuration time.Duration `yaml:"bufferDuration"`

	// Source-specific fields; only the ones matching Kind are read.
	SDPPath      string `yaml:"sdpPath"`      // rtp
	RTPVideoAddr string `yaml:"rtpVideoAddr"` // rtp, e.g. "0.0.0.0:6000"
	RTPAudioAddr string `yaml:"rtpAudioAddr"` // rtp, e.g. "0.0.0.0:6002"
	FilePath     string `yaml:"filePath"`     // mp4
	FragmentDir  string `yaml:"fragmentDir"`  // mp4
	PlaylistPath string `yaml:"playlistPath"` // hls

	Resolution media.Resolution `yaml:"resolution"`
	SampleRate int              `yaml:"sampleRate"`
	Mono       bool             `yaml:"mono"`
}

// OutputConfig declares one output to register with the Orchestrator
// at startup.
type OutputConfig struct {
	ID           media.OutputId   `yaml:"id"`
	Resolution   media.Resolution `yaml:"resolution"`
	EndCondition string           `yaml:"endCondition"` // "any_input", "all_inputs", "never", "any_of:a,b", "all_of:a,b"
	EncoderCmd   []string         `yaml:"encoderCmd"`
	HasAudio     bool             `yaml:"hasAudio"`
	// AudioMono collapses this output's mixed audio to a single
	// channel; otherwise the mix is stereo.
	AudioMono bool `yaml:"audioMono"`
}

// Load parses pipeline configuration from body and fills in defaults
// the way NewConfigEnv fills in unset fields after unmarshal.
func Load(body []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal pipeline config: %w", err)
	}

	if cfg.OutputFramerate == 0 {
		cfg.OutputFramerate = 30
	}
	if cfg.AudioBatchPeriod == 0 {
		cfg.AudioBatchPeriod = 20 * time.Millisecond
	}
	if cfg.DefaultBufferDuration == 0 {
		cfg.DefaultBufferDuration = 100 * time.Millisecond
	}
	if cfg.GPUBackend == "" {
		cfg.GPUBackend = "opengl"
	}
	if cfg.AudioSampleRate == 0 {
		cfg.AudioSampleRate = 48000
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.OutputFramerate <= 0 {
		return fmt.Errorf("outputFramerate must be positive, got %d", c.OutputFramerate)
	}
	if c.AudioBatchPeriod <= 0 {
		return fmt.Errorf("audioBatchPeriod must be positive, got %v", c.AudioBatchPeriod)
	}
	seen := map[media.InputId]bool{}
	for _, in := range c.Inputs {
		if in.ID == "" {
			return fmt.Errorf("input config missing id")
		}
		if seen[in.ID] {
			return fmt.Errorf("duplicate input id %q", in.ID)
		}
		seen[in.ID] = true
		switch in.Kind {
		case "rtp", "mp4", "hls":
		default:
			return fmt.Errorf("input %q: unknown kind %q", in.ID, in.Kind)
		}
	}
	seenOut := map[media.OutputId]bool{}
	for _, out := range c.Outputs {
		if out.ID == "" {
			return fmt.Errorf("output config missing id")
		}
		if seenOut[out.ID] {
			return fmt.Errorf("duplicate output id %q", out.ID)
		}
		seenOut[out.ID] = true
		if _, err := ParseEndCondition(out.EndCondition); err != nil {
			return fmt.Errorf("output %q: %w", out.ID, err)
		}
	}
	return nil
}

// TickDuration returns the interval between ticks implied by
// OutputFramerate.
func (c *Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.OutputFramerate)
}

// EndConditionSpec is the parsed form of an OutputConfig.EndCondition
// string, resolved against pkg/orchestrator's EndCondition variants by
// the caller (pipelinecfg has no dependency on pkg/orchestrator, to
// avoid a config-package-imports-runtime-package cycle risk: callers
// pass Inputs into orchestrator.AnyOf/AllOf themselves).
type EndConditionSpec struct {
	Kind   string // "any_of", "all_of", "any_input", "all_inputs", "never"
	Inputs []media.InputId
}

// ParseEndCondition parses the compact "kind" or "kind:a,b,c" syntax
// OutputConfig.EndCondition uses in YAML.
func ParseEndCondition(s string) (EndConditionSpec, error) {
	if s == "" {
		s = "never"
	}
	kind, rest, _ := strings.Cut(s, ":")
	switch kind {
	case "never", "any_input", "all_inputs":
		return EndConditionSpec{Kind: kind}, nil
	case "any_of", "all_of":
		if rest == "" {
			return EndConditionSpec{}, fmt.Errorf("endCondition %q requires a non-empty input list", s)
		}
		var inputs []media.InputId
		for _, part := range strings.Split(rest, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			inputs = append(inputs, media.InputId(part))
		}
		return EndConditionSpec{Kind: kind, Inputs: inputs}, nil
	default:
		return EndConditionSpec{}, fmt.Errorf("unknown endCondition %q", s)
	}
}
