package pipelinecfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/media"
)

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load([]byte(""))
	require.NoError(t, err)
	require.Equal(t, 30, cfg.OutputFramerate)
	require.Equal(t, 20*time.Millisecond, cfg.AudioBatchPeriod)
	require.Equal(t, 100*time.Millisecond, cfg.DefaultBufferDuration)
	require.Equal(t, "opengl", cfg.GPUBackend)
	require.Equal(t, 48000, cfg.AudioSampleRate)
}

func TestLoadParsesInputsAndOutputs(t *testing.T) {
	body := []byte(`
outputFramerate: 60
audioBatchPeriod: 10ms
inputs:
  - id: cam1
    kind: rtp
    required: true
    sdpPath: /etc/cam1.sdp
    resolution:
      width: 1920
      height: 1080
outputs:
  - id: out1
    endCondition: "any_of:cam1,cam2"
    resolution:
      width: 1920
      height: 1080
`)
	cfg, err := Load(body)
	require.NoError(t, err)
	require.Equal(t, 60, cfg.OutputFramerate)
	require.Equal(t, 10*time.Millisecond, cfg.AudioBatchPeriod)
	require.Len(t, cfg.Inputs, 1)
	require.Equal(t, media.InputId("cam1"), cfg.Inputs[0].ID)
	require.True(t, cfg.Inputs[0].Required)
	require.Equal(t, 1920, cfg.Inputs[0].Resolution.Width)
	require.Len(t, cfg.Outputs, 1)
	require.Equal(t, media.OutputId("out1"), cfg.Outputs[0].ID)

	spec, err := ParseEndCondition(cfg.Outputs[0].EndCondition)
	require.NoError(t, err)
	require.Equal(t, "any_of", spec.Kind)
	require.Equal(t, []media.InputId{"cam1", "cam2"}, spec.Inputs)
}

func TestLoadRejectsUnknownInputKind(t *testing.T) {
	_, err := Load([]byte(`
inputs:
  - id: x
    kind: bogus
`))
	require.Error(t, err)
}

func TestLoadRejectsDuplicateOutputID(t *testing.T) {
	_, err := Load([]byte(`
outputs:
  - id: out1
  - id: out1
`))
	require.Error(t, err)
}

func TestParseEndConditionVariants(t *testing.T) {
	cases := map[string]string{
		"":                "never",
		"never":           "never",
		"any_input":       "any_input",
		"all_inputs":      "all_inputs",
		"all_of:a, b, c":  "all_of",
	}
	for input, wantKind := range cases {
		spec, err := ParseEndCondition(input)
		require.NoError(t, err, input)
		require.Equal(t, wantKind, spec.Kind, input)
	}

	_, err := ParseEndCondition("any_of:")
	require.Error(t, err)
	_, err = ParseEndCondition("garbage")
	require.Error(t, err)
}

func TestTickDurationMatchesFramerate(t *testing.T) {
	cfg, err := Load([]byte("outputFramerate: 25\n"))
	require.NoError(t, err)
	require.Equal(t, 40*time.Millisecond, cfg.TickDuration())
}
