package audiomixer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/media"
)

func TestMixSumClipSilencePlusSilenceIsSilence(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{
		Volumes:   map[media.InputId]float64{"a": 1, "b": 1},
		Reduction: SumClip,
	})

	silence := &media.InputSamples{
		Samples:    make([]media.Sample, 10),
		StartPTS:   0,
		SampleRate: 48000,
	}
	period := 10 * time.Second / 48000
	result := m.Mix(0, period, media.SamplesSet{"a": silence, "b": silence})

	out := result["out1"]
	require.Len(t, out.Samples, 10)
	for _, s := range out.Samples {
		require.Zero(t, s.Left)
		require.Zero(t, s.Right)
	}
}

func TestMixSumClipCancelsOppositeSignals(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{
		Volumes:   map[media.InputId]float64{"a": 1, "b": 1},
		Reduction: SumClip,
	})

	pos := &media.InputSamples{Samples: []media.Sample{{Left: 1000, Right: 1000}}, SampleRate: 48000}
	neg := &media.InputSamples{Samples: []media.Sample{{Left: -1000, Right: -1000}}, SampleRate: 48000}

	result := m.Mix(0, time.Second/48000, media.SamplesSet{"a": pos, "b": neg})
	require.Equal(t, int16(0), result["out1"].Samples[0].Left)
	require.Equal(t, int16(0), result["out1"].Samples[0].Right)
}

func TestMixSumScaleAvoidsClipping(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{
		Volumes:   map[media.InputId]float64{"a": 1, "b": 1},
		Reduction: SumScale,
	})

	loud := &media.InputSamples{Samples: []media.Sample{{Left: 30000, Right: 30000}}, SampleRate: 48000}
	result := m.Mix(0, time.Second/48000, media.SamplesSet{"a": loud, "b": loud})

	require.LessOrEqual(t, result["out1"].Samples[0].Left, int16(32767))
	require.Greater(t, result["out1"].Samples[0].Left, int16(0))
}

func TestMixSumClipHardClipsLoudSignal(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{
		Volumes:   map[media.InputId]float64{"a": 1, "b": 1},
		Reduction: SumClip,
	})

	loud := &media.InputSamples{Samples: []media.Sample{{Left: 30000, Right: 30000}}, SampleRate: 48000}
	result := m.Mix(0, time.Second/48000, media.SamplesSet{"a": loud, "b": loud})

	require.Equal(t, int16(32767), result["out1"].Samples[0].Left)
}

func TestUpdateOutputRejectsUnregistered(t *testing.T) {
	m := New(48000)
	err := m.UpdateOutput("missing", AudioMixingParams{})
	require.Error(t, err)
}

func TestUnregisterOutputRemovesFromMix(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{Volumes: map[media.InputId]float64{"a": 1}})
	m.UnregisterOutput("out1")

	result := m.Mix(0, time.Second/48000, media.SamplesSet{})
	require.NotContains(t, result, media.OutputId("out1"))
}

func TestMixMissingInputsYieldFullWindowOfSilence(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{
		Volumes:   map[media.InputId]float64{"a": 1},
		Reduction: SumClip,
	})

	windowStart := media.PTS(5 * time.Second)
	period := 20 * time.Millisecond
	result := m.Mix(windowStart, period, media.SamplesSet{})

	out := result["out1"]
	require.Equal(t, windowStart, out.StartPTS)
	require.Len(t, out.Samples, int(float64(period)/float64(time.Second)*48000))
	for _, s := range out.Samples {
		require.Zero(t, s.Left)
		require.Zero(t, s.Right)
	}
}

func TestMixOutputIsWindowAnchoredNotInputAnchored(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{
		Volumes:   map[media.InputId]float64{"a": 1},
		Reduction: SumClip,
	})

	// The input's own StartPTS is irrelevant to the mixer's output
	// StartPTS, which must always be the tick's window start so
	// consecutive batches stay contiguous.
	in := &media.InputSamples{
		Samples:    []media.Sample{{Left: 100, Right: 100}},
		StartPTS:   media.PTS(123 * time.Millisecond),
		SampleRate: 48000,
	}
	windowStart := media.PTS(100 * time.Millisecond)
	period := time.Second / 48000
	result := m.Mix(windowStart, period, media.SamplesSet{"a": in})

	require.Equal(t, windowStart, result["out1"].StartPTS)
}

func TestMixMonoDownmixesChannels(t *testing.T) {
	m := New(48000)
	m.RegisterOutput("out1", AudioMixingParams{
		Volumes:   map[media.InputId]float64{"a": 1},
		Reduction: SumClip,
		Mono:      true,
	})

	in := &media.InputSamples{Samples: []media.Sample{{Left: 100, Right: -100}}, SampleRate: 48000}
	result := m.Mix(0, time.Second/48000, media.SamplesSet{"a": in})

	out := result["out1"]
	require.True(t, out.Mono)
	require.Equal(t, out.Samples[0].Left, out.Samples[0].Right)
}

func TestResampleNearestChangesLength(t *testing.T) {
	samples := make([]media.Sample, 100)
	out := resampleNearest(samples, 48000, 24000)
	require.InDelta(t, 50, len(out), 1)
}
