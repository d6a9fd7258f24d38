// Package audiomixer is the Audio Mixer: for each output it resamples
// every contributing input's samples to the output's sample rate,
// applies per-input volume, and reduces them into one OutputSamples
// buffer per tick using the output's chosen reduction strategy.
package audiomixer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/perr"
)

// ReductionStrategy picks how multiple inputs' samples combine.
type ReductionStrategy int

const (
	// SumClip adds samples and clamps to the int16 range. This is the
	// default: cheap, and correct as long as inputs don't clip together
	// often.
	SumClip ReductionStrategy = iota
	// SumScale adds samples, then rescales the whole output tick down
	// if the sum would have clipped, preserving relative loudness
	// across channels instead of hard-clipping the loudest moment.
	SumScale
)

// AudioMixingParams configures one output's mix: per-input volume (0
// mutes, 1 is unity gain, >1 amplifies), the reduction strategy
// combining them, and the output's channel layout.
type AudioMixingParams struct {
	Volumes   map[media.InputId]float64
	Reduction ReductionStrategy
	// Mono collapses the mixed output to a single channel (duplicated
	// into both Sample fields) instead of the default stereo layout.
	Mono bool
}

type registeredOutput struct {
	params     AudioMixingParams
	sampleRate int
}

// AudioMixer owns the per-output mixing configuration and produces one
// OutputSamples per output per Mix call.
type AudioMixer struct {
	mu               sync.Mutex
	outputSampleRate int
	outputs          map[media.OutputId]*registeredOutput
}

// New returns an Audio Mixer producing samples at outputSampleRate.
func New(outputSampleRate int) *AudioMixer {
	return &AudioMixer{
		outputSampleRate: outputSampleRate,
		outputs:          map[media.OutputId]*registeredOutput{},
	}
}

// RegisterOutput declares an output's mixing configuration.
// Re-registering an already-registered id replaces its params.
func (m *AudioMixer) RegisterOutput(id media.OutputId, params AudioMixingParams) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[id] = &registeredOutput{params: params, sampleRate: m.outputSampleRate}
}

// UnregisterOutput removes an output from the mix entirely.
func (m *AudioMixer) UnregisterOutput(id media.OutputId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outputs, id)
}

// UpdateOutput replaces a registered output's mixing params.
func (m *AudioMixer) UpdateOutput(id media.OutputId, params AudioMixingParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.outputs[id]
	if !ok {
		return &perr.RegistrationError{Kind: "output", Msg: fmt.Sprintf("output %q is not registered", id)}
	}
	out.params = params
	return nil
}

// Mix produces one fixed-duration OutputSamples per registered output,
// windowed to [windowStart, windowStart+period). Inputs absent from
// samplesSet contribute silence, as does any input whose contribution
// falls outside the window once resampled — the output is always
// length round(period*outputSampleRate), contiguous with the previous
// tick's batch regardless of what data showed up.
func (m *AudioMixer) Mix(windowStart media.PTS, period time.Duration, samplesSet media.SamplesSet) map[media.OutputId]media.OutputSamples {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[media.OutputId]media.OutputSamples, len(m.outputs))
	for outputID, out := range m.outputs {
		result[outputID] = mixOne(out.params, out.sampleRate, windowStart, period, samplesSet)
	}
	return result
}

func mixOne(params AudioMixingParams, outputSampleRate int, windowStart media.PTS, period time.Duration, samplesSet media.SamplesSet) media.OutputSamples {
	length := int(math.Round(period.Seconds() * float64(outputSampleRate)))
	if length < 0 {
		length = 0
	}
	sums := make([]accumSample, length)

	for inputID, volume := range params.Volumes {
		in, ok := samplesSet[inputID]
		if !ok || in == nil || volume == 0 {
			continue
		}
		resampled := resampleNearest(in.Samples, in.SampleRate, outputSampleRate)
		scaled := scaleVolume(resampled, volume)

		offset := int(math.Round(in.StartPTS.Sub(windowStart).Seconds() * float64(outputSampleRate)))
		for i, s := range scaled {
			idx := i + offset
			if idx < 0 || idx >= length {
				continue
			}
			sums[idx].left += int32(s.Left)
			sums[idx].right += int32(s.Right)
		}
	}

	var out []media.Sample
	switch params.Reduction {
	case SumScale:
		out = scaleToAvoidClipping(sums)
	default:
		out = clipSamples(sums)
	}
	if params.Mono {
		downmix(out)
	}
	return media.OutputSamples{Samples: out, StartPTS: windowStart, Mono: params.Mono}
}

// downmix collapses each sample's two channels into their average,
// written into both, in place.
func downmix(samples []media.Sample) {
	for i, s := range samples {
		avg := int16((int32(s.Left) + int32(s.Right)) / 2)
		samples[i] = media.Sample{Left: avg, Right: avg}
	}
}

type accumSample struct{ left, right int32 }

// resampleNearest maps each destination sample to its nearest source
// sample by time, matching the source project's stated nearest-
// neighbour resampling rather than a higher-quality filter.
func resampleNearest(samples []media.Sample, srcRate, dstRate int) []media.Sample {
	if srcRate == dstRate || srcRate == 0 || len(samples) == 0 {
		return samples
	}
	dstLen := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	out := make([]media.Sample, dstLen)
	for i := range out {
		srcIdx := int(math.Round(float64(i) * float64(srcRate) / float64(dstRate)))
		if srcIdx >= len(samples) {
			srcIdx = len(samples) - 1
		}
		out[i] = samples[srcIdx]
	}
	return out
}

func scaleVolume(samples []media.Sample, volume float64) []media.Sample {
	out := make([]media.Sample, len(samples))
	for i, s := range samples {
		out[i] = media.Sample{
			Left:  int16(clampFloat(float64(s.Left)*volume, math.MinInt16, math.MaxInt16)),
			Right: int16(clampFloat(float64(s.Right)*volume, math.MinInt16, math.MaxInt16)),
		}
	}
	return out
}

// clipSamples clamps each channel's int32 accumulation independently
// into int16 range: a clipped channel clips, the other may not.
func clipSamples(samples []accumSample) []media.Sample {
	out := make([]media.Sample, len(samples))
	for i, s := range samples {
		out[i] = media.Sample{
			Left:  int16(clampFloat(float64(s.left), math.MinInt16, math.MaxInt16)),
			Right: int16(clampFloat(float64(s.right), math.MinInt16, math.MaxInt16)),
		}
	}
	return out
}

// scaleToAvoidClipping rescales the whole buffer down by a single
// factor, derived from its loudest sample across both channels, so
// relative levels between channels and over time are preserved instead
// of hard-clipping only the moments that overflow.
func scaleToAvoidClipping(samples []accumSample) []media.Sample {
	peak := int32(0)
	for _, s := range samples {
		if v := abs32(s.left); v > peak {
			peak = v
		}
		if v := abs32(s.right); v > peak {
			peak = v
		}
	}

	scale := 1.0
	if peak > math.MaxInt16 {
		scale = float64(math.MaxInt16) / float64(peak)
	}

	out := make([]media.Sample, len(samples))
	for i, s := range samples {
		out[i] = media.Sample{
			Left:  int16(float64(s.left) * scale),
			Right: int16(float64(s.right) * scale),
		}
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
