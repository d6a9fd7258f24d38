package media

import "time"

// Sample is one PCM frame: a left/right pair, or left==right for mono.
type Sample struct {
	Left  int16
	Right int16
}

// InputSamples is a finite batch of PCM samples produced by one
// decoder packet, annotated with the PTS of its first sample and the
// sample rate it was produced at. Batches from the same input are
// concatenable as long as they are contiguous in time; the Input
// Queue is responsible for stitching them into fixed windows.
type InputSamples struct {
	Samples    []Sample
	StartPTS   PTS
	SampleRate int
	Mono       bool
}

// Duration returns the wall-clock duration covered by the batch at its
// own sample rate.
func (s InputSamples) Duration() (d float64) {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// EndPTS returns the PTS one sample period past the last sample, i.e.
// the PTS the next contiguous batch is expected to start at.
func (s InputSamples) EndPTS() PTS {
	if s.SampleRate == 0 || len(s.Samples) == 0 {
		return s.StartPTS
	}
	nanosPerSample := 1e9 / float64(s.SampleRate)
	return s.StartPTS.Add(time.Duration(float64(len(s.Samples)) * nanosPerSample))
}

// Concat appends other's samples after s's, provided other starts
// where s ends (contiguity is the caller's responsibility to check;
// Concat does not verify PTS alignment itself so that resamples can be
// stitched deliberately by the mixer).
func (s InputSamples) Concat(other InputSamples) InputSamples {
	out := InputSamples{
		Samples:    make([]Sample, 0, len(s.Samples)+len(other.Samples)),
		StartPTS:   s.StartPTS,
		SampleRate: s.SampleRate,
		Mono:       s.Mono && other.Mono,
	}
	out.Samples = append(out.Samples, s.Samples...)
	out.Samples = append(out.Samples, other.Samples...)
	return out
}
