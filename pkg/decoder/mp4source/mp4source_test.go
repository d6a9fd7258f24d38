package mp4source

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/media"
)

type fakeReader struct {
	count     uint32
	timescale uint32
	err       map[uint32]error
}

func (r *fakeReader) SampleCount() uint32 { return r.count }
func (r *fakeReader) Timescale() uint32   { return r.timescale }
func (r *fakeReader) ReadSample(i uint32) (Sample, bool, error) {
	if err, ok := r.err[i]; ok {
		return Sample{}, false, err
	}
	return Sample{Data: []byte{byte(i)}, StartTime: uint64(i) * 1000}, true, nil
}

func TestVideoSourceIteratesOneBasedExcludingSampleCount(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	reader := &fakeReader{count: 4, timescale: 1000}
	src := NewVideoSource("cam1", reader, media.Resolution{Width: 1, Height: 1}, "", nil, log)
	t.Cleanup(src.Close)

	var got []media.PTS
	for {
		ev := <-src.Frames()
		if ev.IsEOS() {
			break
		}
		frame, _ := ev.Data()
		got = append(got, frame.PTS)
	}
	// count=4 -> indices 1,2,3 read (original reader's own 1..sample_count
	// exclusive-upper-bound behavior, carried over unchanged).
	require.Len(t, got, 3)
}

func TestVideoSourceSkipsReadErrorsAndContinues(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	reader := &fakeReader{count: 3, timescale: 1000, err: map[uint32]error{1: fmt.Errorf("bad box")}}
	src := NewVideoSource("cam1", reader, media.Resolution{Width: 1, Height: 1}, "", nil, log)
	t.Cleanup(src.Close)

	var got int
	for {
		ev := <-src.Frames()
		if ev.IsEOS() {
			break
		}
		got++
	}
	require.Equal(t, 1, got)
}

func TestAudioSourceEmitsOneBatchPerSample(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	reader := &fakeReader{count: 3, timescale: 1000}
	src := NewAudioSource("mic1", reader, 48000, true, log)
	t.Cleanup(src.Close)

	var got int
	for {
		ev := <-src.Samples()
		if ev.IsEOS() {
			break
		}
		got++
	}
	require.Equal(t, 2, got)
}
