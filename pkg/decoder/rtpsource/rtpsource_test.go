package rtpsource

import (
	"testing"
	"time"

	"github.com/pion/rtp/v2"
	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/media"
)

const exampleSDP = `v=0
o=- 0 0 IN IP4 127.0.0.1
s=-
t=0 0
m=video 0 RTP/AVP 96
a=rtpmap:96 H264/90000
m=audio 0 RTP/AVP 97
a=rtpmap:97 MPEG4-GENERIC/48000
`

func TestClockRatesFromSDPParsesBothMediaLines(t *testing.T) {
	rates, err := ClockRatesFromSDP([]byte(exampleSDP))
	require.NoError(t, err)
	require.Equal(t, uint32(90000), rates[96])
	require.Equal(t, uint32(48000), rates[97])
}

func TestVideoSourceEmitsOneFramePerMarkedAccessUnit(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	src := NewVideoSource("cam1", media.Resolution{Width: 2, Height: 2}, 90000, log)
	t.Cleanup(src.Close)

	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1, Timestamp: 1000, Marker: false}, Payload: []byte{1}})
	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 2, Timestamp: 1000, Marker: true}, Payload: []byte{2}})

	ev := <-src.Frames()
	frame, ok := ev.Data()
	require.True(t, ok)
	require.Equal(t, media.PTS(0), frame.PTS)
	require.Equal(t, media.Resolution{Width: 2, Height: 2}, frame.Resolution)
}

func TestVideoSourceDerivesPTSFromTimestampDelta(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	src := NewVideoSource("cam1", media.Resolution{Width: 2, Height: 2}, 90000, log)
	t.Cleanup(src.Close)

	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1, Timestamp: 90000, Marker: true}})
	<-src.Frames()

	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 2, Timestamp: 180000, Marker: true}})
	ev := <-src.Frames()
	frame, _ := ev.Data()
	require.Equal(t, media.PTS(time.Second), frame.PTS)
}

func TestVideoSourceCountsSequenceGaps(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	src := NewVideoSource("cam1", media.Resolution{Width: 1, Height: 1}, 90000, log)
	t.Cleanup(src.Close)

	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1, Timestamp: 0, Marker: true}})
	<-src.Frames()
	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 5, Timestamp: 3000, Marker: true}})
	<-src.Frames()

	require.Equal(t, uint64(3), src.LostPackets())
}

func TestAudioSourceEmitsOneBatchPerPacket(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	src := NewAudioSource("mic1", 48000, true, 48000, log)
	t.Cleanup(src.Close)

	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1, Timestamp: 0}})
	ev := <-src.Samples()
	batch, ok := ev.Data()
	require.True(t, ok)
	require.Equal(t, 48000, batch.SampleRate)
	require.True(t, batch.Mono)
	require.Len(t, batch.Samples, 48000/50)
}

func TestVideoSourceCloseUnblocksPublish(t *testing.T) {
	log := culog.NewLogger()
	t.Cleanup(log.Close)
	src := NewVideoSource("cam1", media.Resolution{Width: 1, Height: 1}, 90000, log)
	src.Close()
	// Must not deadlock: publishing after close is a no-op.
	src.PushPacket(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1, Timestamp: 0, Marker: true}})
}
