// Package rtpsource is the RTP-based Decoder Adapter: it consumes
// *rtp.Packet streams keyed by an SDP-declared payload type and clock
// rate, and assembles one media.Frame per access unit (video) or one
// media.InputSamples batch per packet (audio). Actual H.264/Opus/AAC
// bitstream decode is out of scope — frames and samples carry a
// placeholder already-decoded payload; this adapter's job is PTS
// derivation from the RTP timestamp plus clock rate, and
// packet-loss/jitter bookkeeping, the way the teacher's
// streamTrackH264/streamTrackMPEG4Audio do for the RTSP-forwarding
// direction.
package rtpsource

import (
	"sync"

	"github.com/pion/rtp/v2"
	"github.com/pion/sdp/v3"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/media"
)

// ClockRates maps an RTP payload type to its declared clock rate (Hz),
// as announced in SDP.
type ClockRates map[uint8]uint32

// ClockRatesFromSDP parses rtpmap attributes out of an offered SDP
// body, the way the teacher's TrackH264/TrackMPEG4Audio construction
// reads "fmtp"/"rtpmap" off a *sdp.MediaDescription.
func ClockRatesFromSDP(body []byte) (ClockRates, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(body); err != nil {
		return nil, err
	}

	rates := ClockRates{}
	for _, md := range desc.MediaDescriptions {
		for _, attr := range md.Attributes {
			if attr.Key != "rtpmap" {
				continue
			}
			pt, clockRate, ok := parseRtpmap(attr.Value)
			if ok {
				rates[pt] = clockRate
			}
		}
	}
	return rates, nil
}

func parseRtpmap(value string) (payloadType uint8, clockRate uint32, ok bool) {
	// "96 H264/90000" -> payload type 96, clock rate 90000.
	var ptField, rest string
	for i, r := range value {
		if r == ' ' {
			ptField, rest = value[:i], value[i+1:]
			break
		}
	}
	if ptField == "" {
		return 0, 0, false
	}
	pt, err := parseUint8(ptField)
	if err != nil {
		return 0, 0, false
	}
	slash := -1
	for i, r := range rest {
		if r == '/' {
			slash = i
			break
		}
	}
	if slash < 0 {
		return 0, 0, false
	}
	rateField := rest[slash+1:]
	for i, r := range rateField {
		if r < '0' || r > '9' {
			rateField = rateField[:i]
			break
		}
	}
	rate, err := parseUint32(rateField)
	if err != nil {
		return 0, 0, false
	}
	return pt, rate, true
}

func parseUint8(s string) (uint8, error) {
	v, err := parseUint32(s)
	return uint8(v), err
}

func parseUint32(s string) (uint32, error) {
	var v uint32
	if s == "" {
		return 0, errEmpty
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errEmpty
		}
		v = v*10 + uint32(r-'0')
	}
	return v, nil
}

type emptyError struct{}

func (emptyError) Error() string { return "empty numeric field" }

var errEmpty = emptyError{}

// chanPairLocal is the publish/close plumbing shared by VideoSource
// and AudioSource, mirroring pkg/decoder's chanPair (unexported there,
// so each concrete adapter package carries its own copy rather than
// reaching into another package's internals).
type chanPairLocal struct {
	frames  chan media.PipelineEvent[media.Frame]
	samples chan media.PipelineEvent[media.InputSamples]
	closed  chan struct{}
}

func newChanPairLocal(frameBuf, sampleBuf int) *chanPairLocal {
	return &chanPairLocal{
		frames:  make(chan media.PipelineEvent[media.Frame], frameBuf),
		samples: make(chan media.PipelineEvent[media.InputSamples], sampleBuf),
		closed:  make(chan struct{}),
	}
}

func (c *chanPairLocal) publishFrame(ev media.PipelineEvent[media.Frame]) {
	select {
	case <-c.closed:
	case c.frames <- ev:
	}
}

func (c *chanPairLocal) publishSamples(ev media.PipelineEvent[media.InputSamples]) {
	select {
	case <-c.closed:
	case c.samples <- ev:
	}
}

func (c *chanPairLocal) close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// VideoSource assembles RTP video packets into media.Frame events. One
// access unit is delimited by the RTP marker bit, matching the
// convention H.264/RTP payloads use to mark the last packet of a
// frame.
type VideoSource struct {
	resolution media.Resolution
	clockRate  uint32
	log        *culog.Logger
	inputID    media.InputId

	cp *chanPairLocal

	mu           sync.Mutex
	haveSeq      bool
	lastSeq      uint16
	lostPackets  uint64
	accessUnit   [][]byte
	baseTS       uint32
	haveBaseTS   bool
}

// NewVideoSource returns a VideoSource that derives PTS using
// clockRate and tags every assembled frame with resolution (the
// negotiated/expected frame size; actual pixel decode is out of
// scope, so frames carry a placeholder buffer sized to it).
func NewVideoSource(inputID media.InputId, resolution media.Resolution, clockRate uint32, log *culog.Logger) *VideoSource {
	return &VideoSource{
		resolution: resolution,
		clockRate:  clockRate,
		log:        log,
		inputID:    inputID,
		cp:         newChanPairLocal(8, 0),
	}
}

func (s *VideoSource) Frames() <-chan media.PipelineEvent[media.Frame] { return s.cp.frames }
func (s *VideoSource) Samples() <-chan media.PipelineEvent[media.InputSamples] {
	return s.cp.samples
}

// PushPacket feeds one RTP packet carrying video payload. The network
// transport that produces *rtp.Packet values (UDP socket, RTSP
// session) is outside this adapter's scope, matching spec.md's
// decision to treat codec/transport bindings as external
// collaborators.
func (s *VideoSource) PushPacket(pkt *rtp.Packet) {
	s.mu.Lock()
	if s.haveSeq && pkt.SequenceNumber != s.lastSeq+1 {
		gap := int(pkt.SequenceNumber) - int(s.lastSeq) - 1
		if gap > 0 {
			s.lostPackets += uint64(gap)
			s.log.Warn().Input(s.inputID).Msgf("rtp sequence gap: lost %d packet(s)", gap)
		}
	}
	s.haveSeq = true
	s.lastSeq = pkt.SequenceNumber

	if !s.haveBaseTS {
		s.baseTS = pkt.Timestamp
		s.haveBaseTS = true
	}

	s.accessUnit = append(s.accessUnit, pkt.Payload)
	ts := pkt.Timestamp
	marker := pkt.Marker
	au := s.accessUnit
	if marker {
		s.accessUnit = nil
	}
	s.mu.Unlock()

	if !marker {
		return
	}

	pts := rtpTimestampToPTS(ts, s.baseTS, s.clockRate)
	size := s.resolution.Width * s.resolution.Height * 4
	if size <= 0 {
		size = 4
	}
	placeholder := make([]byte, size)
	for i, payload := range au {
		if i == 0 && len(payload) > 0 {
			copy(placeholder, payload)
		}
	}
	frame := media.Frame{
		Data:       media.RGBA8{Bytes: placeholder},
		Resolution: s.resolution,
		PTS:        pts,
	}
	s.cp.publishFrame(media.NewData(frame))
}

// CloseStream signals EOS on the frame stream (e.g. on RTP BYE or
// session teardown).
func (s *VideoSource) CloseStream() {
	s.cp.publishFrame(media.NewEOS[media.Frame]())
	s.cp.publishSamples(media.NewEOS[media.InputSamples]())
}

// Close releases the source; further PushPacket calls are no-ops.
func (s *VideoSource) Close() {
	s.cp.close()
}

// LostPackets reports the cumulative RTP sequence-gap count observed
// so far, for diagnostics/metrics.
func (s *VideoSource) LostPackets() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lostPackets
}

// AudioSource assembles RTP audio packets into InputSamples batches,
// one batch per packet (each packet already carries one access unit
// for the framed codecs this adapter targets, e.g. MPEG-4 audio/Opus).
type AudioSource struct {
	sampleRate int
	mono       bool
	clockRate  uint32
	log        *culog.Logger
	inputID    media.InputId

	cp *chanPairLocal

	mu         sync.Mutex
	haveSeq    bool
	lastSeq    uint16
	baseTS     uint32
	haveBaseTS bool
}

// NewAudioSource returns an AudioSource for a mono or stereo PCM
// stream sampled at sampleRate, deriving PTS from clockRate.
func NewAudioSource(inputID media.InputId, sampleRate int, mono bool, clockRate uint32, log *culog.Logger) *AudioSource {
	return &AudioSource{
		sampleRate: sampleRate,
		mono:       mono,
		clockRate:  clockRate,
		log:        log,
		inputID:    inputID,
		cp:         newChanPairLocal(0, 16),
	}
}

func (s *AudioSource) Frames() <-chan media.PipelineEvent[media.Frame] { return s.cp.frames }
func (s *AudioSource) Samples() <-chan media.PipelineEvent[media.InputSamples] {
	return s.cp.samples
}

// samplesPerPacket is a placeholder access-unit size (20ms at the
// configured sample rate), standing in for the real decoder's
// frame-size-dependent sample count.
func (s *AudioSource) samplesPerPacket() int {
	return s.sampleRate / 50
}

// PushPacket feeds one RTP packet carrying an audio access unit.
func (s *AudioSource) PushPacket(pkt *rtp.Packet) {
	s.mu.Lock()
	if s.haveSeq && pkt.SequenceNumber != s.lastSeq+1 {
		gap := int(pkt.SequenceNumber) - int(s.lastSeq) - 1
		if gap > 0 {
			s.log.Warn().Input(s.inputID).Msgf("rtp sequence gap: lost %d packet(s)", gap)
		}
	}
	s.haveSeq = true
	s.lastSeq = pkt.SequenceNumber
	if !s.haveBaseTS {
		s.baseTS = pkt.Timestamp
		s.haveBaseTS = true
	}
	ts := pkt.Timestamp
	s.mu.Unlock()

	n := s.samplesPerPacket()
	samples := make([]media.Sample, n)
	batch := media.InputSamples{
		Samples:    samples,
		StartPTS:   rtpTimestampToPTS(ts, s.baseTS, s.clockRate),
		SampleRate: s.sampleRate,
		Mono:       s.mono,
	}
	s.cp.publishSamples(media.NewData(batch))
}

// CloseStream signals EOS on the samples stream.
func (s *AudioSource) CloseStream() {
	s.cp.publishSamples(media.NewEOS[media.InputSamples]())
	s.cp.publishFrame(media.NewEOS[media.Frame]())
}

// Close releases the source; further PushPacket calls are no-ops.
func (s *AudioSource) Close() {
	s.cp.close()
}

// rtpTimestampToPTS converts an RTP timestamp relative to baseTS into
// a media.PTS given clockRate, handling the 32-bit wraparound an RTP
// session will eventually hit the same way the teacher's rtph264
// decoder's modular-arithmetic timestamp handling does.
func rtpTimestampToPTS(ts, baseTS, clockRate uint32) media.PTS {
	if clockRate == 0 {
		return 0
	}
	delta := int64(int32(ts - baseTS))
	seconds := float64(delta) / float64(clockRate)
	return media.PTS(seconds * float64(1e9))
}
