// Package rtpwriter turns H.264 Annex-B access units into RTP packets and
// writes them to a pion TrackLocalStaticRTP. pion's track abstraction,
// unlike libdatachannel's, does not packetize on the caller's behalf, so
// this package owns that step.
package rtpwriter

import (
	"fmt"
	"math"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
)

const clockRateHz = 90000

// Writer packetizes access units for one (session, camera) pair and writes
// the resulting RTP packets to track. Not safe for concurrent use by more
// than one goroutine — each CaptureSource delivers frames for a given
// camera serially, and a Writer is created per camera per session.
type Writer struct {
	track      *webrtc.TrackLocalStaticRTP
	packetizer rtp.Packetizer
	startedAt  time.Time
}

// New builds a Writer for one outbound video track.
//
// ssrc and payloadType are assigned by the caller per the scheme documented
// for peer sessions: SSRC = 1000+i, payload type = 96+i for the i-th camera
// a session carries. mtu bounds the RTP payload size used for FU-A
// fragmentation.
func New(track *webrtc.TrackLocalStaticRTP, ssrc uint32, payloadType uint8, mtu int, startedAt time.Time) *Writer {
	payloader := &codecs.H264Payloader{}
	sequencer := rtp.NewRandomSequencer()

	pktizer := rtp.NewPacketizer(
		uint16(mtu),
		payloadType,
		ssrc,
		payloader,
		sequencer,
		clockRateHz,
	)

	return &Writer{
		track:      track,
		packetizer: pktizer,
		startedAt:  startedAt,
	}
}

// WriteAccessUnit fragments payload (a full H.264 access unit, one or more
// NAL units with Annex-B start codes) into RTP packets and writes them to
// the track. The RTP timestamp is derived from wall-clock elapsed time
// since the session started, not from the frame's own PTS: capture PTS can
// jump or reset across a capture-source restart, while viewers only need a
// monotonic source-internal clock.
func (w *Writer) WriteAccessUnit(payload []byte) error {
	ts := w.rtpTimestamp(time.Now())

	packets := w.packetizer.Packetize(payload, 0)
	for _, pkt := range packets {
		pkt.Timestamp = ts
		if err := w.track.WriteRTP(pkt); err != nil {
			return fmt.Errorf("rtpwriter: write rtp packet: %w", err)
		}
	}
	return nil
}

// rtpTimestamp computes round((now-startedAt) microseconds * 90/1000) mod 2^32.
func (w *Writer) rtpTimestamp(now time.Time) uint32 {
	elapsedUs := float64(now.Sub(w.startedAt).Microseconds())
	ts := math.Round(elapsedUs * float64(clockRateHz) / 1e6)
	return uint32(uint64(ts) % (1 << 32))
}
