// Package peer owns the WebRTC side of one viewer connection: building the
// PeerConnection, attaching one send-only video track per camera, driving
// SDP/ICE negotiation, and tearing down cleanly.
package peer

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"camerafeed/internal/domain"
	"camerafeed/internal/logging"
)

var log = logging.Component("peer")

const h264PayloadTypeBase = 96

// newAPI builds a pion API with the default interceptor set, which includes
// the sender-side NACK responder: when a viewer's RTCP reports a lost
// packet, the responder retransmits it instead of leaving the decoder to
// just corrupt that frame. It registers one H.264 codec entry per camera
// track the session will carry, at payload types 96..96+numTracks-1, so
// each camera's track negotiates its own fixed payload type instead of
// every track collapsing onto PT 96.
func newAPI(numTracks int) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}

	for i := 0; i < numTracks; i++ {
		codec := webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeH264,
				ClockRate:   90000,
				SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			},
			PayloadType: webrtc.PayloadType(h264PayloadTypeBase + i),
		}
		if err := m.RegisterCodec(codec, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("peer: register h264 codec pt=%d: %w", codec.PayloadType, err)
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("peer: register default interceptors: %w", err)
	}

	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(registry)), nil
}

// newPeerConnection creates the underlying PeerConnection for one viewer,
// using stunServer (may be empty) for ICE. numTracks is the number of
// camera tracks this session will add, used to size the codec table.
func newPeerConnection(stunServer string, numTracks int) (*webrtc.PeerConnection, error) {
	api, err := newAPI(numTracks)
	if err != nil {
		return nil, err
	}

	cfg := webrtc.Configuration{
		BundlePolicy: webrtc.BundlePolicyMaxBundle,
	}
	if stunServer != "" {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: []string{stunServer}}}
	}

	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("peer: create peer connection: %w", err)
	}
	return pc, nil
}

// newVideoTrack creates a send-only H.264 track for one camera.
func newVideoTrack(desc domain.CameraDescriptor) (*webrtc.TrackLocalStaticRTP, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000},
		"video-"+desc.ID,
		desc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("peer: new track for %s: %w", desc.ID, err)
	}
	return track, nil
}
