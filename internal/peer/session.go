package peer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"camerafeed/internal/domain"
	"camerafeed/internal/rtpwriter"
	"camerafeed/internal/signaling"
)

// trackBinding is the Go substitute for a weak_ptr<Track>: the
// subscription callback registered with a CaptureSource holds one of
// these instead of the session or track directly. remove_peer flips live
// to false before unregistering the subscription, so any callback still
// in flight becomes a no-op rather than writing to a track mid-teardown.
type trackBinding struct {
	live   atomic.Bool
	writer *rtpwriter.Writer
}

func (b *trackBinding) deliver(frame *domain.EncodedFrame) {
	if !b.live.Load() {
		return
	}
	if err := b.writer.WriteAccessUnit(frame.Payload); err != nil {
		log.Warnf("write access unit: %v", err)
	}
}

// subscription pairs a CaptureSource with the id this session registered
// on it, so teardown can unsubscribe precisely.
type subscription struct {
	source domain.FrameSource
	id     uint64
	bind   *trackBinding
}

// sessionState is the negotiation state machine's current phase.
type sessionState int

const (
	stateNew sessionState = iota
	stateOffering
	stateReady
	stateTerminal
)

// Session is one viewer's PeerConnection plus its per-camera tracks and
// CaptureSource subscriptions.
type Session struct {
	clientID  string
	signaler  domain.Signaler
	pc        *webrtc.PeerConnection
	startedAt time.Time

	mu            sync.Mutex
	state         sessionState
	subscriptions []subscription

	closeOnce sync.Once
}

// NewSession builds the PeerConnection, one send-only track per camera in
// sources, and subscribes each track's callback to its CaptureSource. The
// local-description handlers (OnICECandidate, OnICEConnectionStateChange)
// are installed before CreateOffer is called, matching the ordering the
// original implementation imposes via onLocalDescription: pion returns the
// local SDP directly from CreateOffer rather than via a later callback, but
// an ICE candidate can still be gathered mid-CreateOffer, so the handler
// must already be attached.
func NewSession(clientID string, signaler domain.Signaler, stunServer string, mtu int, sources []domain.FrameSource) (*Session, error) {
	pc, err := newPeerConnection(stunServer, len(sources))
	if err != nil {
		return nil, err
	}

	s := &Session{
		clientID:  clientID,
		signaler:  signaler,
		pc:        pc,
		startedAt: time.Now(),
	}

	for i, src := range sources {
		desc := descriptorOf(src)
		track, err := newVideoTrack(desc)
		if err != nil {
			pc.Close()
			return nil, err
		}

		ssrc := uint32(1000 + i)
		pt := uint8(h264PayloadTypeBase + i)

		transceiver, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
			SendEncodings: []webrtc.RTPEncodingParameters{{
				RTPCodingParameters: webrtc.RTPCodingParameters{
					SSRC:        webrtc.SSRC(ssrc),
					PayloadType: webrtc.PayloadType(pt),
				},
			}},
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("peer: add transceiver for %s: %w", desc.ID, err)
		}
		// The MID is the camera id; pion only assigns a MID of its own to
		// transceivers that still have none when CreateOffer runs.
		if err := transceiver.SetMid(desc.ID); err != nil {
			pc.Close()
			return nil, fmt.Errorf("peer: set mid for %s: %w", desc.ID, err)
		}

		writer := rtpwriter.New(track, ssrc, pt, mtu, s.startedAt)

		bind := &trackBinding{writer: writer}
		bind.live.Store(true)

		subID := src.Subscribe(bind.deliver)
		s.subscriptions = append(s.subscriptions, subscription{source: src, id: subID, bind: bind})
	}

	s.installHandlers()

	return s, nil
}

func (s *Session) installHandlers() {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			if err := s.signaler.Send(signaling.CandidateMessage("", nil)); err != nil {
				log.Warnf("%s: send end-of-candidates: %v", s.clientID, err)
			}
			return
		}
		candidate := c.ToJSON().Candidate
		mid := ""
		if c.ToJSON().SDPMid != nil {
			mid = *c.ToJSON().SDPMid
		}
		if err := s.signaler.Send(signaling.CandidateMessage(mid, &candidate)); err != nil {
			log.Warnf("%s: send candidate: %v", s.clientID, err)
		}
	})

	s.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Debugf("%s: ice state %s", s.clientID, state)
		if state == webrtc.ICEConnectionStateFailed || state == webrtc.ICEConnectionStateClosed {
			s.Close()
		}
	})
}

// Offer transitions New -> Offering: it creates the local offer and sends
// it over the signaling channel.
func (s *Session) Offer() error {
	s.mu.Lock()
	s.state = stateOffering
	s.mu.Unlock()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("peer: create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("peer: set local description: %w", err)
	}

	return s.signaler.Send(signaling.OfferMessage(offer.SDP))
}

// HandleMessage dispatches a signaling message per the negotiation state
// machine. Unknown types are logged and ignored.
func (s *Session) HandleMessage(msg domain.Message) {
	switch msg.Type {
	case "answer":
		if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}); err != nil {
			log.Warnf("%s: set remote description: %v", s.clientID, err)
			return
		}
		s.mu.Lock()
		s.state = stateReady
		s.mu.Unlock()

	case "candidate":
		if msg.Candidate == nil {
			return // end-of-candidates sentinel from the viewer
		}
		init := webrtc.ICECandidateInit{Candidate: *msg.Candidate}
		if msg.SDPMid != "" {
			mid := msg.SDPMid
			init.SDPMid = &mid
		}
		if err := s.pc.AddICECandidate(init); err != nil {
			log.Warnf("%s: add ice candidate: %v", s.clientID, err)
		}

	case "request_stream":
		// no-op: tracks are created and offered at session setup time.

	default:
		log.Warnf("%s: unknown signaling message type %q", s.clientID, msg.Type)
	}
}

// Close unsubscribes every frame callback before closing the peer
// connection, so no in-flight dispatch can write to a track mid-teardown;
// the trackBinding's live flag is flipped first as a second line of
// defense against a callback already inside fanout.Registry.Publish.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = stateTerminal
		subs := s.subscriptions
		s.subscriptions = nil
		s.mu.Unlock()

		for _, sub := range subs {
			sub.bind.live.Store(false)
			sub.source.Unsubscribe(sub.id)
		}

		s.pc.Close()
		s.signaler.Close()

		log.Infof("%s: session closed", s.clientID)
	})
}

// ClientID returns the viewer's signaling-assigned identifier.
func (s *Session) ClientID() string { return s.clientID }

// descriptorOf recovers the CameraDescriptor backing a FrameSource. Every
// concrete FrameSource in this codebase is a *capture.Source, which embeds
// one; this narrow interface keeps peer from importing the capture package.
func descriptorOf(src domain.FrameSource) domain.CameraDescriptor {
	if d, ok := src.(interface{ Descriptor() domain.CameraDescriptor }); ok {
		return d.Descriptor()
	}
	return domain.CameraDescriptor{ID: src.ID()}
}
