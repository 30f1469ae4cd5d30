package signaling

import "camerafeed/internal/domain"

// OfferMessage builds an "offer" envelope carrying sdp.
func OfferMessage(sdp string) domain.Message {
	return domain.Message{Type: "offer", SDP: sdp}
}

// CandidateMessage builds a "candidate" envelope. A nil candidate signals
// end-of-candidates to the viewer.
func CandidateMessage(sdpMid string, candidate *string) domain.Message {
	return domain.Message{Type: "candidate", SDPMid: sdpMid, Candidate: candidate}
}

// ErrorMessage builds an "error" envelope carrying a human-readable reason.
func ErrorMessage(reason string) domain.Message {
	return domain.Message{Type: "error", Message: reason}
}
