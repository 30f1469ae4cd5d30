package domain

import "encoding/json"

// Message is the generic JSON envelope for every signaling WebSocket
// message, in either direction. Only the fields relevant to Type are
// populated; the rest are left at their zero value and omitted on encode.
type Message struct {
	Type string `json:"type"`

	// camera_list (server -> viewer)
	Cameras []CameraInfo `json:"cameras,omitempty"`

	// offer / answer
	SDP string `json:"sdp,omitempty"`

	// candidate (either direction); Candidate is nil to signal
	// end-of-candidates.
	Candidate *string `json:"candidate,omitempty"`
	SDPMid    string  `json:"sdpMid,omitempty"`

	// error (server -> viewer)
	Message string `json:"message,omitempty"`
}

// MarshalJSON encodes Message, forcing an explicit "candidate":null for the
// end-of-candidates sentinel. encoding/json's omitempty drops a nil
// *string field entirely rather than encoding it as null, but a viewer
// checking candidate === null needs the key present; every other message
// type has no candidate to send and keeps the field omitted as usual.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	data, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	if m.Type != "candidate" || m.Candidate != nil {
		return data, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	fields["candidate"] = json.RawMessage("null")
	return json.Marshal(fields)
}

// CameraInfo is the subset of CameraDescriptor advertised to viewers in the
// camera_list message.
type CameraInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FPS    int    `json:"fps"`
}
