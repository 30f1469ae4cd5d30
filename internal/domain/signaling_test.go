package domain

import (
	"encoding/json"
	"testing"
)

func TestMarshalEndOfCandidatesSentinelIsExplicitNull(t *testing.T) {
	msg := Message{Type: "candidate", Candidate: nil}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	raw, ok := fields["candidate"]
	if !ok {
		t.Fatalf("candidate key missing from %s, want explicit null", data)
	}
	if string(raw) != "null" {
		t.Fatalf("candidate = %s, want null", raw)
	}
}

func TestMarshalCandidateMessageKeepsValue(t *testing.T) {
	candidate := "candidate:1 1 UDP 2113937151 192.0.2.1 54400 typ host"
	msg := Message{Type: "candidate", Candidate: &candidate, SDPMid: "0"}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Candidate == nil || *decoded.Candidate != candidate {
		t.Fatalf("Candidate = %v, want %q", decoded.Candidate, candidate)
	}
	if decoded.SDPMid != "0" {
		t.Fatalf("SDPMid = %q, want 0", decoded.SDPMid)
	}
}

func TestMarshalNonCandidateMessageOmitsCandidateKey(t *testing.T) {
	msg := Message{Type: "offer", SDP: "v=0..."}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := fields["candidate"]; ok {
		t.Fatalf("candidate key present in %s, want omitted for a non-candidate message", data)
	}
}
