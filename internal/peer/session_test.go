package peer

import (
	"testing"

	"camerafeed/internal/domain"
)

func TestTrackBindingNoopsAfterLiveFlagCleared(t *testing.T) {
	bind := &trackBinding{}
	bind.live.Store(true)

	// writer is nil; deliver must not dereference it once live is false,
	// so this must not panic.
	bind.live.Store(false)
	bind.deliver(&domain.EncodedFrame{Payload: []byte{0x00, 0x00, 0x00, 0x01, 0x65}})
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	src := newFakeSource("cam0")
	mgr := NewManager([]domain.FrameSource{src}, "", 1200, 0)

	session, err := mgr.CreatePeer("client_1", &fakeSignaler{})
	if err != nil {
		t.Fatalf("CreatePeer: %v", err)
	}

	session.Close()
	session.Close() // must not panic or double-close channels
}

func TestSessionUnknownMessageTypeIsIgnored(t *testing.T) {
	src := newFakeSource("cam0")
	mgr := NewManager([]domain.FrameSource{src}, "", 1200, 0)

	session, err := mgr.CreatePeer("client_1", &fakeSignaler{})
	if err != nil {
		t.Fatalf("CreatePeer: %v", err)
	}
	defer session.Close()

	session.HandleMessage(domain.Message{Type: "bogus"})
}
