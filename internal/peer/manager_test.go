package peer

import (
	"sync"
	"testing"

	"camerafeed/internal/domain"
)

type fakeSource struct {
	id   string
	desc domain.CameraDescriptor

	mu   sync.Mutex
	subs map[uint64]domain.FrameSubscriber
	next uint64
}

func newFakeSource(id string) *fakeSource {
	return &fakeSource{
		id:   id,
		desc: domain.CameraDescriptor{ID: id, Kind: domain.CameraTest, Width: 640, Height: 480, FPS: 30},
		subs: make(map[uint64]domain.FrameSubscriber),
	}
}

func (f *fakeSource) ID() string                          { return f.id }
func (f *fakeSource) Descriptor() domain.CameraDescriptor { return f.desc }

func (f *fakeSource) Subscribe(cb domain.FrameSubscriber) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.subs[f.next] = cb
	return f.next
}

func (f *fakeSource) Unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

func (f *fakeSource) publish(frame *domain.EncodedFrame) {
	f.mu.Lock()
	cbs := make([]domain.FrameSubscriber, 0, len(f.subs))
	for _, cb := range f.subs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(frame)
	}
}

type fakeSignaler struct {
	mu     sync.Mutex
	sent   []domain.Message
	closed bool
}

func (f *fakeSignaler) Send(msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSignaler) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestCreatePeerSendsOffer(t *testing.T) {
	src := newFakeSource("cam0")
	mgr := NewManager([]domain.FrameSource{src}, "", 1200, 0)

	sig := &fakeSignaler{}
	session, err := mgr.CreatePeer("client_1", sig)
	if err != nil {
		t.Fatalf("CreatePeer: %v", err)
	}
	defer session.Close()

	sig.mu.Lock()
	defer sig.mu.Unlock()
	if len(sig.sent) == 0 || sig.sent[0].Type != "offer" {
		t.Fatalf("expected an offer message, got %+v", sig.sent)
	}
}

func TestCreatePeerRefusesAtMaxClients(t *testing.T) {
	src := newFakeSource("cam0")
	mgr := NewManager([]domain.FrameSource{src}, "", 1200, 1)

	first, err := mgr.CreatePeer("client_1", &fakeSignaler{})
	if err != nil {
		t.Fatalf("CreatePeer(first): %v", err)
	}
	defer first.Close()

	_, err = mgr.CreatePeer("client_2", &fakeSignaler{})
	if err != ErrServerFull {
		t.Fatalf("err = %v, want ErrServerFull", err)
	}
}

func TestRemovePeerUnsubscribesFromSources(t *testing.T) {
	src := newFakeSource("cam0")
	mgr := NewManager([]domain.FrameSource{src}, "", 1200, 0)

	_, err := mgr.CreatePeer("client_1", &fakeSignaler{})
	if err != nil {
		t.Fatalf("CreatePeer: %v", err)
	}

	if src.next == 0 {
		t.Fatal("expected session to have subscribed to the source")
	}

	mgr.RemovePeer("client_1")

	src.mu.Lock()
	remaining := len(src.subs)
	src.mu.Unlock()

	if remaining != 0 {
		t.Fatalf("remaining subscriptions = %d, want 0", remaining)
	}
	if mgr.PeerCount() != 0 {
		t.Fatalf("PeerCount() = %d, want 0", mgr.PeerCount())
	}
}

func TestPeerCountTracksActiveSessions(t *testing.T) {
	src := newFakeSource("cam0")
	mgr := NewManager([]domain.FrameSource{src}, "", 1200, 0)

	if mgr.PeerCount() != 0 {
		t.Fatalf("PeerCount() = %d before any session, want 0", mgr.PeerCount())
	}

	session, err := mgr.CreatePeer("client_1", &fakeSignaler{})
	if err != nil {
		t.Fatalf("CreatePeer: %v", err)
	}
	if mgr.PeerCount() != 1 {
		t.Fatalf("PeerCount() = %d, want 1", mgr.PeerCount())
	}

	session.Close()
	mgr.RemovePeer("client_1")
	if mgr.PeerCount() != 0 {
		t.Fatalf("PeerCount() = %d after close, want 0", mgr.PeerCount())
	}
}
