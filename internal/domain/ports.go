package domain

// FrameSubscriber is the callback signature a consumer registers with a
// capture source. It must not block and must not call Subscribe/Unsubscribe
// on the same source from within the callback.
type FrameSubscriber func(frame *EncodedFrame)

// FrameSource is the subset of CaptureSource's contract that the fan-out
// side of the system depends on, kept separate so peer sessions can be
// tested against a fake source.
type FrameSource interface {
	ID() string
	Subscribe(cb FrameSubscriber) uint64
	Unsubscribe(id uint64)
}

// Signaler is the subset of the signaling transport a PeerSession needs in
// order to talk back to its viewer, kept narrow so sessions can be tested
// without a real WebSocket.
type Signaler interface {
	Send(msg Message) error
	Close() error
}
