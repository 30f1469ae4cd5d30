// Package fanout implements the synchronous one-producer-to-many-subscribers
// distribution used by each capture source to hand frames to every attached
// peer session.
package fanout

import (
	"fmt"
	"sync"
	"sync/atomic"

	"camerafeed/internal/domain"
	"camerafeed/internal/logging"
)

var log = logging.Component("fanout")

// Registry is a thread-safe mapping from subscription id to callback.
//
// Dispatch is synchronous: Publish holds the registry lock for the full
// iteration over subscribers, so a callback must not block and must not
// call Subscribe/Unsubscribe on the same registry (that would deadlock on
// the same mutex).
type Registry struct {
	mu          sync.RWMutex
	subscribers map[uint64]domain.FrameSubscriber
	nextID      uint64

	published uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		subscribers: make(map[uint64]domain.FrameSubscriber),
	}
}

// Subscribe registers cb under a fresh, strictly increasing id.
func (r *Registry) Subscribe(cb domain.FrameSubscriber) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.subscribers[id] = cb
	return id
}

// Unsubscribe removes the subscriber registered under id. No-op if absent.
func (r *Registry) Unsubscribe(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, id)
}

// UnsubscribeAll removes every subscriber.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = make(map[uint64]domain.FrameSubscriber)
}

// Count returns the number of currently registered subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Publish delivers frame to every current subscriber, synchronously, in the
// caller's goroutine. A panicking or erroring callback is isolated: it is
// logged and dispatch continues to the remaining subscribers.
func (r *Registry) Publish(frame *domain.EncodedFrame) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	atomic.AddUint64(&r.published, 1)

	for id, cb := range r.subscribers {
		r.dispatchOne(id, cb, frame)
	}
}

func (r *Registry) dispatchOne(id uint64, cb domain.FrameSubscriber, frame *domain.EncodedFrame) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("subscriber %d panicked: %v", id, rec)
		}
	}()
	cb(frame)
}

// Published returns the lifetime count of frames passed to Publish.
func (r *Registry) Published() uint64 {
	return atomic.LoadUint64(&r.published)
}

// ErrNotFound is returned by operations that need to distinguish a missing
// subscription from a successful removal; Unsubscribe itself is a silent
// no-op per spec, but tests and callers that want to assert presence can use
// this via Registry.MustUnsubscribe.
var ErrNotFound = fmt.Errorf("fanout: subscription not found")

// MustUnsubscribe removes id and reports whether it was present.
func (r *Registry) MustUnsubscribe(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[id]; !ok {
		return ErrNotFound
	}
	delete(r.subscribers, id)
	return nil
}
