package fanout

import (
	"sync"
	"testing"

	"camerafeed/internal/domain"
)

func TestSubscribePublishDelivers(t *testing.T) {
	r := New()

	var got []*domain.EncodedFrame
	r.Subscribe(func(f *domain.EncodedFrame) {
		got = append(got, f)
	})

	frame := &domain.EncodedFrame{PTS: 1}
	r.Publish(frame)

	if len(got) != 1 || got[0] != frame {
		t.Fatalf("got %v, want single delivery of frame", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := New()

	calls := 0
	id := r.Subscribe(func(f *domain.EncodedFrame) { calls++ })

	r.Publish(&domain.EncodedFrame{})
	r.Unsubscribe(id)
	r.Publish(&domain.EncodedFrame{})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	r := New()
	r.Unsubscribe(999)
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", r.Count())
	}
}

func TestMustUnsubscribeReportsAbsence(t *testing.T) {
	r := New()
	if err := r.MustUnsubscribe(42); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSubscribeUnsubscribeRoundTripRestoresCount(t *testing.T) {
	r := New()
	id := r.Subscribe(func(*domain.EncodedFrame) {})
	if r.Count() != 1 {
		t.Fatalf("Count() after subscribe = %d, want 1", r.Count())
	}
	r.Unsubscribe(id)
	if r.Count() != 0 {
		t.Fatalf("Count() after unsubscribe = %d, want 0", r.Count())
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	r := New()

	r.Subscribe(func(*domain.EncodedFrame) {
		panic("boom")
	})

	delivered := false
	r.Subscribe(func(*domain.EncodedFrame) {
		delivered = true
	})

	r.Publish(&domain.EncodedFrame{})

	if !delivered {
		t.Fatal("second subscriber was not reached after first panicked")
	}
}

func TestIDsAreMonotonicAndUnique(t *testing.T) {
	r := New()
	seen := make(map[uint64]bool)
	prev := uint64(0)
	for i := 0; i < 100; i++ {
		id := r.Subscribe(func(*domain.EncodedFrame) {})
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than previous id %d", id, prev)
		}
		seen[id] = true
		prev = id
	}
}

func TestConcurrentSubscribeAndPublish(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := r.Subscribe(func(*domain.EncodedFrame) {})
			r.Unsubscribe(id)
		}()
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Publish(&domain.EncodedFrame{})
		}()
	}

	wg.Wait()
}

func TestPublishedCountsEveryPublishCall(t *testing.T) {
	r := New()
	r.Publish(&domain.EncodedFrame{})
	r.Publish(&domain.EncodedFrame{})
	if r.Published() != 2 {
		t.Fatalf("Published() = %d, want 2", r.Published())
	}
}
