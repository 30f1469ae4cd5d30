package capture

import (
	"testing"
	"time"
)

func TestNextBackoffSequence(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	cur := time.Duration(0)
	for i, w := range want {
		cur = nextBackoff(cur)
		if cur != w {
			t.Fatalf("step %d: nextBackoff = %v, want %v", i, cur, w)
		}
	}
}

func TestSleepBackoffReturnsTrueWhenNotStopped(t *testing.T) {
	stop := make(chan struct{})
	if !sleepBackoff(50*time.Millisecond, stop) {
		t.Fatal("expected sleepBackoff to complete without stop")
	}
}

func TestSleepBackoffReturnsFalseWhenStopped(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	if sleepBackoff(5*time.Second, stop) {
		t.Fatal("expected sleepBackoff to abort immediately when stop is closed")
	}
}
