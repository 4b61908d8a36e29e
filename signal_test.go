package harbord

import (
	"sync"
	"testing"
	"time"
)

func TestSignal_FireWakesSubscriber(t *testing.T) {
	s := NewSignal()
	if s.Fired() {
		t.Fatal("new signal reports fired")
	}

	done := make(chan struct{})
	go func() {
		<-s.Done()
		close(done)
	}()

	s.Fire()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber not woken after Fire")
	}
	if !s.Fired() {
		t.Error("Fired() = false after Fire")
	}
}

// TestSignal_Idempotent verifies that firing twice has the same observable
// effect as firing once, including from concurrent goroutines.
func TestSignal_Idempotent(t *testing.T) {
	s := NewSignal()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Fire()
		}()
	}
	wg.Wait()

	select {
	case <-s.Done():
	default:
		t.Fatal("signal not observable after concurrent fires")
	}
}

// TestSignal_LateSubscriber verifies that a subscriber arriving after the
// fire observes it immediately.
func TestSignal_LateSubscriber(t *testing.T) {
	s := NewSignal()
	s.Fire()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not observe fired signal")
	}
}
