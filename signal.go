package harbord

import "sync"

// Signal is a broadcast shutdown signal: one conceptual producer, any
// number of consumers. Firing is idempotent, and subscribers that arrive
// after the fire still observe it immediately — the semantics of a
// closed channel, which is exactly the implementation.
//
// Signal exists instead of a bare chan struct{} so that any holder may
// call Fire without coordinating on who closes the channel.
// The zero value is not usable; call NewSignal.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal creates an unfired signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire wakes every current and future subscriber. Safe to call from any
// goroutine, any number of times.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.done) })
}

// Done returns a channel that is closed once the signal has fired.
// Suitable for select loops alongside timers and work channels.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether Fire has been called.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
