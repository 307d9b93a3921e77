package bridge

import "sync"

// EventConnectionLost is the method of the terminal event delivered to
// every subscription when the connection ends. It is generated locally
// and never accepted from the wire.
const EventConnectionLost = "connection/lost"

// EventMatcher selects which events a subscription receives.
type EventMatcher func(Event) bool

// MatchMethod returns a matcher selecting events with exactly the
// given method.
func MatchMethod(method string) EventMatcher {
	return func(ev Event) bool {
		return ev.Method == method
	}
}

// Subscription is an ordered, non-restartable stream of events. Each
// subscription has its own queue and delivery goroutine, so a slow
// consumer delays only itself.
type Subscription struct {
	matcher EventMatcher

	mu     sync.Mutex
	queue  []Event
	sealed bool
	err    error

	notify     chan struct{}
	out        chan Event
	cancelCh   chan struct{}
	cancelOnce sync.Once
}

func newSubscription(matcher EventMatcher) *Subscription {
	s := &Subscription{
		matcher:  matcher,
		notify:   make(chan struct{}, 1),
		out:      make(chan Event),
		cancelCh: make(chan struct{}),
	}
	go s.pump()
	return s
}

// Events returns the delivery channel. It is closed after the terminal
// event, or after Cancel.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Err returns the error that ended the subscription, once it has been
// sealed by connection loss.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops delivery. Queued events are discarded and the channel
// is closed. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.cancelCh)
	})
}

func (s *Subscription) matches(ev Event) bool {
	return s.matcher == nil || s.matcher(ev)
}

// push appends an event. Called only from the client's read pump, so
// queue order is arrival order.
func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

// terminate seals the subscription: one terminal event is queued and
// nothing may be pushed afterwards.
func (s *Subscription) terminate(err error) {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		return
	}
	s.sealed = true
	s.err = err
	s.queue = append(s.queue, Event{Method: EventConnectionLost})
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	for {
		s.mu.Lock()
		var ev Event
		have := len(s.queue) > 0
		if have {
			ev = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.notify:
				continue
			case <-s.cancelCh:
				close(s.out)
				return
			}
		}

		select {
		case s.out <- ev:
			if ev.Method == EventConnectionLost {
				close(s.out)
				return
			}
		case <-s.cancelCh:
			close(s.out)
			return
		}
	}
}
