package worker

import "sync"

// Subscriber is a channel that wants every Event the worker dispatches.
type Subscriber chan Event

// EventSink is the worker's broadcast half of the event surface (spec
// section 4.D: "both a callback interface and a broadcast sink"),
// adapted from internal/websocket.Hub's register/unregister/broadcast
// channel pattern — generalized from "browser clients receiving raw
// bytes over a websocket" to "in-process subscribers receiving typed
// Events", since the websocket transport itself belongs to the external
// broker (spec section 1 non-goals).
type EventSink struct {
	broadcast  chan Event
	register   chan Subscriber
	unregister chan Subscriber

	mu          sync.RWMutex
	subscribers map[Subscriber]bool

	done chan struct{}
}

// NewEventSink builds a sink and starts its dispatch loop.
func NewEventSink() *EventSink {
	s := &EventSink{
		broadcast:   make(chan Event, 256),
		register:    make(chan Subscriber),
		unregister:  make(chan Subscriber),
		subscribers: make(map[Subscriber]bool),
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

// Subscribe registers a new subscriber and returns it. Buffer sizes the
// subscriber's channel; a slow subscriber that fills its buffer is
// dropped rather than blocking the sink (same slow-client handling as the
// teacher's Hub).
func (s *EventSink) Subscribe(buffer int) Subscriber {
	sub := make(Subscriber, buffer)
	s.register <- sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *EventSink) Unsubscribe(sub Subscriber) {
	s.unregister <- sub
}

// Publish broadcasts ev to every current subscriber.
func (s *EventSink) Publish(ev Event) {
	s.broadcast <- ev
}

// SubscriberCount reports how many subscribers are currently registered.
func (s *EventSink) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Close stops the dispatch loop and closes every remaining subscriber
// channel.
func (s *EventSink) Close() {
	close(s.done)
}

func (s *EventSink) run() {
	for {
		select {
		case sub := <-s.register:
			s.mu.Lock()
			s.subscribers[sub] = true
			s.mu.Unlock()

		case sub := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.subscribers[sub]; ok {
				delete(s.subscribers, sub)
				close(sub)
			}
			s.mu.Unlock()

		case ev := <-s.broadcast:
			s.mu.RLock()
			var slow []Subscriber
			for sub := range s.subscribers {
				select {
				case sub <- ev:
				default:
					slow = append(slow, sub)
				}
			}
			s.mu.RUnlock()

			if len(slow) > 0 {
				s.mu.Lock()
				for _, sub := range slow {
					if _, ok := s.subscribers[sub]; ok {
						delete(s.subscribers, sub)
						close(sub)
					}
				}
				s.mu.Unlock()
			}

		case <-s.done:
			s.mu.Lock()
			for sub := range s.subscribers {
				delete(s.subscribers, sub)
				close(sub)
			}
			s.mu.Unlock()
			return
		}
	}
}
