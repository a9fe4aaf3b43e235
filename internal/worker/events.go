// Package worker implements the Worker Runtime (spec section 4.D): one
// process per worker id, registering a heartbeat, consuming its stream,
// and dispatching channel-lifecycle events to user code through either a
// callback interface or a broadcast sink.
package worker

import "time"

// EventType names the five events emitted from the three record payload
// variants the consume loop dispatches (spec section 4.D: "message | join
// | leave"): three channel-lifecycle events and two presence events (spec
// section 9: "encode as a small, finite variant Event = Message | Join |
// Leave" — no runtime type polymorphism is required).
type EventType string

const (
	EventChannelActive   EventType = "channel:active"
	EventChannelMessage  EventType = "channel:message"
	EventChannelInactive EventType = "channel:inactive"
	EventPresenceJoin    EventType = "presence:join"
	EventPresenceLeave   EventType = "presence:leave"
)

// Record is the parsed form of a worker stream payload (spec section 6:
// "{id, channel, workerId, userId, userName, text, timestamp, raw,
// clientId, type?}"). Consumers tolerate a missing Type, defaulting to
// "message".
type Record struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	WorkerID  string    `json:"workerId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Raw       string    `json:"raw,omitempty"`
	ClientID  string    `json:"clientId"`
	Type      string    `json:"type,omitempty"`
}

// EffectiveType returns Type, defaulting to "message" when empty.
func (r Record) EffectiveType() string {
	if r.Type == "" {
		return "message"
	}
	return r.Type
}

// Event is what the worker hands to callbacks and the broadcast sink.
type Event struct {
	Type      EventType
	Channel   string
	Record    Record
	Lifecycle ChannelLifecycle
}

// EventHandlers is a record of optional callbacks; the worker calls
// whichever are present (spec section 9: "a record EventHandlers
// containing optional functions"). Every handler is awaited before the
// consume loop advances to dispatch the next record, so a slow handler
// backpressures consumption (spec section 4.D "Event surface").
type EventHandlers struct {
	OnChannelActive   func(Event)
	OnChannelMessage  func(Event)
	OnChannelInactive func(Event)
	OnPresenceJoin     func(Event)
	OnPresenceLeave    func(Event)
	// OnError receives errors recovered from a panicking handler and
	// errors decoding a malformed stream payload (spec section 7
	// ConsumerError: "Logged and routed to the error event sink; consume
	// loop continues").
	OnError func(error)
}

func (h EventHandlers) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			if h.OnError != nil {
				h.OnError(toError(r))
			}
		}
	}()

	switch ev.Type {
	case EventChannelActive:
		if h.OnChannelActive != nil {
			h.OnChannelActive(ev)
		}
	case EventChannelMessage:
		if h.OnChannelMessage != nil {
			h.OnChannelMessage(ev)
		}
	case EventChannelInactive:
		if h.OnChannelInactive != nil {
			h.OnChannelInactive(ev)
		}
	case EventPresenceJoin:
		if h.OnPresenceJoin != nil {
			h.OnPresenceJoin(ev)
		}
	case EventPresenceLeave:
		if h.OnPresenceLeave != nil {
			h.OnPresenceLeave(ev)
		}
	}
}

func toError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicError{value: r}
}

type panicError struct{ value interface{} }

func (e *panicError) Error() string {
	return "worker: handler panicked"
}
