package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSink_PublishReachesSubscribers(t *testing.T) {
	sink := NewEventSink()
	defer sink.Close()

	sub := sink.Subscribe(4)
	require.Eventually(t, func() bool { return sink.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	sink.Publish(Event{Type: EventChannelMessage, Channel: "chat"})

	select {
	case ev := <-sub:
		assert.Equal(t, EventChannelMessage, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive published event")
	}

	sink.Unsubscribe(sub)
	require.Eventually(t, func() bool { return sink.SubscriberCount() == 0 }, time.Second, time.Millisecond)
}

func TestEventSink_SlowSubscriberIsDropped(t *testing.T) {
	sink := NewEventSink()
	defer sink.Close()

	sub := sink.Subscribe(1)
	require.Eventually(t, func() bool { return sink.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 10; i++ {
		sink.Publish(Event{Type: EventChannelMessage})
	}

	require.Eventually(t, func() bool { return sink.SubscriberCount() == 0 }, time.Second, time.Millisecond)
}
