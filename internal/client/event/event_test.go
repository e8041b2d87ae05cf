package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testType Type = "test.changed"

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	id, ch := bus.Subscribe(testType)
	defer bus.Unsubscribe(testType, id)

	bus.Publish(testType, New(testType, "payload"))

	select {
	case evt := <-ch:
		assert.Equal(t, testType, evt.Type)
		assert.Equal(t, "payload", evt.Data)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := NewBus()
	id1, ch1 := bus.Subscribe(testType)
	id2, ch2 := bus.Subscribe(testType)
	defer bus.Unsubscribe(testType, id1)
	defer bus.Unsubscribe(testType, id2)

	bus.Publish(testType, New(testType, 42))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			assert.Equal(t, 42, evt.Data)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	id, ch := bus.Subscribe(testType)

	bus.Unsubscribe(testType, id)

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Publish(testType, New(testType, nil))
}

func TestBus_PublishToUnknownTypeIsNoop(t *testing.T) {
	bus := NewBus()
	bus.Publish("nobody.listens", New("nobody.listens", nil))
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	id, ch := bus.Subscribe(testType)
	defer bus.Unsubscribe(testType, id)

	done := make(chan struct{})
	go func() {
		for i := 0; i < SubscriberQueueSize*2; i++ {
			bus.Publish(testType, New(testType, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, ch, SubscriberQueueSize)
}
