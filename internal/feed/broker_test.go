package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcm-alerts-backend/internal/model"
)

func recv(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return model.Event{}
	}
}

func TestBroker_PublishToAllListeners(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()
	assert.Equal(t, 2, b.ListenerCount())

	b.Publish(model.Event{ID: "e1", Title: "t"})

	assert.Equal(t, "e1", recv(t, ch1).ID)
	assert.Equal(t, "e1", recv(t, ch2).ID)
}

func TestBroker_CancelRemovesListener(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()
	cancel() // safe to call twice
	assert.Equal(t, 0, b.ListenerCount())

	// The channel is closed, not left dangling.
	_, open := <-ch
	assert.False(t, open)

	b.Publish(model.Event{ID: "e1"})
}

func TestBroker_SlowListenerIsDisconnected(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overflow the listener buffer; Publish must never block.
		for i := 0; i < listenerBuffer+1; i++ {
			b.Publish(model.Event{ID: fmt.Sprintf("e%d", i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow listener")
	}

	// The overflowing listener was removed; its channel drains the buffered
	// events and then closes, which the stream handlers treat as the end of
	// the connection.
	assert.Equal(t, 0, b.ListenerCount())
	received := 0
	for range ch {
		received++
	}
	assert.Equal(t, listenerBuffer, received)
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker()
	ch, _ := b.Subscribe()
	b.Close()
	b.Close()

	_, open := <-ch
	require.False(t, open)
	assert.Equal(t, 0, b.ListenerCount())

	// Subscribing after close yields a closed channel.
	ch2, cancel := b.Subscribe()
	defer cancel()
	_, open = <-ch2
	assert.False(t, open)
}
