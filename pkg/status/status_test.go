package status

import (
	"testing"
	"time"

	"github.com/lumendds/rtps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDispatchesToSubscriber(t *testing.T) {
	b := NewBus(4, nil)
	b.Start()
	defer b.Stop()

	received := make(chan Event, 1)
	b.Subscribe("entity-1", func(ev Event) { received <- ev })

	b.Publish("entity-1", Event{Kind: SubscriptionMatched})

	select {
	case ev := <-received:
		assert.Equal(t, SubscriptionMatched, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("listener never invoked")
	}
}

func TestBusDropsWhenQueueFull(t *testing.T) {
	b := NewBus(1, nil)
	// Do not Start(): nothing drains the queue, so the second Publish
	// must not block the caller.
	done := make(chan struct{})
	go func() {
		b.Publish("e", Event{Kind: SampleLost})
		b.Publish("e", Event{Kind: SampleLost})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

func TestConditionTriggerValue(t *testing.T) {
	c := NewCondition(SubscriptionMatched | SampleLost)
	assert.False(t, c.TriggerValue())

	c.Raise(RequestedIncompatibleQos) // not enabled, ignored
	assert.False(t, c.TriggerValue())

	c.Raise(SampleLost)
	assert.True(t, c.TriggerValue())
	assert.Equal(t, SampleLost, c.TriggeredStatuses())

	c.Clear(SampleLost)
	assert.False(t, c.TriggerValue())
}

func TestWaitSetWaitReturnsActiveCondition(t *testing.T) {
	ws := NewWaitSet()
	c := NewCondition(SubscriptionMatched)
	ws.Attach(c)

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Raise(SubscriptionMatched)
	}()

	active, err := ws.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Same(t, c, active[0])
}

func TestWaitSetTimesOut(t *testing.T) {
	ws := NewWaitSet()
	ws.Attach(NewCondition(SubscriptionMatched))

	_, err := ws.Wait(20 * time.Millisecond)
	assert.ErrorIs(t, err, rtps.ErrTimeout)
}

func TestWaitSetDeleteCancelsWait(t *testing.T) {
	ws := NewWaitSet()
	ws.Attach(NewCondition(SubscriptionMatched))

	go func() {
		time.Sleep(10 * time.Millisecond)
		ws.Delete()
	}()

	_, err := ws.Wait(time.Second)
	assert.ErrorIs(t, err, rtps.ErrAlreadyDeleted)
}
