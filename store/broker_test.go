package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrokerFanout(t *testing.T) {
	b := newBroker()
	first, second := b.subscribe(), b.subscribe()

	b.publish(ChatEvent{Type: ChatEventInsert, Entry: &ChatEntry{ID: 1}})
	require.Equal(t, int32(1), (<-first.C).Entry.ID)
	require.Equal(t, int32(1), (<-second.C).Entry.ID)

	first.Close()
	first.Close()
	_, ok := <-first.C
	require.False(t, ok)

	b.publish(ChatEvent{Type: ChatEventDelete, Entry: &ChatEntry{ID: 2}})
	event := <-second.C
	require.Equal(t, ChatEventDelete, event.Type)
	require.Len(t, b.subs, 1)
}

func TestBrokerClosesLaggingSubscription(t *testing.T) {
	b := newBroker()
	slow, fast := b.subscribe(), b.subscribe()
	for i := 0; i < subscriptionBuffer+10; i++ {
		b.publish(ChatEvent{Type: ChatEventInsert, Entry: &ChatEntry{ID: int32(i)}})
		<-fast.C
	}

	var received int
	for range slow.C {
		received++
	}
	require.Equal(t, subscriptionBuffer, received)
	require.True(t, slow.Lagged())
	require.False(t, fast.Lagged())
	require.Len(t, b.subs, 1)

	// Closing a lagged subscription is a no-op.
	slow.Close()
	require.Len(t, b.subs, 1)
}

func TestBrokerClose(t *testing.T) {
	b := newBroker()
	sub := b.subscribe()
	b.close()
	_, ok := <-sub.C
	require.False(t, ok)
	require.False(t, sub.Lagged())
	sub.Close()

	late := b.subscribe()
	_, ok = <-late.C
	require.False(t, ok)
}
