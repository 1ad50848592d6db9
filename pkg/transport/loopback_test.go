package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoopbackBroadcast(t *testing.T) {
	hub := NewLoopbackHub()
	a := hub.Endpoint()
	b := hub.Endpoint()
	c := hub.Endpoint()

	require.NoError(t, a.Send([]byte("hello")))

	// The sender never hears its own transmission.
	_, ok := a.TryReceive()
	require.False(t, ok)

	for _, ep := range []*LoopbackEndpoint{b, c} {
		rx, ok := ep.TryReceive()
		require.True(t, ok)
		require.Equal(t, []byte("hello"), rx.Data)

		_, ok = ep.TryReceive()
		require.False(t, ok)
	}
}

func TestLoopbackDeliversCopies(t *testing.T) {
	hub := NewLoopbackHub()
	a := hub.Endpoint()
	b := hub.Endpoint()

	frame := []byte("mutable")
	require.NoError(t, a.Send(frame))
	frame[0] = 'X'

	rx, ok := b.TryReceive()
	require.True(t, ok)
	require.Equal(t, []byte("mutable"), rx.Data)
}

func TestLoopbackDropsWhenQueueFull(t *testing.T) {
	hub := NewLoopbackHub()
	a := hub.Endpoint()
	b := hub.Endpoint()

	for i := 0; i < endpointQueueSize+10; i++ {
		require.NoError(t, a.Send([]byte{byte(i)}))
	}

	received := 0
	for {
		_, ok := b.TryReceive()
		if !ok {
			break
		}
		received++
	}
	require.Equal(t, endpointQueueSize, received)
}
