package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	testBroker(t, func(*testing.T) Broker { return NewMemory() })
}

func TestMemoryUnsubscribe(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Subscribe(ctx, "/chat/1", func([]byte) {}))
	require.NoError(t, m.Subscribe(context.Background(), "/chat/1", func([]byte) {}))
	assert.Equal(t, 2, m.subscribers("/chat/1"))

	cancel()

	assert.Eventually(t, func() bool { return m.subscribers("/chat/1") == 1 }, time.Second, 10*time.Millisecond)
}

func TestMemoryPayloadIsolation(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	received := make(chan []byte, 1)
	require.NoError(t, m.Subscribe(context.Background(), "/chat/1", collect(received)))

	payload := []byte("original")
	require.NoError(t, m.Publish(context.Background(), "/chat/1", payload))
	copy(payload, "mutated!")

	assert.Equal(t, "original", string(receive(t, received)))
}

func TestMemoryCanceledPublish(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Publish(ctx, "/chat/1", []byte("x")), context.Canceled)
}
