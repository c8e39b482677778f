package bus

import (
	"context"
	"sync"
)

// Memory delivers within a single process. Used in tests and single-node setups.
type Memory struct {
	mu       sync.RWMutex
	subs     map[string][]*subscription
	closed   bool
	closedCh chan struct{}
}

type subscription struct {
	ctx     context.Context
	cancel  context.CancelFunc
	handler func([]byte)
}

func NewMemory() *Memory {
	return &Memory{
		subs:     make(map[string][]*subscription),
		closedCh: make(chan struct{}),
	}
}

func (m *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subs := m.subs[topic]
	if len(subs) == 0 {
		return nil
	}

	// handlers must not see later mutations by the caller
	data := make([]byte, len(payload))
	copy(data, payload)

	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		go sub.handler(data)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{ctx: subCtx, cancel: cancel, handler: handler}
	m.subs[topic] = append(m.subs[topic], sub)

	go m.watch(topic, sub)
	return nil
}

func (m *Memory) watch(topic string, sub *subscription) {
	select {
	case <-sub.ctx.Done():
		m.remove(topic, sub)
	case <-m.closedCh:
		sub.cancel()
	}
}

func (m *Memory) remove(topic string, target *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[topic]
	for i, sub := range subs {
		if sub == target {
			m.subs[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[topic]) == 0 {
		delete(m.subs, topic)
	}
}

// subscribers is used by tests to wait for unsubscription.
func (m *Memory) subscribers(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[topic])
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	close(m.closedCh)

	for _, subs := range m.subs {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	m.subs = make(map[string][]*subscription)
	return nil
}
