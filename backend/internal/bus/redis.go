package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/itchan-dev/itchat/shared/logger"
)

// Redis fans out through PUBLISH/SUBSCRIBE. Like Postgres it is best-effort:
// subscribers that are not connected miss the event.
type Redis struct {
	client *redis.Client
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, subs: make(map[*subscription]struct{})}
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return r.client.Publish(ctx, topic, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	ps := r.client.Subscribe(ctx, topic)
	// wait for the subscription to be confirmed so nothing published after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{ctx: subCtx, cancel: cancel, handler: handler}
	r.subs[sub] = struct{}{}

	go r.loop(topic, ps, sub)
	return nil
}

func (r *Redis) loop(topic string, ps *redis.PubSub, sub *subscription) {
	defer func() {
		if err := ps.Close(); err != nil {
			logger.Log.Debug("failed to close redis subscription", "topic", topic, "error", err)
		}
		r.mu.Lock()
		delete(r.subs, sub)
		r.mu.Unlock()
	}()

	ch := ps.Channel()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			go sub.handler([]byte(msg.Payload))
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	for sub := range r.subs {
		sub.cancel()
	}
	r.mu.Unlock()

	return r.client.Close()
}
