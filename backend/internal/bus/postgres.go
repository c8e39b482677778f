package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itchan-dev/itchat/shared/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// NOTIFY rejects payloads of 8000 bytes and more.
	maxNotifyPayload = 7999
	// Channel names are identifiers, longer ones are truncated by LISTEN and
	// rejected by pg_notify.
	MaxPostgresTopic = 63

	minReconnectDelay = 100 * time.Millisecond
	maxReconnectDelay = 5 * time.Second
)

var ErrTopicTooLong = errors.New("bus: topic name too long")

// Postgres fans out through LISTEN/NOTIFY, so every backend instance connected
// to the same database sees every event. Nothing is persisted.
//
// All topics share one dedicated listener connection outside the pool. The
// pool only runs NOTIFY and never has a connection parked on a subscriber.
// Notifications sent while the listener reconnects are lost.
type Postgres struct {
	pool    *pgxpool.Pool
	connect func(ctx context.Context) (*pgx.Conn, error)

	mu        sync.Mutex
	topics    map[string]*pgTopic
	pending   []listenCmd
	interrupt context.CancelFunc // wakes the listener to run pending commands

	closed    atomic.Bool
	connected atomic.Bool
	pid       atomic.Uint32
	stop      context.CancelFunc
	done      chan struct{}
}

type pgTopic struct {
	subs      []*subscription
	listening chan struct{} // closed once LISTEN ran on the current connection
	once      sync.Once
}

func (t *pgTopic) markListening() { t.once.Do(func() { close(t.listening) }) }

// listenCmd is LISTEN when topic is set, UNLISTEN otherwise.
type listenCmd struct {
	name  string
	topic *pgTopic
}

func (c listenCmd) sql() string {
	if c.topic != nil {
		return "LISTEN " + pgx.Identifier{c.name}.Sanitize()
	}
	return "UNLISTEN " + pgx.Identifier{c.name}.Sanitize()
}

// NewPostgres opens the listener connection with the pool's settings.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	connConfig := pool.Config().ConnConfig
	p := &Postgres{
		pool: pool,
		connect: func(ctx context.Context) (*pgx.Conn, error) {
			return pgx.ConnectConfig(ctx, connConfig.Copy())
		},
		topics: make(map[string]*pgTopic),
		done:   make(chan struct{}),
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open listener connection: %w", err)
	}

	p.pid.Store(conn.PgConn().PID())
	p.connected.Store(true)

	runCtx, stop := context.WithCancel(context.Background())
	p.stop = stop
	go p.run(runCtx, conn)
	return p, nil
}

func (p *Postgres) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if len(topic) > MaxPostgresTopic {
		return fmt.Errorf("%w: %q", ErrTopicTooLong, topic)
	}
	if len(payload) > maxNotifyPayload {
		return fmt.Errorf("%w: %d bytes for %s, NOTIFY allows %d", ErrPayloadTooLarge, len(payload), topic, maxNotifyPayload)
	}
	_, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", topic, string(payload))
	return err
}

// Subscribe returns once the listener connection LISTENs on topic.
func (p *Postgres) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	if len(topic) > MaxPostgresTopic {
		return fmt.Errorf("%w: %q", ErrTopicTooLong, topic)
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return ErrClosed
	}
	t, ok := p.topics[topic]
	if !ok {
		t = &pgTopic{listening: make(chan struct{})}
		p.topics[topic] = t
		p.enqueue(listenCmd{name: topic, topic: t})
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{ctx: subCtx, cancel: cancel, handler: handler}
	t.subs = append(t.subs, sub)
	p.mu.Unlock()

	go func() {
		<-subCtx.Done()
		p.remove(topic, sub)
	}()

	select {
	case <-t.listening:
		return nil
	case <-subCtx.Done():
		if p.closed.Load() {
			return ErrClosed
		}
		return ctx.Err()
	}
}

// enqueue needs p.mu held. Commands run in the order they were queued.
func (p *Postgres) enqueue(cmd listenCmd) {
	p.pending = append(p.pending, cmd)
	if p.interrupt != nil {
		p.interrupt()
	}
}

func (p *Postgres) remove(name string, target *subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.topics[name]
	if !ok {
		return
	}
	for i, sub := range t.subs {
		if sub == target {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			break
		}
	}
	if len(t.subs) == 0 {
		delete(p.topics, name)
		if !p.closed.Load() {
			p.enqueue(listenCmd{name: name})
		}
	}
}

// run owns the listener connection and replaces it with backoff when it fails.
func (p *Postgres) run(ctx context.Context, conn *pgx.Conn) {
	defer close(p.done)

	delay := minReconnectDelay
	for {
		if conn != nil {
			started := time.Now()
			err := p.serve(ctx, conn)
			p.connected.Store(false)
			_ = conn.Close(context.Background())
			if ctx.Err() != nil {
				return
			}
			if time.Since(started) > maxReconnectDelay {
				delay = minReconnectDelay
			}
			logger.Log.Error("bus listener connection lost", "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)

		var err error
		if conn, err = p.connect(ctx); err != nil {
			logger.Log.Error("failed to reconnect bus listener", "error", err, "retry_in", delay)
			conn = nil
			continue
		}
		logger.Log.Info("bus listener reconnected")
	}
}

// serve LISTENs on every subscribed topic, then alternates between pending
// LISTEN/UNLISTEN commands and waiting for notifications.
func (p *Postgres) serve(ctx context.Context, conn *pgx.Conn) error {
	p.mu.Lock()
	// a fresh connection listens on nothing, so queued commands are replaced
	// by the current topic set
	p.pending = nil
	topics := make(map[string]*pgTopic, len(p.topics))
	for name, t := range p.topics {
		topics[name] = t
	}
	p.mu.Unlock()

	for name, t := range topics {
		if _, err := conn.Exec(ctx, listenCmd{name: name, topic: t}.sql()); err != nil {
			return err
		}
		t.markListening()
	}
	p.pid.Store(conn.PgConn().PID())
	p.connected.Store(true)

	for {
		p.mu.Lock()
		cmds := p.pending
		p.pending = nil
		waitCtx, cancel := context.WithCancel(ctx)
		p.interrupt = cancel
		p.mu.Unlock()

		for _, cmd := range cmds {
			if _, err := conn.Exec(ctx, cmd.sql()); err != nil {
				cancel()
				return err
			}
			if cmd.topic != nil {
				cmd.topic.markListening()
			}
		}

		notification, err := conn.WaitForNotification(waitCtx)
		interrupted := waitCtx.Err() != nil
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if interrupted {
				continue
			}
			return err
		}
		p.dispatch(notification.Channel, []byte(notification.Payload))
	}
}

func (p *Postgres) dispatch(name string, payload []byte) {
	p.mu.Lock()
	t, ok := p.topics[name]
	var subs []*subscription
	if ok {
		subs = make([]*subscription, len(t.subs))
		copy(subs, t.subs)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		go sub.handler(payload)
	}
}

// listenerPID is the backend serving LISTEN, zero before the first connect.
func (p *Postgres) listenerPID() uint32 {
	return p.pid.Load()
}

// Ping fails while the listener connection is being replaced, subscribers
// miss events during that window.
func (p *Postgres) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if !p.connected.Load() {
		return errors.New("bus: postgres listener is reconnecting")
	}
	return p.pool.Ping(ctx)
}

// Close stops the listener and cancels all subscriptions. The pool belongs to the caller.
func (p *Postgres) Close() error {
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return ErrClosed
	}
	var subs []*subscription
	for _, t := range p.topics {
		subs = append(subs, t.subs...)
	}
	p.topics = make(map[string]*pgTopic)
	p.pending = nil
	p.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	p.stop()
	<-p.done
	return nil
}
