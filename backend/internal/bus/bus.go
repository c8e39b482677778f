// Package bus carries chat events from the publisher to subscribers.
//
// Brokers are dumb transports of []byte payloads keyed by topic. Bus wraps a
// broker and puts every payload into an Envelope with a unique id, so consumers
// of at-least-once transports can drop duplicates.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/itchan-dev/itchat/shared/config"
	"github.com/itchan-dev/itchat/shared/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrClosed          = errors.New("bus: broker is closed")
	ErrPayloadTooLarge = errors.New("bus: payload too large")
)

type Broker interface {
	// Publish is fire-and-forget: without subscribers the payload is dropped.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe calls handler asynchronously for every payload published to topic
	// until ctx is canceled or the broker is closed.
	Subscribe(ctx context.Context, topic string, handler func([]byte)) error
	// Ping reports whether the transport can currently carry payloads.
	Ping(ctx context.Context) error
	Close() error
}

type Envelope struct {
	Id          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	Data        json.RawMessage `json:"data"`
	PublishedAt time.Time       `json:"published_at"`
}

type Bus struct {
	broker  Broker
	timeout time.Duration
	release func()
}

func Wrap(broker Broker, publishTimeout time.Duration) *Bus {
	return &Bus{broker: broker, timeout: publishTimeout}
}

// New connects the broker selected by cfg.Public.Bus.Driver.
func New(ctx context.Context, cfg *config.Config) (*Bus, error) {
	busCfg := cfg.Public.Bus
	switch busCfg.Driver {
	case "memory":
		logger.Log.Info("using in-memory bus, events stay inside this process")
		return Wrap(NewMemory(), busCfg.PublishTimeout), nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Private.Pg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to create bus pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to connect bus pool: %w", err)
		}
		broker, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Log.Info("using postgres bus", "host", cfg.Private.Pg.Host, "dbname", cfg.Private.Pg.Dbname)
		b := Wrap(broker, busCfg.PublishTimeout)
		b.release = pool.Close
		return b, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     busCfg.RedisAddr,
			Password: cfg.Private.RedisPassword,
			DB:       busCfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Log.Info("using redis bus", "addr", busCfg.RedisAddr, "db", busCfg.RedisDB)
		return Wrap(NewRedis(client), busCfg.PublishTimeout), nil

	default:
		return nil, fmt.Errorf("unknown bus driver %q", busCfg.Driver)
	}
}

// Publish wraps payload, which must be valid JSON, into an Envelope.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	data, err := json.Marshal(Envelope{
		Id:          uuid.New(),
		Topic:       topic,
		Data:        payload,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode envelope for %s: %w", topic, err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.broker.Publish(ctx, topic, data)
}

// Subscribe decodes envelopes for handler. Undecodable payloads are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler func(Envelope)) error {
	return b.broker.Subscribe(ctx, topic, func(data []byte) {
		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			logger.Log.Warn("dropping malformed bus payload", "topic", topic, "error", err)
			return
		}
		handler(envelope)
	})
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.broker.Ping(ctx)
}

func (b *Bus) Close() error {
	err := b.broker.Close()
	if b.release != nil {
		b.release()
	}
	return err
}
