package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/logger"
)

// Bus is the transport collaborator. Delivery guarantees are its business;
// the publisher never waits on or retries a publication.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type SettingsSource interface {
	Snapshot() domain.ChatSettings
}

type PublishStorage interface {
	ThreadLookup
	HistoryLookup
}

// Publisher turns message lifecycle changes into bus publications.
// It holds no per-call state and is safe for concurrent use.
type Publisher struct {
	bus      Bus
	settings SettingsSource
	resolver *TargetResolver
	builder  *EventBuilder
}

func NewPublisher(bus Bus, storage PublishStorage, renderer MessageRenderer, settings SettingsSource) *Publisher {
	return &Publisher{
		bus:      bus,
		settings: settings,
		resolver: NewTargetResolver(storage),
		builder:  NewEventBuilder(storage, renderer),
	}
}

// CalculatePublishTargets exposes the resolver with the current site settings.
func (p *Publisher) CalculatePublishTargets(ctx context.Context, channel domain.Channel, msg domain.Message, stagedThreadId domain.StagedThreadId) ([]string, error) {
	return p.resolver.Resolve(ctx, p.settings.Snapshot(), channel, msg, stagedThreadId)
}

// PublishNew notifies the channel's new-messages feed. The notification is
// suppressed for thread replies when threading is active, those are picked up
// through the thread topic instead so unread counters don't double count.
// This is deliberately not the resolver's rule.
func (p *Publisher) PublishNew(ctx context.Context, channel domain.Channel, msg domain.Message, stagedId domain.StagedId) error {
	if msg.ChannelId != channel.Id {
		return fmt.Errorf("%w: message %d belongs to channel %d, not %d", ErrChannelMismatch, msg.Id, msg.ChannelId, channel.Id)
	}

	settings := p.settings.Snapshot()
	if settings.ThreadingActive(channel) && msg.InThread() {
		placement, err := p.resolver.Placement(ctx, msg)
		if err != nil {
			return err
		}
		if placement == PlacementReply {
			chatPublicationsSuppressed.Inc()
			logger.Log.Debug("new message notification suppressed for thread reply",
				"channel_id", channel.Id, "message_id", msg.Id, "thread_id", msg.ThreadId.Int64, "staged_id", stagedId)
			return nil
		}
	}

	return p.emit(ctx, p.builder.New(msg), []string{NewMessagesTopic(channel.Id)})
}

// PublishSent fans the rendered message out to every resolved target, including
// the staged thread topic so the sender's optimistic thread gets the confirmation.
func (p *Publisher) PublishSent(ctx context.Context, channel domain.Channel, msg domain.Message, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) error {
	targets, _, err := p.resolver.resolve(ctx, p.settings.Snapshot(), channel, msg, stagedThreadId)
	if err != nil {
		return err
	}
	return p.emit(ctx, p.builder.Sent(msg, stagedId, stagedThreadId), targets)
}

// PublishDelete sends the delete payload, with the id of the message clients
// should treat as latest, to every resolved target.
func (p *Publisher) PublishDelete(ctx context.Context, channel domain.Channel, msg domain.Message) error {
	settings := p.settings.Snapshot()
	targets, placement, err := p.resolver.resolve(ctx, settings, channel, msg, "")
	if err != nil {
		return err
	}

	ev, err := p.builder.Delete(ctx, msg, HistoryScopeFor(settings, channel, msg, placement))
	if err != nil {
		return err
	}
	return p.emit(ctx, ev, targets)
}

func (p *Publisher) PublishRefresh(ctx context.Context, channel domain.Channel, msg domain.Message) error {
	targets, _, err := p.resolver.resolve(ctx, p.settings.Snapshot(), channel, msg, "")
	if err != nil {
		return err
	}
	return p.emit(ctx, p.builder.Refresh(msg), targets)
}

func (p *Publisher) PublishEdit(ctx context.Context, channel domain.Channel, msg domain.Message) error {
	targets, _, err := p.resolver.resolve(ctx, p.settings.Snapshot(), channel, msg, "")
	if err != nil {
		return err
	}
	return p.emit(ctx, p.builder.Edit(msg), targets)
}

func (p *Publisher) PublishRestore(ctx context.Context, channel domain.Channel, msg domain.Message) error {
	targets, _, err := p.resolver.resolve(ctx, p.settings.Snapshot(), channel, msg, "")
	if err != nil {
		return err
	}
	return p.emit(ctx, p.builder.Restore(msg), targets)
}

// emit encodes ev once and publishes the same bytes to every target.
// Bus failures are logged and counted, never returned.
func (p *Publisher) emit(ctx context.Context, ev Event, targets []string) error {
	kind := string(ev.Kind())
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}

	msgId := eventMessageId(ev)
	for _, topic := range targets {
		if err := p.bus.Publish(ctx, topic, payload); err != nil {
			chatPublicationsTotal.WithLabelValues(kind, "error").Inc()
			logger.Log.Error("failed to publish chat event", "kind", kind, "topic", topic, "message_id", msgId, "error", err)
			continue
		}
		chatPublicationsTotal.WithLabelValues(kind, "ok").Inc()
		logger.Log.Debug("published chat event", "kind", kind, "topic", topic, "message_id", msgId)
	}
	return nil
}

func eventMessageId(ev Event) domain.MsgId {
	switch e := ev.(type) {
	case *NewMessageEvent:
		return e.MessageId
	case *DeleteEvent:
		return e.DeletedId
	case *RefreshEvent:
		return e.ChatMessage.Id
	case *SentEvent:
		return e.ChatMessage.Id
	case *EditEvent:
		return e.ChatMessage.Id
	case *RestoreEvent:
		return e.ChatMessage.Id
	default:
		panic(fmt.Sprintf("unhandled chat event %T", ev))
	}
}
