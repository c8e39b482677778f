package service

import (
	"context"
	"fmt"
	"time"

	"github.com/itchan-dev/itchat/shared/api"
	"github.com/itchan-dev/itchat/shared/domain"
)

// DeletedAtLayout is ISO-8601 with millisecond precision, UTC renders as "Z".
const DeletedAtLayout = "2006-01-02T15:04:05.000Z07:00"

type EventKind string

const (
	KindNew     EventKind = "new"
	KindSent    EventKind = "sent"
	KindEdit    EventKind = "edit"
	KindRefresh EventKind = "refresh"
	KindRestore EventKind = "restore"
	KindDelete  EventKind = "delete"
)

// Event is the closed set of payloads the publisher emits.
// Implementations live in this file only.
type Event interface {
	Kind() EventKind
	sealed()
}

// NewMessageEvent feeds the per-channel new-messages topic (unread counters).
type NewMessageEvent struct {
	ChannelId domain.ChannelId `json:"channel_id"`
	MessageId domain.MsgId     `json:"message_id"`
	UserId    domain.UserId    `json:"user_id"`
	Username  domain.Username  `json:"username"`
	ThreadId  *domain.ThreadId `json:"thread_id"`
}

type DeleteEvent struct {
	DeletedAt                 string        `json:"deleted_at"`
	DeletedId                 domain.MsgId  `json:"deleted_id"`
	LatestNotDeletedMessageId *domain.MsgId `json:"latest_not_deleted_message_id"`
	Type                      EventKind     `json:"type"`
}

type RefreshEvent struct {
	ChatMessage api.ChatMessage `json:"chat_message"`
	Type        EventKind       `json:"type"`
}

type SentEvent struct {
	ChatMessage    api.ChatMessage        `json:"chat_message"`
	StagedId       domain.StagedId        `json:"staged_id"`
	StagedThreadId *domain.StagedThreadId `json:"staged_thread_id"`
	Type           EventKind              `json:"type"`
}

type EditEvent struct {
	ChatMessage api.ChatMessage `json:"chat_message"`
	Type        EventKind       `json:"type"`
}

type RestoreEvent struct {
	ChatMessage api.ChatMessage `json:"chat_message"`
	Type        EventKind       `json:"type"`
}

func (*NewMessageEvent) Kind() EventKind { return KindNew }
func (*DeleteEvent) Kind() EventKind     { return KindDelete }
func (*RefreshEvent) Kind() EventKind    { return KindRefresh }
func (*SentEvent) Kind() EventKind       { return KindSent }
func (*EditEvent) Kind() EventKind       { return KindEdit }
func (*RestoreEvent) Kind() EventKind    { return KindRestore }

func (*NewMessageEvent) sealed() {}
func (*DeleteEvent) sealed()     {}
func (*RefreshEvent) sealed()    {}
func (*SentEvent) sealed()       {}
func (*EditEvent) sealed()       {}
func (*RestoreEvent) sealed()    {}

type HistoryLookup interface {
	// FindEarlierActiveMessage returns the not-deleted message with the highest id
	// below before within scope, or nil if there is none.
	FindEarlierActiveMessage(ctx context.Context, scope domain.HistoryScope, before domain.MsgId) (*domain.Message, error)
}

type MessageRenderer interface {
	Render(msg domain.Message) api.ChatMessage
}

// EventBuilder constructs event payloads. It keeps no state between calls.
type EventBuilder struct {
	history  HistoryLookup
	renderer MessageRenderer
}

func NewEventBuilder(history HistoryLookup, renderer MessageRenderer) *EventBuilder {
	return &EventBuilder{history: history, renderer: renderer}
}

func (b *EventBuilder) New(msg domain.Message) *NewMessageEvent {
	return &NewMessageEvent{
		ChannelId: msg.ChannelId,
		MessageId: msg.Id,
		UserId:    msg.Author.Id,
		Username:  msg.Author.Username,
		ThreadId:  nullableThreadId(msg),
	}
}

// Delete requires msg to be soft-deleted already.
func (b *EventBuilder) Delete(ctx context.Context, msg domain.Message, scope domain.HistoryScope) (*DeleteEvent, error) {
	if !msg.IsDeleted() {
		return nil, fmt.Errorf("%w: message %d", ErrMessageNotDeleted, msg.Id)
	}

	latest, err := b.history.FindEarlierActiveMessage(ctx, scope, msg.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest not deleted message before %d in %s: %w", msg.Id, scope, err)
	}
	var latestId *domain.MsgId
	if latest != nil {
		id := latest.Id
		latestId = &id
	}

	return &DeleteEvent{
		DeletedAt:                 FormatDeletedAt(msg.DeletedAt.Time),
		DeletedId:                 msg.Id,
		LatestNotDeletedMessageId: latestId,
		Type:                      KindDelete,
	}, nil
}

func (b *EventBuilder) Refresh(msg domain.Message) *RefreshEvent {
	return &RefreshEvent{ChatMessage: b.renderer.Render(msg), Type: KindRefresh}
}

func (b *EventBuilder) Sent(msg domain.Message, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) *SentEvent {
	ev := &SentEvent{ChatMessage: b.renderer.Render(msg), StagedId: stagedId, Type: KindSent}
	if stagedThreadId != "" {
		ev.StagedThreadId = &stagedThreadId
	}
	return ev
}

func (b *EventBuilder) Edit(msg domain.Message) *EditEvent {
	return &EditEvent{ChatMessage: b.renderer.Render(msg), Type: KindEdit}
}

func (b *EventBuilder) Restore(msg domain.Message) *RestoreEvent {
	return &RestoreEvent{ChatMessage: b.renderer.Render(msg), Type: KindRestore}
}

func FormatDeletedAt(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(DeletedAtLayout)
}

func nullableThreadId(msg domain.Message) *domain.ThreadId {
	if !msg.InThread() {
		return nil
	}
	id := msg.ThreadId.Int64
	return &id
}
