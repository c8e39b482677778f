package handler

import (
	"context"
	"database/sql"
	"sync"

	"github.com/itchan-dev/itchat/backend/internal/bus"
	"github.com/itchan-dev/itchat/shared/api"
	"github.com/itchan-dev/itchat/shared/domain"
)

// --- Mocks ---

type MockMessageService struct {
	CreateFunc  func(ctx context.Context, creationData domain.MessageCreationData, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) (*domain.Message, error)
	GetFunc     func(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error)
	ListFunc    func(ctx context.Context, channelId domain.ChannelId, limit int) ([]domain.Message, error)
	EditFunc    func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) (*domain.Message, error)
	TrashFunc   func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error
	RestoreFunc func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error
	RebakeFunc  func(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error
}

func (m *MockMessageService) Create(ctx context.Context, creationData domain.MessageCreationData, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) (*domain.Message, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, creationData, stagedId, stagedThreadId)
	}
	return &domain.Message{Id: 1, ChannelId: creationData.ChannelId, Author: creationData.Author, Text: creationData.Text}, nil
}

func (m *MockMessageService) Get(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, channelId, id)
	}
	return &domain.Message{Id: id, ChannelId: channelId}, nil
}

func (m *MockMessageService) List(ctx context.Context, channelId domain.ChannelId, limit int) ([]domain.Message, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, channelId, limit)
	}
	return nil, nil
}

func (m *MockMessageService) Edit(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) (*domain.Message, error) {
	if m.EditFunc != nil {
		return m.EditFunc(ctx, user, channelId, id, text)
	}
	return &domain.Message{Id: id, ChannelId: channelId, Text: text}, nil
}

func (m *MockMessageService) Trash(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error {
	if m.TrashFunc != nil {
		return m.TrashFunc(ctx, user, channelId, id)
	}
	return nil
}

func (m *MockMessageService) Restore(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error {
	if m.RestoreFunc != nil {
		return m.RestoreFunc(ctx, user, channelId, id)
	}
	return nil
}

func (m *MockMessageService) Rebake(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error {
	if m.RebakeFunc != nil {
		return m.RebakeFunc(ctx, channelId, id)
	}
	return nil
}

type MockChannelService struct {
	CreateFunc              func(ctx context.Context, creationData domain.ChannelCreationData) (domain.Channel, error)
	GetFunc                 func(ctx context.Context, id domain.ChannelId) (domain.Channel, error)
	ListFunc                func(ctx context.Context) ([]domain.Channel, error)
	SetThreadingEnabledFunc func(ctx context.Context, id domain.ChannelId, enabled bool) (domain.Channel, error)
	GetThreadFunc           func(ctx context.Context, channelId domain.ChannelId, id domain.ThreadId) (domain.Thread, error)
}

func (m *MockChannelService) Create(ctx context.Context, creationData domain.ChannelCreationData) (domain.Channel, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, creationData)
	}
	return domain.Channel{Id: 1, Name: creationData.Name, ThreadingEnabled: creationData.ThreadingEnabled}, nil
}

func (m *MockChannelService) Get(ctx context.Context, id domain.ChannelId) (domain.Channel, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return domain.Channel{Id: id, Name: "general"}, nil
}

func (m *MockChannelService) List(ctx context.Context) ([]domain.Channel, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockChannelService) SetThreadingEnabled(ctx context.Context, id domain.ChannelId, enabled bool) (domain.Channel, error) {
	if m.SetThreadingEnabledFunc != nil {
		return m.SetThreadingEnabledFunc(ctx, id, enabled)
	}
	return domain.Channel{Id: id, Name: "general", ThreadingEnabled: enabled}, nil
}

func (m *MockChannelService) GetThread(ctx context.Context, channelId domain.ChannelId, id domain.ThreadId) (domain.Thread, error) {
	if m.GetThreadFunc != nil {
		return m.GetThreadFunc(ctx, channelId, id)
	}
	return domain.Thread{Id: id, ChannelId: channelId}, nil
}

type MockSiteSettings struct {
	mu       sync.Mutex
	settings domain.ChatSettings
}

func (m *MockSiteSettings) Snapshot() domain.ChatSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func (m *MockSiteSettings) SetThreadedDiscussions(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.ThreadedDiscussions = enabled
}

type MockEventStream struct {
	SubscribeFunc func(ctx context.Context, topic string, handler func(bus.Envelope)) error

	mu       sync.Mutex
	handlers map[string]func(bus.Envelope)
	// Subscribed is signalled once per successful subscription
	Subscribed chan string
}

func (m *MockEventStream) Subscribe(ctx context.Context, topic string, handler func(bus.Envelope)) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	m.mu.Lock()
	if m.handlers == nil {
		m.handlers = make(map[string]func(bus.Envelope))
	}
	m.handlers[topic] = handler
	m.mu.Unlock()
	if m.Subscribed != nil {
		m.Subscribed <- topic
	}
	return nil
}

func (m *MockEventStream) Deliver(envelope bus.Envelope) bool {
	m.mu.Lock()
	handler, ok := m.handlers[envelope.Topic]
	m.mu.Unlock()
	if ok {
		handler(envelope)
	}
	return ok
}

type MockRenderer struct{}

func (MockRenderer) Render(msg domain.Message) api.ChatMessage {
	var threadId *int64
	if msg.ThreadId.Valid {
		id := msg.ThreadId.Int64
		threadId = &id
	}
	return api.ChatMessage{
		Id:        msg.Id,
		ChannelId: msg.ChannelId,
		ThreadId:  threadId,
		Message:   msg.Text,
		Cooked:    "<p>" + msg.Text + "</p>",
		User:      api.ChatUser{Id: msg.Author.Id, Username: msg.Author.Username},
	}
}

func nullThread(id domain.ThreadId) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}
