package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/errors"
	"github.com/itchan-dev/itchat/shared/logger"
)

const MaxMessagesPage = 50

// to mock service in tests
type MessageService interface {
	Create(ctx context.Context, creationData domain.MessageCreationData, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) (*domain.Message, error)
	Get(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error)
	List(ctx context.Context, channelId domain.ChannelId, limit int) ([]domain.Message, error)
	Edit(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) (*domain.Message, error)
	Trash(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error
	Restore(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error
	Rebake(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error
}

type Message struct {
	storage   MessageStorage
	validator MessageValidator
	publisher MessagePublisher
}

type MessageStorage interface {
	GetChannel(ctx context.Context, id domain.ChannelId) (domain.Channel, error)
	GetMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error)
	ListMessages(ctx context.Context, channelId domain.ChannelId, limit int) ([]domain.Message, error)
	CreateMessage(ctx context.Context, creationData domain.MessageCreationData) (domain.MsgId, error)
	// CreateThread starts a thread around originalId and attaches the message to it.
	CreateThread(ctx context.Context, channelId domain.ChannelId, originalId domain.MsgId) (domain.ThreadId, error)
	EditMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) error
	TrashMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error
	RestoreMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error
}

type MessageValidator interface {
	Text(text string) error
}

type MessagePublisher interface {
	PublishNew(ctx context.Context, channel domain.Channel, msg domain.Message, stagedId domain.StagedId) error
	PublishSent(ctx context.Context, channel domain.Channel, msg domain.Message, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) error
	PublishDelete(ctx context.Context, channel domain.Channel, msg domain.Message) error
	PublishRefresh(ctx context.Context, channel domain.Channel, msg domain.Message) error
	PublishEdit(ctx context.Context, channel domain.Channel, msg domain.Message) error
	PublishRestore(ctx context.Context, channel domain.Channel, msg domain.Message) error
}

func NewMessage(storage MessageStorage, validator MessageValidator, publisher MessagePublisher) MessageService {
	return &Message{storage, validator, publisher}
}

// Create stores the message and notifies subscribers. Replies join the thread of
// their target, a thread is started around the target if it has none yet.
func (s *Message) Create(ctx context.Context, creationData domain.MessageCreationData, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) (*domain.Message, error) {
	if err := s.validator.Text(creationData.Text); err != nil {
		return nil, err
	}

	channel, err := s.storage.GetChannel(ctx, creationData.ChannelId)
	if err != nil {
		return nil, err
	}

	// target that got a new thread, subscribers learn its thread_id via refresh
	var threaded *domain.Message
	if creationData.InReplyTo != nil {
		target, err := s.storage.GetMessage(ctx, channel.Id, *creationData.InReplyTo)
		if err != nil {
			return nil, err
		}
		if target.IsDeleted() {
			return nil, errors.BadRequest("Can't reply to deleted message")
		}
		threadId := target.ThreadId.Int64
		if !target.InThread() {
			if threadId, err = s.storage.CreateThread(ctx, channel.Id, target.Id); err != nil {
				return nil, err
			}
			threaded = target
		}
		creationData.ThreadId = &threadId
	}

	id, err := s.storage.CreateMessage(ctx, creationData)
	if err != nil {
		return nil, err
	}
	msg, err := s.storage.GetMessage(ctx, channel.Id, id)
	if err != nil {
		return nil, err
	}

	if threaded != nil {
		target, err := s.storage.GetMessage(ctx, channel.Id, threaded.Id)
		if err != nil {
			return nil, err
		}
		if err := s.publisher.PublishRefresh(ctx, channel, *target); err != nil {
			return nil, fmt.Errorf("failed to publish refresh of thread original %d: %w", target.Id, err)
		}
	}

	if err := s.publisher.PublishSent(ctx, channel, *msg, stagedId, stagedThreadId); err != nil {
		return nil, fmt.Errorf("failed to publish sent message %d: %w", msg.Id, err)
	}
	if err := s.publisher.PublishNew(ctx, channel, *msg, stagedId); err != nil {
		return nil, fmt.Errorf("failed to publish new message %d: %w", msg.Id, err)
	}
	return msg, nil
}

func (s *Message) Get(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error) {
	return s.storage.GetMessage(ctx, channelId, id)
}

// List returns the newest active messages of the channel, at most limit and
// never more than MaxMessagesPage.
func (s *Message) List(ctx context.Context, channelId domain.ChannelId, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > MaxMessagesPage {
		limit = MaxMessagesPage
	}
	if _, err := s.storage.GetChannel(ctx, channelId); err != nil {
		return nil, err
	}
	return s.storage.ListMessages(ctx, channelId, limit)
}

func (s *Message) Edit(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) (*domain.Message, error) {
	if err := s.validator.Text(text); err != nil {
		return nil, err
	}
	channel, msg, err := s.load(ctx, channelId, id)
	if err != nil {
		return nil, err
	}
	if err := canModify(user, msg); err != nil {
		return nil, err
	}
	if msg.IsDeleted() {
		return nil, errors.BadRequest("Can't edit deleted message")
	}

	if err := s.storage.EditMessage(ctx, channelId, id, text); err != nil {
		return nil, err
	}
	if msg, err = s.storage.GetMessage(ctx, channelId, id); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishEdit(ctx, channel, *msg); err != nil {
		return nil, fmt.Errorf("failed to publish edit of message %d: %w", id, err)
	}
	return msg, nil
}

// Trash soft-deletes the message. The delete event is built from the reloaded
// message so it carries the stored deletion time.
func (s *Message) Trash(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error {
	channel, msg, err := s.load(ctx, channelId, id)
	if err != nil {
		return err
	}
	if err := canModify(user, msg); err != nil {
		return err
	}
	if msg.IsDeleted() {
		return errors.Conflict("Message is already deleted")
	}

	if err := s.storage.TrashMessage(ctx, channelId, id); err != nil {
		return err
	}
	if msg, err = s.storage.GetMessage(ctx, channelId, id); err != nil {
		return err
	}
	if err := s.publisher.PublishDelete(ctx, channel, *msg); err != nil {
		return fmt.Errorf("failed to publish delete of message %d: %w", id, err)
	}
	logger.Log.Info("message trashed", "channel_id", channelId, "message_id", id, "user_id", user.Id)
	return nil
}

func (s *Message) Restore(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error {
	channel, msg, err := s.load(ctx, channelId, id)
	if err != nil {
		return err
	}
	if err := canModify(user, msg); err != nil {
		return err
	}
	if !msg.IsDeleted() {
		return errors.Conflict("Message is not deleted")
	}

	if err := s.storage.RestoreMessage(ctx, channelId, id); err != nil {
		return err
	}
	if msg, err = s.storage.GetMessage(ctx, channelId, id); err != nil {
		return err
	}
	if err := s.publisher.PublishRestore(ctx, channel, *msg); err != nil {
		return fmt.Errorf("failed to publish restore of message %d: %w", id, err)
	}
	return nil
}

// Rebake re-renders the message for connected clients without changing it.
func (s *Message) Rebake(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error {
	channel, msg, err := s.load(ctx, channelId, id)
	if err != nil {
		return err
	}
	if err := s.publisher.PublishRefresh(ctx, channel, *msg); err != nil {
		return fmt.Errorf("failed to publish refresh of message %d: %w", id, err)
	}
	return nil
}

func (s *Message) load(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (domain.Channel, *domain.Message, error) {
	channel, err := s.storage.GetChannel(ctx, channelId)
	if err != nil {
		return domain.Channel{}, nil, err
	}
	msg, err := s.storage.GetMessage(ctx, channelId, id)
	if err != nil {
		return domain.Channel{}, nil, err
	}
	return channel, msg, nil
}

func canModify(user domain.User, msg *domain.Message) error {
	if user.Admin || user.Id == msg.Author.Id {
		return nil
	}
	return &errors.ErrorWithStatusCode{Message: "Not allowed to modify this message", StatusCode: http.StatusForbidden}
}
