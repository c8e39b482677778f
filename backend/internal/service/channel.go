package service

import (
	"context"

	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/logger"
)

type ChannelService interface {
	Create(ctx context.Context, creationData domain.ChannelCreationData) (domain.Channel, error)
	Get(ctx context.Context, id domain.ChannelId) (domain.Channel, error)
	List(ctx context.Context) ([]domain.Channel, error)
	SetThreadingEnabled(ctx context.Context, id domain.ChannelId, enabled bool) (domain.Channel, error)
	GetThread(ctx context.Context, channelId domain.ChannelId, id domain.ThreadId) (domain.Thread, error)
}

type Channel struct {
	storage   ChannelStorage
	validator ChannelValidator
}

type ChannelStorage interface {
	CreateChannel(ctx context.Context, creationData domain.ChannelCreationData) (domain.ChannelId, error)
	GetChannel(ctx context.Context, id domain.ChannelId) (domain.Channel, error)
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	SetChannelThreadingEnabled(ctx context.Context, id domain.ChannelId, enabled bool) error
	GetThread(ctx context.Context, channelId domain.ChannelId, id domain.ThreadId) (domain.Thread, error)
}

type ChannelValidator interface {
	Name(name string) error
}

func NewChannel(storage ChannelStorage, validator ChannelValidator) ChannelService {
	return &Channel{storage, validator}
}

func (s *Channel) Create(ctx context.Context, creationData domain.ChannelCreationData) (domain.Channel, error) {
	if err := s.validator.Name(creationData.Name); err != nil {
		return domain.Channel{}, err
	}
	id, err := s.storage.CreateChannel(ctx, creationData)
	if err != nil {
		return domain.Channel{}, err
	}
	return s.storage.GetChannel(ctx, id)
}

func (s *Channel) Get(ctx context.Context, id domain.ChannelId) (domain.Channel, error) {
	return s.storage.GetChannel(ctx, id)
}

func (s *Channel) List(ctx context.Context) ([]domain.Channel, error) {
	return s.storage.ListChannels(ctx)
}

// SetThreadingEnabled only flips the flag. Existing threads are kept and become
// visible again when threading is switched back on.
func (s *Channel) SetThreadingEnabled(ctx context.Context, id domain.ChannelId, enabled bool) (domain.Channel, error) {
	if err := s.storage.SetChannelThreadingEnabled(ctx, id, enabled); err != nil {
		return domain.Channel{}, err
	}
	logger.Log.Info("channel threading changed", "channel_id", id, "enabled", enabled)
	return s.storage.GetChannel(ctx, id)
}

func (s *Channel) GetThread(ctx context.Context, channelId domain.ChannelId, id domain.ThreadId) (domain.Thread, error) {
	return s.storage.GetThread(ctx, channelId, id)
}
