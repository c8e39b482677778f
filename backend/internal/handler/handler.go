package handler

import (
	"context"

	"github.com/itchan-dev/itchat/backend/internal/bus"
	"github.com/itchan-dev/itchat/backend/internal/service"
	"github.com/itchan-dev/itchat/shared/config"
	"github.com/itchan-dev/itchat/shared/domain"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SiteSettings is the runtime copy of the site-wide chat settings.
type SiteSettings interface {
	Snapshot() domain.ChatSettings
	SetThreadedDiscussions(enabled bool)
}

// EventStream delivers bus envelopes published to topic until ctx is done.
type EventStream interface {
	Subscribe(ctx context.Context, topic string, handler func(bus.Envelope)) error
}

type Handler struct {
	message  service.MessageService
	channel  service.ChannelService
	settings SiteSettings
	stream   EventStream
	renderer service.MessageRenderer
	health   HealthChecker
	cfg      *config.Config
}

func New(message service.MessageService, channel service.ChannelService, settings SiteSettings, stream EventStream, renderer service.MessageRenderer, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{
		message:  message,
		channel:  channel,
		settings: settings,
		stream:   stream,
		renderer: renderer,
		health:   health,
		cfg:      cfg,
	}
}
