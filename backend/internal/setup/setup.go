package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/itchan-dev/itchat/backend/internal/bus"
	"github.com/itchan-dev/itchat/backend/internal/handler"
	"github.com/itchan-dev/itchat/backend/internal/render"
	"github.com/itchan-dev/itchat/backend/internal/service"
	"github.com/itchan-dev/itchat/backend/internal/storage/pg"
	"github.com/itchan-dev/itchat/backend/internal/utils"
	"github.com/itchan-dev/itchat/shared/config"
	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/jwt"
	mw "github.com/itchan-dev/itchat/shared/middleware"
	"github.com/itchan-dev/itchat/shared/middleware/ratelimiter"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        *pg.Storage
	Bus            *bus.Bus
	Handler        *handler.Handler
	Jwt            jwt.JwtService
	AuthMiddleware *mw.Auth
	MessageLimiter *ratelimiter.UserRateLimiter
	GlobalLimiter  *ratelimiter.UserRateLimiter
	StreamLimiter  *ratelimiter.UserRateLimiter
	TrashGC        *service.TrashGarbageCollector
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	eventBus, err := bus.New(ctx, cfg)
	if err != nil {
		storage.Cleanup()
		return nil, fmt.Errorf("failed to start message bus: %w", err)
	}

	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())
	renderer := render.New()
	settings := service.NewSiteSettings(domain.ChatSettings{ThreadedDiscussions: cfg.Public.ThreadedDiscussions})

	publisher := service.NewPublisher(eventBus, storage, renderer, settings)
	message := service.NewMessage(storage, &utils.MessageValidator{}, publisher)
	channel := service.NewChannel(storage, &utils.ChannelNameValidator{})

	readiness := handler.Checks{
		{Name: "database", Checker: storage},
		{Name: "bus", Checker: eventBus},
	}
	h := handler.New(message, channel, settings, eventBus, renderer, readiness, cfg)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Bus:            eventBus,
		Handler:        h,
		Jwt:            jwtService,
		AuthMiddleware: mw.NewAuth(jwtService),
		MessageLimiter: ratelimiter.Messages(),
		GlobalLimiter:  ratelimiter.Rps100(),
		StreamLimiter:  ratelimiter.Streams(),
		TrashGC:        service.NewTrashGarbageCollector(storage, cfg.Public.TrashRetention),
	}, nil
}

// Close releases the bus before the database, the postgres bus may share its server.
func (d *Dependencies) Close() error {
	d.MessageLimiter.Stop()
	d.GlobalLimiter.Stop()
	d.StreamLimiter.Stop()
	return errors.Join(d.Bus.Close(), d.Storage.Cleanup())
}
