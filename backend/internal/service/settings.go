package service

import (
	"sync/atomic"

	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/logger"
)

// SiteSettings holds process-wide chat flags that admins can flip at runtime.
// Consumers take a Snapshot per call and pass it on explicitly.
type SiteSettings struct {
	threadedDiscussions atomic.Bool
}

func NewSiteSettings(initial domain.ChatSettings) *SiteSettings {
	s := &SiteSettings{}
	s.threadedDiscussions.Store(initial.ThreadedDiscussions)
	return s
}

func (s *SiteSettings) Snapshot() domain.ChatSettings {
	return domain.ChatSettings{ThreadedDiscussions: s.threadedDiscussions.Load()}
}

func (s *SiteSettings) SetThreadedDiscussions(enabled bool) {
	if s.threadedDiscussions.Swap(enabled) != enabled {
		logger.Log.Info("site setting changed", "setting", "enable_experimental_chat_threaded_discussions", "value", enabled)
	}
}
