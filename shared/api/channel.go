package api

import "time"

type CreateChannelRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	ThreadingEnabled bool   `json:"threading_enabled"`
}

type UpdateChannelRequest struct {
	ThreadingEnabled *bool `json:"threading_enabled" validate:"required"`
}

type ChannelResponse struct {
	Id               int64  `json:"id"`
	Name             string `json:"name"`
	ThreadingEnabled bool   `json:"threading_enabled"`
}

type SiteSettingsRequest struct {
	ThreadedDiscussions *bool `json:"enable_experimental_chat_threaded_discussions" validate:"required"`
}

type SiteSettingsResponse struct {
	ThreadedDiscussions bool `json:"enable_experimental_chat_threaded_discussions"`
}

type ThreadResponse struct {
	Id                int64     `json:"id"`
	ChannelId         int64     `json:"chat_channel_id"`
	OriginalMessageId int64     `json:"original_message_id"`
	CreatedAt         time.Time `json:"created_at"`
}
