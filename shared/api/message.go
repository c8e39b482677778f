package api

import "time"

// Request DTOs

type CreateMessageRequest struct {
	Message        string `json:"message" validate:"required"`
	InReplyToId    *int64 `json:"in_reply_to_id,omitempty"`
	StagedId       string `json:"staged_id,omitempty" validate:"omitempty,max=64,token"`
	StagedThreadId string `json:"staged_thread_id,omitempty" validate:"omitempty,max=64,token"`
}

type EditMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// Response DTOs

type CreateMessageResponse struct {
	Id       int64  `json:"id"`
	ThreadId *int64 `json:"thread_id"`
}

type ChatUser struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
}

// ChatMessage is the client-facing representation of a message, shared by
// HTTP responses and bus payloads.
type ChatMessage struct {
	Id        int64      `json:"id"`
	ChannelId int64      `json:"chat_channel_id"`
	ThreadId  *int64     `json:"thread_id"`
	Message   string     `json:"message"`
	Cooked    string     `json:"cooked"`
	Excerpt   string     `json:"excerpt"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	Edited    bool       `json:"edited"`
	User      ChatUser   `json:"user"`
}
