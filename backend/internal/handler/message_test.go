package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/itchan-dev/itchat/shared/api"
	"github.com/itchan-dev/itchat/shared/domain"
	internal_errors "github.com/itchan-dev/itchat/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessageHandler(t *testing.T) {
	route := "/v1/channels/3/messages"

	t.Run("successful request", func(t *testing.T) {
		// Arrange
		var gotData domain.MessageCreationData
		var gotStaged, gotStagedThread string
		service := &MockMessageService{
			CreateFunc: func(ctx context.Context, data domain.MessageCreationData, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) (*domain.Message, error) {
				gotData, gotStaged, gotStagedThread = data, stagedId, stagedThreadId
				return &domain.Message{Id: 55, ChannelId: data.ChannelId, ThreadId: nullThread(9)}, nil
			},
		}
		h := newTestHandler(service, nil)
		body := []byte(`{"message": "hi", "in_reply_to_id": 12, "staged_id": "s-1", "staged_thread_id": "st-1"}`)

		// Act
		rr := serve(h, createRequest(t, http.MethodPost, route, body, &testUser))

		// Assert
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, domain.ChannelId(3), gotData.ChannelId)
		assert.Equal(t, testUser, gotData.Author)
		assert.Equal(t, "hi", gotData.Text)
		require.NotNil(t, gotData.InReplyTo)
		assert.Equal(t, domain.MsgId(12), *gotData.InReplyTo)
		assert.Equal(t, "s-1", gotStaged)
		assert.Equal(t, "st-1", gotStagedThread)

		var response api.CreateMessageResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		assert.Equal(t, int64(55), response.Id)
		require.NotNil(t, response.ThreadId)
		assert.Equal(t, int64(9), *response.ThreadId)
	})

	t.Run("invalid request body json", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodPost, route, []byte(`{invalid json::}`), &testUser))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Body is invalid json")
	})

	t.Run("missing required field (message)", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodPost, route, []byte(`{"staged_id": "x"}`), &testUser))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Required fields missing")
	})

	t.Run("rejects unsafe staged ids", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"staged id with newline", `{"message": "hi", "staged_id": "x\ndata: {}"}`},
			{"staged thread id with newline", `{"message": "hi", "staged_thread_id": "x\nevent: delete"}`},
			{"staged id too long", `{"message": "hi", "staged_id": "` + strings.Repeat("a", 65) + `"}`},
			{"staged thread id over topic limit", `{"message": "hi", "staged_thread_id": "` + strings.Repeat("a", 60) + `"}`},
			{"staged thread id with slash", `{"message": "hi", "staged_thread_id": "a/b"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				service := &MockMessageService{
					CreateFunc: func(ctx context.Context, data domain.MessageCreationData, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) (*domain.Message, error) {
						t.Error("Create must not be called")
						return nil, nil
					},
				}
				h := newTestHandler(service, nil)

				rr := serve(h, createRequest(t, http.MethodPost, route, []byte(tt.body), &testUser))

				assert.Equal(t, http.StatusBadRequest, rr.Code)
			})
		}
	})

	t.Run("no user in context", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodPost, route, []byte(`{"message": "hi"}`), nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid channel id", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodPost, "/v1/channels/abc/messages", []byte(`{"message": "hi"}`), &testUser))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("service error", func(t *testing.T) {
		service := &MockMessageService{
			CreateFunc: func(ctx context.Context, data domain.MessageCreationData, stagedId domain.StagedId, stagedThreadId domain.StagedThreadId) (*domain.Message, error) {
				return nil, internal_errors.NotFound("Channel")
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodPost, route, []byte(`{"message": "hi"}`), &testUser))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "Channel not found")
	})
}

func TestGetMessageHandler(t *testing.T) {
	t.Run("renders the message", func(t *testing.T) {
		service := &MockMessageService{
			GetFunc: func(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error) {
				return &domain.Message{Id: id, ChannelId: channelId, Text: "hello", Author: testUser}, nil
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodGet, "/v1/channels/3/messages/8", nil, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var msg api.ChatMessage
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
		assert.Equal(t, int64(8), msg.Id)
		assert.Equal(t, int64(3), msg.ChannelId)
		assert.Equal(t, "<p>hello</p>", msg.Cooked)
		assert.Equal(t, "bob", msg.User.Username)
	})

	t.Run("invalid message id", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodGet, "/v1/channels/3/messages/0", nil, nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		service := &MockMessageService{
			GetFunc: func(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error) {
				return nil, internal_errors.NotFound("Message")
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodGet, "/v1/channels/3/messages/8", nil, nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestListMessagesHandler(t *testing.T) {
	t.Run("passes the limit", func(t *testing.T) {
		var gotLimit int
		service := &MockMessageService{
			ListFunc: func(ctx context.Context, channelId domain.ChannelId, limit int) ([]domain.Message, error) {
				gotLimit = limit
				return []domain.Message{{Id: 2, ChannelId: channelId}, {Id: 1, ChannelId: channelId}}, nil
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodGet, "/v1/channels/3/messages?limit=20", nil, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 20, gotLimit)
		var messages []api.ChatMessage
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &messages))
		require.Len(t, messages, 2)
		assert.Equal(t, int64(2), messages[0].Id)
	})

	t.Run("empty channel is an empty list", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodGet, "/v1/channels/3/messages", nil, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String())
	})

	t.Run("invalid limit", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodGet, "/v1/channels/3/messages?limit=-1", nil, nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestEditMessageHandler(t *testing.T) {
	t.Run("successful edit", func(t *testing.T) {
		var gotUser domain.User
		var gotText string
		service := &MockMessageService{
			EditFunc: func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) (*domain.Message, error) {
				gotUser, gotText = user, text
				return &domain.Message{Id: id, ChannelId: channelId, Text: text}, nil
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodPut, "/v1/channels/3/messages/8", []byte(`{"message": "fixed"}`), &testUser))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, testUser, gotUser)
		assert.Equal(t, "fixed", gotText)
		assert.Contains(t, rr.Body.String(), "<p>fixed</p>")
	})

	t.Run("forbidden", func(t *testing.T) {
		service := &MockMessageService{
			EditFunc: func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) (*domain.Message, error) {
				return nil, &internal_errors.ErrorWithStatusCode{Message: "Not allowed", StatusCode: http.StatusForbidden}
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodPut, "/v1/channels/3/messages/8", []byte(`{"message": "fixed"}`), &testUser))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("no user in context", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodPut, "/v1/channels/3/messages/8", []byte(`{"message": "fixed"}`), nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestTrashAndRestoreMessageHandler(t *testing.T) {
	t.Run("trash", func(t *testing.T) {
		var trashed domain.MsgId
		service := &MockMessageService{
			TrashFunc: func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error {
				trashed = id
				return nil
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodDelete, "/v1/channels/3/messages/8", nil, &testUser))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, domain.MsgId(8), trashed)
	})

	t.Run("trash conflict", func(t *testing.T) {
		service := &MockMessageService{
			TrashFunc: func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error {
				return internal_errors.Conflict("Message is already deleted")
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodDelete, "/v1/channels/3/messages/8", nil, &testUser))

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("restore", func(t *testing.T) {
		var restored domain.MsgId
		service := &MockMessageService{
			RestoreFunc: func(ctx context.Context, user domain.User, channelId domain.ChannelId, id domain.MsgId) error {
				restored = id
				return nil
			},
		}
		h := newTestHandler(service, nil)

		rr := serve(h, createRequest(t, http.MethodPost, "/v1/channels/3/messages/8/restore", nil, &testUser))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, domain.MsgId(8), restored)
	})

	t.Run("restore without user", func(t *testing.T) {
		h := newTestHandler(nil, nil)

		rr := serve(h, createRequest(t, http.MethodPost, "/v1/channels/3/messages/8/restore", nil, nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRebakeMessageHandler(t *testing.T) {
	var rebaked domain.MsgId
	service := &MockMessageService{
		RebakeFunc: func(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error {
			rebaked = id
			return nil
		},
	}
	h := newTestHandler(service, nil)

	rr := serve(h, createRequest(t, http.MethodPost, "/v1/channels/3/messages/8/rebake", nil, &testUser))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, domain.MsgId(8), rebaked)
}
