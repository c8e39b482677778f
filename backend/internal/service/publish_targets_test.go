package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock for ThreadLookup ---

type MockThreadLookup struct {
	IsOriginalMessageOfThreadFunc func(ctx context.Context, msg domain.Message, thread domain.ThreadId) (bool, error)
}

func (m *MockThreadLookup) IsOriginalMessageOfThread(ctx context.Context, msg domain.Message, thread domain.ThreadId) (bool, error) {
	if m.IsOriginalMessageOfThreadFunc != nil {
		return m.IsOriginalMessageOfThreadFunc(ctx, msg, thread)
	}
	return false, nil
}

// originalsLookup treats the listed message ids as thread originals.
func originalsLookup(ids ...domain.MsgId) *MockThreadLookup {
	return &MockThreadLookup{
		IsOriginalMessageOfThreadFunc: func(_ context.Context, msg domain.Message, _ domain.ThreadId) (bool, error) {
			for _, id := range ids {
				if msg.Id == id {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func failingThreadLookup(t *testing.T) *MockThreadLookup {
	return &MockThreadLookup{
		IsOriginalMessageOfThreadFunc: func(context.Context, domain.Message, domain.ThreadId) (bool, error) {
			t.Error("thread lookup must not be called")
			return false, nil
		},
	}
}

// --- Fixtures ---

var (
	threadingOn  = domain.ChatSettings{ThreadedDiscussions: true}
	threadingOff = domain.ChatSettings{ThreadedDiscussions: false}
)

func testChannel(threading bool) domain.Channel {
	return domain.Channel{Id: 1, Name: "general", ThreadingEnabled: threading}
}

func channelMessage(id domain.MsgId) domain.Message {
	return domain.Message{Id: id, ChannelId: 1, Author: domain.User{Id: 7, Username: "bob"}, Text: "hello"}
}

func threadMessage(id domain.MsgId, thread domain.ThreadId) domain.Message {
	msg := channelMessage(id)
	msg.ThreadId = sql.NullInt64{Int64: thread, Valid: true}
	return msg
}

// --- Tests ---

func TestTopics(t *testing.T) {
	assert.Equal(t, "/chat/1", ChannelTopic(1))
	assert.Equal(t, "/chat/1/thread/10", ThreadTopic(1, "10"))
	assert.Equal(t, "/chat/1/thread/abc-123", ThreadTopic(1, "abc-123"))
	assert.Equal(t, "/chat/1/new-messages", NewMessagesTopic(1))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	original := threadMessage(100, 10)
	reply := threadMessage(101, 10)
	plain := channelMessage(102)

	t.Run("threading active", func(t *testing.T) {
		testCases := []struct {
			name     string
			msg      domain.Message
			staged   domain.StagedThreadId
			expected []string
		}{
			{name: "original message", msg: original, expected: []string{"/chat/1", "/chat/1/thread/10"}},
			{name: "thread reply", msg: reply, expected: []string{"/chat/1/thread/10"}},
			{name: "message without thread", msg: plain, expected: []string{"/chat/1"}},
			{name: "reply with staged thread", msg: reply, staged: "staged-1", expected: []string{"/chat/1/thread/10", "/chat/1/thread/staged-1"}},
			{name: "staged id equal to real thread id", msg: reply, staged: "10", expected: []string{"/chat/1/thread/10"}},
			{name: "original message with staged thread", msg: original, staged: "staged-1", expected: []string{"/chat/1", "/chat/1/thread/10", "/chat/1/thread/staged-1"}},
			{name: "plain message with staged thread", msg: plain, staged: "staged-1", expected: []string{"/chat/1", "/chat/1/thread/staged-1"}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				resolver := NewTargetResolver(originalsLookup(original.Id))

				targets, err := resolver.Resolve(ctx, threadingOn, testChannel(true), tc.msg, tc.staged)

				require.NoError(t, err)
				assert.Equal(t, tc.expected, targets)
			})
		}
	})

	t.Run("threading inactive collapses to channel topic", func(t *testing.T) {
		testCases := []struct {
			name     string
			settings domain.ChatSettings
			channel  domain.Channel
		}{
			{name: "site flag off", settings: threadingOff, channel: testChannel(true)},
			{name: "channel flag off", settings: threadingOn, channel: testChannel(false)},
			{name: "both off", settings: threadingOff, channel: testChannel(false)},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				resolver := NewTargetResolver(failingThreadLookup(t))

				for _, msg := range []domain.Message{original, reply, plain} {
					targets, err := resolver.Resolve(ctx, tc.settings, tc.channel, msg, "staged-1")
					require.NoError(t, err)
					assert.Equal(t, []string{"/chat/1"}, targets)
				}
			})
		}
	})

	t.Run("no storage lookup for message without thread", func(t *testing.T) {
		resolver := NewTargetResolver(failingThreadLookup(t))

		targets, err := resolver.Resolve(ctx, threadingOn, testChannel(true), plain, "")

		require.NoError(t, err)
		assert.Equal(t, []string{"/chat/1"}, targets)
	})

	t.Run("channel mismatch", func(t *testing.T) {
		resolver := NewTargetResolver(failingThreadLookup(t))
		msg := channelMessage(5)
		msg.ChannelId = 2

		_, err := resolver.Resolve(ctx, threadingOn, testChannel(true), msg, "")

		assert.ErrorIs(t, err, ErrChannelMismatch)
	})

	t.Run("storage error is propagated", func(t *testing.T) {
		mockErr := errors.New("connection reset")
		resolver := NewTargetResolver(&MockThreadLookup{
			IsOriginalMessageOfThreadFunc: func(context.Context, domain.Message, domain.ThreadId) (bool, error) {
				return false, mockErr
			},
		})

		_, err := resolver.Resolve(ctx, threadingOn, testChannel(true), reply, "")

		assert.ErrorIs(t, err, mockErr)
	})

	t.Run("lookup receives the message thread", func(t *testing.T) {
		var gotThread domain.ThreadId
		resolver := NewTargetResolver(&MockThreadLookup{
			IsOriginalMessageOfThreadFunc: func(_ context.Context, _ domain.Message, thread domain.ThreadId) (bool, error) {
				gotThread = thread
				return false, nil
			},
		})

		_, err := resolver.Resolve(ctx, threadingOn, testChannel(true), threadMessage(3, 42), "")

		require.NoError(t, err)
		assert.Equal(t, domain.ThreadId(42), gotThread)
	})
}

func TestPlacement(t *testing.T) {
	ctx := context.Background()
	resolver := NewTargetResolver(originalsLookup(100))

	testCases := []struct {
		msg      domain.Message
		expected Placement
	}{
		{msg: channelMessage(1), expected: PlacementChannel},
		{msg: threadMessage(100, 10), expected: PlacementOriginal},
		{msg: threadMessage(101, 10), expected: PlacementReply},
	}

	for _, tc := range testCases {
		t.Run(tc.expected.String(), func(t *testing.T) {
			placement, err := resolver.Placement(ctx, tc.msg)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, placement)
		})
	}
}

func TestHistoryScopeFor(t *testing.T) {
	reply := threadMessage(101, 10)

	t.Run("reply with threading active searches the thread", func(t *testing.T) {
		scope := HistoryScopeFor(threadingOn, testChannel(true), reply, PlacementReply)
		assert.Equal(t, domain.ThreadHistory(1, 10), scope)
	})

	t.Run("original message searches the channel", func(t *testing.T) {
		scope := HistoryScopeFor(threadingOn, testChannel(true), threadMessage(100, 10), PlacementOriginal)
		assert.Equal(t, domain.ChannelHistory(1), scope)
	})

	t.Run("threading inactive searches the channel", func(t *testing.T) {
		assert.Equal(t, domain.ChannelHistory(1), HistoryScopeFor(threadingOff, testChannel(true), reply, PlacementReply))
		assert.Equal(t, domain.ChannelHistory(1), HistoryScopeFor(threadingOn, testChannel(false), reply, PlacementReply))
	})
}
