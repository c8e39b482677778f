package domain

import "fmt"

type ScopeKind int

const (
	ChannelScope ScopeKind = iota
	ThreadScope
)

// HistoryScope bounds a message history lookup to either a whole channel or a single thread.
type HistoryScope struct {
	Kind      ScopeKind
	ChannelId ChannelId
	ThreadId  ThreadId // only meaningful for ThreadScope
}

func ChannelHistory(channel ChannelId) HistoryScope {
	return HistoryScope{Kind: ChannelScope, ChannelId: channel}
}

func ThreadHistory(channel ChannelId, thread ThreadId) HistoryScope {
	return HistoryScope{Kind: ThreadScope, ChannelId: channel, ThreadId: thread}
}

func (s HistoryScope) String() string {
	if s.Kind == ThreadScope {
		return fmt.Sprintf("channel:%d/thread:%d", s.ChannelId, s.ThreadId)
	}
	return fmt.Sprintf("channel:%d", s.ChannelId)
}
