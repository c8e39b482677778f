package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/itchan-dev/itchat/shared/domain"
)

// Topic names are a wire contract with existing subscribers.

func ChannelTopic(channel domain.ChannelId) string {
	return fmt.Sprintf("/chat/%d", channel)
}

// ThreadTopic takes the thread id as a string so staged (client-assigned) ids fit too.
func ThreadTopic(channel domain.ChannelId, thread string) string {
	return fmt.Sprintf("/chat/%d/thread/%s", channel, thread)
}

func NewMessagesTopic(channel domain.ChannelId) string {
	return fmt.Sprintf("/chat/%d/new-messages", channel)
}

// Placement says where a message sits relative to threads.
type Placement int

const (
	PlacementChannel  Placement = iota // not part of any thread
	PlacementOriginal                  // the message a thread was started from
	PlacementReply                     // a reply inside a thread
)

func (p Placement) String() string {
	switch p {
	case PlacementOriginal:
		return "original"
	case PlacementReply:
		return "reply"
	default:
		return "channel"
	}
}

type ThreadLookup interface {
	IsOriginalMessageOfThread(ctx context.Context, msg domain.Message, thread domain.ThreadId) (bool, error)
}

// TargetResolver computes the topic set a message update fans out to.
type TargetResolver struct {
	threads ThreadLookup
}

func NewTargetResolver(threads ThreadLookup) *TargetResolver {
	return &TargetResolver{threads: threads}
}

// Placement classifies msg. Storage is only consulted for messages that carry a thread.
func (r *TargetResolver) Placement(ctx context.Context, msg domain.Message) (Placement, error) {
	if !msg.InThread() {
		return PlacementChannel, nil
	}
	isOriginal, err := r.threads.IsOriginalMessageOfThread(ctx, msg, msg.ThreadId.Int64)
	if err != nil {
		return PlacementChannel, fmt.Errorf("failed to check thread %d original message: %w", msg.ThreadId.Int64, err)
	}
	if isOriginal {
		return PlacementOriginal, nil
	}
	return PlacementReply, nil
}

// Resolve returns the deduplicated topics for an update of msg in channel.
// stagedThreadId is optional; when set and threading is active it adds the staged thread topic.
func (r *TargetResolver) Resolve(ctx context.Context, settings domain.ChatSettings, channel domain.Channel, msg domain.Message, stagedThreadId domain.StagedThreadId) ([]string, error) {
	targets, _, err := r.resolve(ctx, settings, channel, msg, stagedThreadId)
	return targets, err
}

// resolve also returns the placement it used. The placement is only looked up
// when threading is active, otherwise it is reported as PlacementChannel.
func (r *TargetResolver) resolve(ctx context.Context, settings domain.ChatSettings, channel domain.Channel, msg domain.Message, stagedThreadId domain.StagedThreadId) ([]string, Placement, error) {
	if msg.ChannelId != channel.Id {
		return nil, PlacementChannel, fmt.Errorf("%w: message %d belongs to channel %d, not %d", ErrChannelMismatch, msg.Id, msg.ChannelId, channel.Id)
	}

	// threading UI is off, everything collapses to the channel stream
	if !settings.ThreadingActive(channel) {
		return []string{ChannelTopic(channel.Id)}, PlacementChannel, nil
	}

	placement, err := r.Placement(ctx, msg)
	if err != nil {
		return nil, PlacementChannel, err
	}
	return targetsFor(channel, msg, placement, stagedThreadId), placement, nil
}

// targetsFor assumes threading is active for channel.
func targetsFor(channel domain.Channel, msg domain.Message, placement Placement, stagedThreadId domain.StagedThreadId) []string {
	targets := newTopicSet()
	switch placement {
	case PlacementOriginal:
		targets.add(ChannelTopic(channel.Id))
		targets.add(ThreadTopic(channel.Id, strconv.FormatInt(msg.ThreadId.Int64, 10)))
	case PlacementReply:
		// replies must not flood the channel stream
		targets.add(ThreadTopic(channel.Id, strconv.FormatInt(msg.ThreadId.Int64, 10)))
	default:
		targets.add(ChannelTopic(channel.Id))
	}
	if stagedThreadId != "" {
		targets.add(ThreadTopic(channel.Id, stagedThreadId))
	}
	return targets.list()
}

// HistoryScopeFor picks where the latest-not-deleted lookup searches for a deleted msg.
func HistoryScopeFor(settings domain.ChatSettings, channel domain.Channel, msg domain.Message, placement Placement) domain.HistoryScope {
	if settings.ThreadingActive(channel) && placement == PlacementReply {
		return domain.ThreadHistory(channel.Id, msg.ThreadId.Int64)
	}
	return domain.ChannelHistory(channel.Id)
}

// topicSet keeps insertion order so callers get a deterministic fanout order.
type topicSet struct {
	seen   map[string]struct{}
	topics []string
}

func newTopicSet() *topicSet {
	return &topicSet{seen: make(map[string]struct{}, 2)}
}

func (s *topicSet) add(topic string) {
	if _, ok := s.seen[topic]; ok {
		return
	}
	s.seen[topic] = struct{}{}
	s.topics = append(s.topics, topic)
}

func (s *topicSet) list() []string {
	return s.topics
}
