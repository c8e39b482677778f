package domain

// ChatSettings is a point-in-time snapshot of site-wide chat configuration.
type ChatSettings struct {
	ThreadedDiscussions bool
}

// ThreadingActive reports whether thread-aware routing applies to channel.
// Both the site flag and the channel flag must be on.
func (s ChatSettings) ThreadingActive(channel Channel) bool {
	return s.ThreadedDiscussions && channel.ThreadingEnabled
}
