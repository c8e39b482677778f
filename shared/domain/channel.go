package domain

import "time"

type ChannelCreationData struct {
	Name             ChannelName
	ThreadingEnabled bool
}

type Channel struct {
	Id               ChannelId
	Name             ChannelName
	ThreadingEnabled bool // owned by the channel, toggled by channel admins
	CreatedAt        time.Time
}
