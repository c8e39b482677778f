package domain

import "time"

type Thread struct {
	Id                ThreadId
	ChannelId         ChannelId
	OriginalMessageId MsgId
	CreatedAt         time.Time
}
