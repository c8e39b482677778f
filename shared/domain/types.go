package domain

type (
	UserId   = int64
	Username = string

	ChannelId   = int64
	ChannelName = string

	ThreadId = int64

	MsgId   = int64
	MsgText = string

	// client-assigned provisional ids, echoed back so optimistic UI can reconcile
	StagedId       = string
	StagedThreadId = string
)
