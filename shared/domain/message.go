package domain

import (
	"database/sql"
	"fmt"
	"time"
)

// to iterate thru layers: handler -> service -> storage
type MessageCreationData struct {
	ChannelId ChannelId
	Author    User
	Text      MsgText
	// reply target; a thread is created around it if it has none yet
	InReplyTo *MsgId
	// filled by the service once the thread is known
	ThreadId *ThreadId
}

type Message struct {
	Id        MsgId
	ChannelId ChannelId
	ThreadId  sql.NullInt64
	Author    User
	Text      MsgText
	CreatedAt time.Time
	EditedAt  sql.NullTime
	DeletedAt sql.NullTime // soft delete, NULL means active
}

func (m *Message) InThread() bool {
	return m.ThreadId.Valid
}

func (m *Message) IsDeleted() bool {
	return m.DeletedAt.Valid
}

// for debug
func (m *Message) String() string {
	return fmt.Sprintf("[id:%d, channel:%d, thread:%v, author:%d, created:%s, deleted:%v]",
		m.Id, m.ChannelId, m.ThreadId, m.Author.Id, m.CreatedAt.Format(time.StampMilli), m.DeletedAt.Valid)
}
