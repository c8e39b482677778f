package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/itchan-dev/itchat/shared/domain"
	internal_errors "github.com/itchan-dev/itchat/shared/errors"
)

const messageColumns = `id, channel_id, thread_id, author_id, author_username, text, created_at, edited_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.Id, &msg.ChannelId, &msg.ThreadId, &msg.Author.Id, &msg.Author.Username,
		&msg.Text, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateMessage saves message to db. A thread id, if set, must belong to the same channel.
func (s *Storage) CreateMessage(ctx context.Context, creationData domain.MessageCreationData) (domain.MsgId, error) {
	var threadId sql.NullInt64
	if creationData.ThreadId != nil {
		threadId = sql.NullInt64{Int64: *creationData.ThreadId, Valid: true}
	}

	var id domain.MsgId
	err := s.db.QueryRowContext(ctx, `
	INSERT INTO chat_messages (channel_id, thread_id, author_id, author_username, text)
	SELECT $1::BIGINT, $2::BIGINT, $3::BIGINT, $4::VARCHAR, $5::TEXT
	WHERE $2::BIGINT IS NULL
	   OR EXISTS (SELECT 1 FROM chat_threads WHERE id = $2 AND channel_id = $1)
	RETURNING id`,
		creationData.ChannelId, threadId, creationData.Author.Id, creationData.Author.Username, creationData.Text,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return -1, internal_errors.NotFound("Thread")
		}
		if hasCode(err, foreignKeyViolation) {
			return -1, internal_errors.NotFound("Channel")
		}
		return -1, fmt.Errorf("failed to insert message: %w", err)
	}
	return id, nil
}

func (s *Storage) GetMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) (*domain.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx, `
	SELECT `+messageColumns+`
	FROM chat_messages
	WHERE channel_id = $1 AND id = $2`, channelId, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal_errors.NotFound("Message")
		}
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	return msg, nil
}

func (s *Storage) EditMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId, text domain.MsgText) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE chat_messages SET
		text = $1,
		edited_at = now()
	WHERE channel_id = $2 AND id = $3 AND deleted_at IS NULL`, text, channelId, id)
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return requireAffected(result, "Message")
}

// TrashMessage soft-deletes. Trashing an already deleted message is reported as not found.
func (s *Storage) TrashMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE chat_messages SET deleted_at = now()
	WHERE channel_id = $1 AND id = $2 AND deleted_at IS NULL`, channelId, id)
	if err != nil {
		return fmt.Errorf("failed to trash message: %w", err)
	}
	return requireAffected(result, "Message")
}

func (s *Storage) RestoreMessage(ctx context.Context, channelId domain.ChannelId, id domain.MsgId) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE chat_messages SET deleted_at = NULL
	WHERE channel_id = $1 AND id = $2 AND deleted_at IS NOT NULL`, channelId, id)
	if err != nil {
		return fmt.Errorf("failed to restore message: %w", err)
	}
	return requireAffected(result, "Message")
}

// PurgeTrashedMessages hard-deletes messages trashed before deletedBefore.
// Thread original messages stay, the thread row cascades from them.
func (s *Storage) PurgeTrashedMessages(ctx context.Context, channelId domain.ChannelId, deletedBefore time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
	DELETE FROM chat_messages m
	WHERE m.channel_id = $1 AND m.deleted_at < $2
	  AND NOT EXISTS (SELECT 1 FROM chat_threads t WHERE t.original_message_id = m.id)`, channelId, deletedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to purge trashed messages: %w", err)
	}
	return result.RowsAffected()
}

// FindEarlierActiveMessage returns the not deleted message with the highest id below
// before inside scope, nil if there is none.
func (s *Storage) FindEarlierActiveMessage(ctx context.Context, scope domain.HistoryScope, before domain.MsgId) (*domain.Message, error) {
	var row *sql.Row
	switch scope.Kind {
	case domain.ThreadScope:
		row = s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE channel_id = $1 AND thread_id = $2 AND id < $3 AND deleted_at IS NULL
		ORDER BY id DESC
		LIMIT 1`, scope.ChannelId, scope.ThreadId, before)
	case domain.ChannelScope:
		row = s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE channel_id = $1 AND id < $2 AND deleted_at IS NULL
		ORDER BY id DESC
		LIMIT 1`, scope.ChannelId, before)
	default:
		return nil, fmt.Errorf("unknown history scope %d", scope.Kind)
	}

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message before %d in %s: %w", before, scope, err)
	}
	return msg, nil
}

// ListMessages returns up to limit active messages of the channel, newest first.
func (s *Storage) ListMessages(ctx context.Context, channelId domain.ChannelId, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+messageColumns+`
	FROM chat_messages
	WHERE channel_id = $1 AND deleted_at IS NULL
	ORDER BY id DESC
	LIMIT $2`, channelId, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return messages, nil
}
