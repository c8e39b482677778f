package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/itchan-dev/itchat/shared/domain"
	internal_errors "github.com/itchan-dev/itchat/shared/errors"
)

// CreateThread starts a thread around originalId and attaches the original to it.
// Creating a thread for a message that already has one returns the existing thread.
func (s *Storage) CreateThread(ctx context.Context, channelId domain.ChannelId, originalId domain.MsgId) (domain.ThreadId, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// lock the original so concurrent replies don't both start a thread
	var existing sql.NullInt64
	err = tx.QueryRowContext(ctx, `
	SELECT thread_id FROM chat_messages
	WHERE id = $1 AND channel_id = $2
	FOR UPDATE`, originalId, channelId).Scan(&existing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return -1, internal_errors.NotFound("Message")
		}
		return -1, fmt.Errorf("failed to lock original message: %w", err)
	}
	if existing.Valid {
		return existing.Int64, nil
	}

	var id domain.ThreadId
	err = tx.QueryRowContext(ctx, `
	INSERT INTO chat_threads (channel_id, original_message_id)
	VALUES ($1, $2)
	RETURNING id`, channelId, originalId).Scan(&id)
	if err != nil {
		return -1, fmt.Errorf("failed to insert thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chat_messages SET thread_id = $1 WHERE id = $2`, id, originalId); err != nil {
		return -1, fmt.Errorf("failed to attach original message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return -1, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

func (s *Storage) GetThread(ctx context.Context, channelId domain.ChannelId, id domain.ThreadId) (domain.Thread, error) {
	var thread domain.Thread
	err := s.db.QueryRowContext(ctx, `
	SELECT id, channel_id, original_message_id, created_at
	FROM chat_threads
	WHERE channel_id = $1 AND id = $2`, channelId, id).Scan(&thread.Id, &thread.ChannelId, &thread.OriginalMessageId, &thread.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Thread{}, internal_errors.NotFound("Thread")
		}
		return domain.Thread{}, fmt.Errorf("failed to fetch thread: %w", err)
	}
	return thread, nil
}

func (s *Storage) IsOriginalMessageOfThread(ctx context.Context, msg domain.Message, thread domain.ThreadId) (bool, error) {
	var isOriginal bool
	err := s.db.QueryRowContext(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM chat_threads WHERE id = $1 AND original_message_id = $2
	)`, thread, msg.Id).Scan(&isOriginal)
	if err != nil {
		return false, fmt.Errorf("failed to check original message: %w", err)
	}
	return isOriginal, nil
}
