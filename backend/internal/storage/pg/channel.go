package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/itchan-dev/itchat/shared/domain"
	internal_errors "github.com/itchan-dev/itchat/shared/errors"
)

func (s *Storage) CreateChannel(ctx context.Context, creationData domain.ChannelCreationData) (domain.ChannelId, error) {
	var id domain.ChannelId
	err := s.db.QueryRowContext(ctx, `
	INSERT INTO chat_channels (name, threading_enabled)
	VALUES ($1, $2)
	RETURNING id`,
		creationData.Name, creationData.ThreadingEnabled).Scan(&id)
	if err != nil {
		if hasCode(err, uniqueViolation) {
			return -1, internal_errors.Conflict("Channel already exists")
		}
		return -1, fmt.Errorf("failed to insert channel: %w", err)
	}
	return id, nil
}

func (s *Storage) GetChannel(ctx context.Context, id domain.ChannelId) (domain.Channel, error) {
	var channel domain.Channel
	err := s.db.QueryRowContext(ctx, `
	SELECT id, name, threading_enabled, created_at
	FROM chat_channels
	WHERE id = $1`, id).Scan(&channel.Id, &channel.Name, &channel.ThreadingEnabled, &channel.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Channel{}, internal_errors.NotFound("Channel")
		}
		return domain.Channel{}, fmt.Errorf("failed to fetch channel: %w", err)
	}
	return channel, nil
}

func (s *Storage) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, name, threading_enabled, created_at
	FROM chat_channels
	ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channels: %w", err)
	}
	defer rows.Close()

	channels := []domain.Channel{}
	for rows.Next() {
		var channel domain.Channel
		if err := rows.Scan(&channel.Id, &channel.Name, &channel.ThreadingEnabled, &channel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return channels, nil
}

func (s *Storage) SetChannelThreadingEnabled(ctx context.Context, id domain.ChannelId, enabled bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE chat_channels SET threading_enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	return requireAffected(result, "Channel")
}

func requireAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return internal_errors.NotFound(what)
	}
	return nil
}
