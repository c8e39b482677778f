package service

import "errors"

var (
	// ErrMessageNotDeleted means a delete event was requested for an active message.
	// It is a caller bug, nothing is published.
	ErrMessageNotDeleted = errors.New("message is not deleted")

	// ErrChannelMismatch means the message does not belong to the channel it was published for.
	ErrChannelMismatch = errors.New("message does not belong to channel")
)
