package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/logger"
)

// TrashGarbageCollector removes messages that stayed trashed longer than the
// retention period. Subscribers were told about the deletion when it happened,
// so purging publishes nothing.
type TrashGarbageCollector struct {
	storage   TrashGCStorage
	retention time.Duration
	now       func() time.Time

	mu               sync.Mutex
	lastCleanupStats TrashCleanupStats
}

type TrashCleanupStats struct {
	RunAt           time.Time
	ChannelsScanned int
	MessagesPurged  int64
	DurationMs      int64
	Errors          []string
}

type TrashGCStorage interface {
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	// PurgeTrashedMessages keeps thread original messages, their threads reference them.
	PurgeTrashedMessages(ctx context.Context, channelId domain.ChannelId, deletedBefore time.Time) (int64, error)
}

// NewTrashGarbageCollector returns a collector purging messages trashed more
// than retention ago. A zero retention disables it.
func NewTrashGarbageCollector(storage TrashGCStorage, retention time.Duration) *TrashGarbageCollector {
	return &TrashGarbageCollector{
		storage:   storage,
		retention: retention,
		now:       time.Now,
	}
}

func (gc *TrashGarbageCollector) StartBackgroundCleanup(ctx context.Context, interval time.Duration) {
	if gc.retention <= 0 || interval <= 0 {
		logger.Log.Warn("trash retention not configured, background cleanup disabled",
			"component", "trash_gc")
		return
	}

	ticker := time.NewTicker(interval)
	logger.Log.Info("started trash garbage collector",
		"component", "trash_gc",
		"interval", interval,
		"retention", gc.retention)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.RunCleanup(ctx); err != nil {
					logger.Log.Error("trash gc cleanup failed",
						"component", "trash_gc",
						"error", err)
				} else {
					stats := gc.GetLastCleanupStats()
					logger.Log.Info("trash gc completed",
						"component", "trash_gc",
						"channels_scanned", stats.ChannelsScanned,
						"messages_purged", stats.MessagesPurged,
						"duration_ms", stats.DurationMs,
						"errors", len(stats.Errors))
				}
			case <-ctx.Done():
				logger.Log.Info("trash gc shutting down gracefully",
					"component", "trash_gc")
				return
			}
		}
	}()
}

// RunCleanup executes a single cycle. A failing channel is recorded in the
// stats and does not stop the others.
func (gc *TrashGarbageCollector) RunCleanup(ctx context.Context) error {
	if gc.retention <= 0 {
		return nil
	}

	startTime := gc.now()
	stats := TrashCleanupStats{
		RunAt:  startTime,
		Errors: []string{},
	}
	cutoff := startTime.Add(-gc.retention)

	channels, err := gc.storage.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel list: %w", err)
	}
	stats.ChannelsScanned = len(channels)

	for _, channel := range channels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		purged, err := gc.storage.PurgeTrashedMessages(ctx, channel.Id, cutoff)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("channel %d: %v", channel.Id, err))
			continue
		}
		stats.MessagesPurged += purged
	}
	chatMessagesPurged.Add(float64(stats.MessagesPurged))

	stats.DurationMs = time.Since(startTime).Milliseconds()
	gc.mu.Lock()
	gc.lastCleanupStats = stats
	gc.mu.Unlock()

	return nil
}

func (gc *TrashGarbageCollector) GetLastCleanupStats() TrashCleanupStats {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.lastCleanupStats
}
