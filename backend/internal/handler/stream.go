package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/itchan-dev/itchat/backend/internal/bus"
	"github.com/itchan-dev/itchat/backend/internal/service"
	"github.com/itchan-dev/itchat/shared/errors"
	"github.com/itchan-dev/itchat/shared/logger"
	"github.com/itchan-dev/itchat/shared/utils"
)

const (
	streamBuffer = 64
	// event name of every frame, the topic travels inside data
	streamEvent = "chat"
)

// overridden in tests
var keepAliveInterval = 25 * time.Second

// Stream forwards bus publications of a channel as server-sent events. The
// channel and new-messages topics are always followed; ?thread= adds one
// thread topic, either a thread id or a staged thread id.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	channelId, err := channelParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	topics := []string{service.ChannelTopic(channelId), service.NewMessagesTopic(channelId)}
	if thread := r.URL.Query().Get("thread"); thread != "" {
		topic, err := threadTopic(channelId, thread)
		if err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		topics = append(topics, topic)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	if _, err := h.channel.Get(r.Context(), channelId); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	ctx := r.Context()
	events := make(chan bus.Envelope, streamBuffer)
	forward := func(envelope bus.Envelope) {
		select {
		case events <- envelope:
		case <-ctx.Done():
		default:
			logger.Log.Warn("stream buffer full, dropping event", "topic", envelope.Topic, "id", envelope.Id)
		}
	}
	for _, topic := range topics {
		if err := h.stream.Subscribe(ctx, topic, forward); err != nil {
			logger.Log.Error("failed to subscribe stream", "topic", topic, "error", err)
			http.Error(w, "Stream unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case envelope := <-events:
			if err := writeEvent(w, envelope); err != nil {
				logger.Log.Debug("stream closed", "channel_id", channelId, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// threadTopic checks a client supplied thread or staged thread id before it
// becomes part of a topic name.
func threadTopic(channelId int64, thread string) (string, error) {
	if !utils.IsToken(thread) {
		return "", errors.BadRequest("invalid thread")
	}
	topic := service.ThreadTopic(channelId, thread)
	if len(topic) > bus.MaxPostgresTopic {
		return "", errors.BadRequest("invalid thread: too long")
	}
	return topic, nil
}

func writeEvent(w http.ResponseWriter, envelope bus.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", envelope.Id, streamEvent, data)
	return err
}
