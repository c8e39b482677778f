package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/itchat/shared/api"
	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/errors"
	"github.com/itchan-dev/itchat/shared/utils"
)

// maxBodySize caps JSON request bodies
const maxBodySize = 64 << 10

func channelParam(r *http.Request) (domain.ChannelId, error) {
	return utils.ParseIdParam(chi.URLParam(r, "channel"), "channel")
}

func channelAndMessageParams(r *http.Request) (domain.ChannelId, domain.MsgId, error) {
	channelId, err := channelParam(r)
	if err != nil {
		return 0, 0, err
	}
	msgId, err := utils.ParseIdParam(chi.URLParam(r, "message"), "message")
	if err != nil {
		return 0, 0, err
	}
	return channelId, msgId, nil
}

// parseLimit reads the optional limit query parameter. Zero means server default.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.BadRequest("invalid limit: must be a non-negative integer")
	}
	return limit, nil
}

func channelResponse(channel domain.Channel) api.ChannelResponse {
	return api.ChannelResponse{
		Id:               channel.Id,
		Name:             channel.Name,
		ThreadingEnabled: channel.ThreadingEnabled,
	}
}
