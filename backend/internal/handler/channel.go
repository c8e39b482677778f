package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/itchat/shared/api"
	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/utils"
)

func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var body api.CreateChannelRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	channel, err := h.channel.Create(r.Context(), domain.ChannelCreationData{Name: body.Name, ThreadingEnabled: body.ThreadingEnabled})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, channelResponse(channel))
}

func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	channelId, err := channelParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	channel, err := h.channel.Get(r.Context(), channelId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, channelResponse(channel))
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channel.List(r.Context())
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	response := make([]api.ChannelResponse, len(channels))
	for i, channel := range channels {
		response[i] = channelResponse(channel)
	}
	utils.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) SetChannelThreading(w http.ResponseWriter, r *http.Request) {
	channelId, err := channelParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body api.UpdateChannelRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	channel, err := h.channel.SetThreadingEnabled(r.Context(), channelId, *body.ThreadingEnabled)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, channelResponse(channel))
}

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	channelId, err := channelParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	threadId, err := utils.ParseIdParam(chi.URLParam(r, "thread"), "thread")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	thread, err := h.channel.GetThread(r.Context(), channelId, threadId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, api.ThreadResponse{
		Id:                thread.Id,
		ChannelId:         thread.ChannelId,
		OriginalMessageId: thread.OriginalMessageId,
		CreatedAt:         thread.CreatedAt,
	})
}
