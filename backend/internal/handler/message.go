package handler

import (
	"net/http"

	"github.com/itchan-dev/itchat/shared/api"
	"github.com/itchan-dev/itchat/shared/domain"
	mw "github.com/itchan-dev/itchat/shared/middleware"
	"github.com/itchan-dev/itchat/shared/utils"
)

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user := mw.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Not authorized", http.StatusUnauthorized)
		return
	}
	channelId, err := channelParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body api.CreateMessageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if body.StagedThreadId != "" {
		if _, err := threadTopic(channelId, body.StagedThreadId); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
	}

	creationData := domain.MessageCreationData{
		ChannelId: channelId,
		Author:    *user,
		Text:      body.Message,
		InReplyTo: body.InReplyToId,
	}
	msg, err := h.message.Create(r.Context(), creationData, body.StagedId, body.StagedThreadId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	response := api.CreateMessageResponse{Id: msg.Id}
	if msg.InThread() {
		threadId := msg.ThreadId.Int64
		response.ThreadId = &threadId
	}
	utils.WriteJSON(w, http.StatusCreated, response)
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	channelId, msgId, err := channelAndMessageParams(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	msg, err := h.message.Get(r.Context(), channelId, msgId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.renderer.Render(*msg))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	channelId, err := channelParam(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	messages, err := h.message.List(r.Context(), channelId, limit)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	response := make([]api.ChatMessage, len(messages))
	for i, msg := range messages {
		response[i] = h.renderer.Render(msg)
	}
	utils.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	user := mw.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Not authorized", http.StatusUnauthorized)
		return
	}
	channelId, msgId, err := channelAndMessageParams(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	var body api.EditMessageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	msg, err := h.message.Edit(r.Context(), *user, channelId, msgId, body.Message)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.renderer.Render(*msg))
}

func (h *Handler) TrashMessage(w http.ResponseWriter, r *http.Request) {
	user := mw.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Not authorized", http.StatusUnauthorized)
		return
	}
	channelId, msgId, err := channelAndMessageParams(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.message.Trash(r.Context(), *user, channelId, msgId); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RestoreMessage(w http.ResponseWriter, r *http.Request) {
	user := mw.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Not authorized", http.StatusUnauthorized)
		return
	}
	channelId, msgId, err := channelAndMessageParams(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.message.Restore(r.Context(), *user, channelId, msgId); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RebakeMessage re-renders a message and tells clients to reload it. Admin only.
func (h *Handler) RebakeMessage(w http.ResponseWriter, r *http.Request) {
	channelId, msgId, err := channelAndMessageParams(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.message.Rebake(r.Context(), channelId, msgId); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
