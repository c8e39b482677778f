package handler

import (
	"net/http"

	"github.com/itchan-dev/itchat/shared/api"
	mw "github.com/itchan-dev/itchat/shared/middleware"
	"github.com/itchan-dev/itchat/shared/logger"
	"github.com/itchan-dev/itchat/shared/utils"
)

func (h *Handler) GetSiteSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.settings.Snapshot()
	utils.WriteJSON(w, http.StatusOK, api.SiteSettingsResponse{ThreadedDiscussions: settings.ThreadedDiscussions})
}

// UpdateSiteSettings flips the site-wide threaded discussions flag. The next
// publication picks it up, nothing already published is rewritten.
func (h *Handler) UpdateSiteSettings(w http.ResponseWriter, r *http.Request) {
	var body api.SiteSettingsRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.settings.SetThreadedDiscussions(*body.ThreadedDiscussions)
	if user := mw.GetUserFromContext(r); user != nil {
		logger.Log.Info("site settings updated", "admin_id", user.Id, "threaded_discussions", *body.ThreadedDiscussions)
	}

	settings := h.settings.Snapshot()
	utils.WriteJSON(w, http.StatusOK, api.SiteSettingsResponse{ThreadedDiscussions: settings.ThreadedDiscussions})
}
