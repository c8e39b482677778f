package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/itchat/shared/config"
	"github.com/itchan-dev/itchat/shared/domain"
	mw "github.com/itchan-dev/itchat/shared/middleware"
)

var testUser = domain.User{Id: 7, Username: "bob"}

// setupTestRouter mounts the handler on the same paths the router uses, without auth middleware.
func setupTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/channels", h.ListChannels)
		r.Post("/channels", h.CreateChannel)
		r.Route("/channels/{channel}", func(r chi.Router) {
			r.Get("/", h.GetChannel)
			r.Put("/threading", h.SetChannelThreading)
			r.Get("/stream", h.Stream)
			r.Get("/threads/{thread}", h.GetThread)
			r.Get("/messages", h.ListMessages)
			r.Post("/messages", h.CreateMessage)
			r.Get("/messages/{message}", h.GetMessage)
			r.Put("/messages/{message}", h.EditMessage)
			r.Delete("/messages/{message}", h.TrashMessage)
			r.Post("/messages/{message}/restore", h.RestoreMessage)
			r.Post("/messages/{message}/rebake", h.RebakeMessage)
		})
		r.Get("/admin/site-settings", h.GetSiteSettings)
		r.Put("/admin/site-settings", h.UpdateSiteSettings)
	})
	return r
}

func newTestHandler(message *MockMessageService, channel *MockChannelService) *Handler {
	if message == nil {
		message = &MockMessageService{}
	}
	if channel == nil {
		channel = &MockChannelService{}
	}
	return New(message, channel, &MockSiteSettings{}, &MockEventStream{}, MockRenderer{}, &MockHealthChecker{}, &config.Config{})
}

func createRequest(t *testing.T, method, url string, body []byte, user *domain.User) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewBuffer(body))
	if user != nil {
		req = req.WithContext(context.WithValue(req.Context(), mw.UserClaimsKey, user))
	}
	return req
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	setupTestRouter(h).ServeHTTP(rr, req)
	return rr
}
