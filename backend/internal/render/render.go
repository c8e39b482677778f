// Package render cooks raw message markdown into the sanitized HTML clients display.
package render

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/itchan-dev/itchat/shared/api"
	"github.com/itchan-dev/itchat/shared/domain"
	"github.com/itchan-dev/itchat/shared/logger"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const ExcerptLength = 150

type Renderer struct {
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	excerpt *bluemonday.Policy
}

func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	)

	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{md: md, policy: policy, excerpt: bluemonday.StrictPolicy()}
}

// Cook renders text to sanitized HTML. Raw HTML in the source is never trusted.
func (r *Renderer) Cook(text string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		logger.Log.Warn("failed to render markdown, falling back to plain text", "error", err)
		return r.policy.Sanitize("<p>" + bluemonday.StrictPolicy().Sanitize(text) + "</p>")
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String()))
}

// Excerpt is the plain text preview of cooked HTML, cut at ExcerptLength runes.
func (r *Renderer) Excerpt(cooked string) string {
	plain := strings.Join(strings.Fields(r.excerpt.Sanitize(cooked)), " ")
	plain = html.UnescapeString(plain)
	if utf8.RuneCountInString(plain) <= ExcerptLength {
		return plain
	}
	runes := []rune(plain)
	return strings.TrimSpace(string(runes[:ExcerptLength])) + "…"
}

func (r *Renderer) Render(msg domain.Message) api.ChatMessage {
	cooked := r.Cook(msg.Text)
	out := api.ChatMessage{
		Id:        msg.Id,
		ChannelId: msg.ChannelId,
		Message:   msg.Text,
		Cooked:    cooked,
		Excerpt:   r.Excerpt(cooked),
		CreatedAt: msg.CreatedAt,
		Edited:    msg.EditedAt.Valid,
		User:      api.ChatUser{Id: msg.Author.Id, Username: msg.Author.Username},
	}
	if msg.ThreadId.Valid {
		id := msg.ThreadId.Int64
		out.ThreadId = &id
	}
	if msg.EditedAt.Valid {
		t := msg.EditedAt.Time
		out.EditedAt = &t
	}
	if msg.DeletedAt.Valid {
		t := msg.DeletedAt.Time
		out.DeletedAt = &t
	}
	return out
}
