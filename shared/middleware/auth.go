package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/itchan-dev/itchat/shared/domain"
	jwt_internal "github.com/itchan-dev/itchat/shared/jwt"
	"github.com/itchan-dev/itchat/shared/utils"
)

type key int

const UserClaimsKey key = 0

// AccessTokenCookie is set by the sign-in frontend; API clients send a bearer token instead.
const AccessTokenCookie = "accessToken"

type Auth struct {
	jwtService jwt_internal.JwtService
}

func NewAuth(jwtService jwt_internal.JwtService) *Auth {
	return &Auth{jwtService: jwtService}
}

func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return a.auth(false)
}

func (a *Auth) AdminOnly() func(http.Handler) http.Handler {
	return a.auth(true)
}

func (a *Auth) auth(adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r)
			if token == "" {
				http.Error(w, "Please sign-in", http.StatusUnauthorized)
				return
			}

			user, err := a.jwtService.ParseUser(token)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if adminOnly && !user.Admin {
				http.Error(w, "Access denied. Only for admin", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessToken prefers the cookie so browser sessions can't be overridden by a stray header.
func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// GetUserFromContext returns nil outside NeedAuth and AdminOnly.
func GetUserFromContext(r *http.Request) *domain.User {
	user, ok := r.Context().Value(UserClaimsKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}
