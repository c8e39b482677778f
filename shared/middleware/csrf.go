package middleware

import (
	"net/http"

	"github.com/itchan-dev/itchat/shared/csrf"
	"github.com/itchan-dev/itchat/shared/logger"
)

// CSRF implements the double-submit cookie check for browser clients. Requests
// authenticated by the accessToken cookie must echo the csrfToken cookie in the
// X-CSRF-Token header on unsafe methods. Bearer clients are not affected.
func CSRF(secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookieToken := ""
			if c, err := r.Cookie(csrf.CookieName); err == nil {
				cookieToken = c.Value
			} else {
				token, err := csrf.GenerateToken()
				if err != nil {
					logger.Log.Error("failed to generate csrf token", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, csrf.NewCookie(token, secureCookies))
			}

			if !isSafeMethod(r.Method) && usesCookieAuth(r) && !csrf.ValidateToken(cookieToken, r.Header.Get(csrf.HeaderName)) {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// mirrors accessToken, which prefers the cookie
func usesCookieAuth(r *http.Request) bool {
	_, err := r.Cookie(AccessTokenCookie)
	return err == nil
}
