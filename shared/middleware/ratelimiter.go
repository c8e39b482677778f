package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/itchan-dev/itchat/shared/errors"
	"github.com/itchan-dev/itchat/shared/logger"
	"github.com/itchan-dev/itchat/shared/middleware/ratelimiter"
	"github.com/itchan-dev/itchat/shared/utils"
)

// KeyFunc names the bucket a request is charged to.
type KeyFunc func(r *http.Request) (string, error)

// RateLimit answers 429 with Retry-After once key's bucket is empty.
// Admins are never limited.
func RateLimit(rl *ratelimiter.UserRateLimiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := GetUserFromContext(r); user != nil && user.Admin {
				next.ServeHTTP(w, r)
				return
			}

			k, err := key(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			ok, wait := rl.Take(k)
			if !ok {
				logger.Log.Debug("rate limited", "key", k, "path", r.URL.Path, "retry_after", wait)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				utils.WriteErrorAndStatusCode(w, errors.TooManyRequests("Rate limit exceeded, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GlobalRateLimit charges every request to one shared bucket.
func GlobalRateLimit(rl *ratelimiter.UserRateLimiter) func(http.Handler) http.Handler {
	return RateLimit(rl, Global)
}

func Global(*http.Request) (string, error) { return "global", nil }

// ByUser needs NeedAuth earlier in the chain.
func ByUser(r *http.Request) (string, error) {
	user := GetUserFromContext(r)
	if user == nil {
		return "", &errors.ErrorWithStatusCode{Message: "Not authorized", StatusCode: http.StatusUnauthorized}
	}
	return fmt.Sprintf("user_%d", user.Id), nil
}
