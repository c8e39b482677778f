package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	TokenLength = 32 // bytes
	CookieName  = "csrfToken"
	HeaderName  = "X-CSRF-Token"
)

func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// NewCookie is readable by scripts so the frontend can echo it in HeaderName.
func NewCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Path:     "/",
		Name:     CookieName,
		Value:    token,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ValidateToken compares the cookie token with the header token in constant time.
func ValidateToken(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}
