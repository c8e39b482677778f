package jwt

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/itchan-dev/itchat/shared/domain"
	internal_errors "github.com/itchan-dev/itchat/shared/errors"
	"github.com/itchan-dev/itchat/shared/logger"
)

const issuer = "itchat"

// Claims carries the chat identity. Usernames are denormalized into messages,
// so the token is the only source of the display name.
type Claims struct {
	Uid      domain.UserId `json:"uid"`
	Username string        `json:"username"`
	Admin    bool          `json:"admin"`
	jwt.RegisteredClaims
}

type JwtService interface {
	NewToken(user domain.User) (string, error)
	ParseUser(token string) (domain.User, error)
}

type Jwt struct {
	secretKey []byte
	ttl       time.Duration
	parser    *jwt.Parser
}

func New(secretKey string, ttl time.Duration) JwtService {
	return &Jwt{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

func (j *Jwt) NewToken(user domain.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Uid:      user.Id,
		Username: user.Username,
		Admin:    user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(int64(user.Id), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		logger.Log.Error("failed to sign token", "uid", user.Id, "error", err)
		return "", errors.New("Can't create token")
	}
	return signed, nil
}

func (j *Jwt) ParseUser(token string) (domain.User, error) {
	var claims Claims
	_, err := j.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.User{}, unauthorized("Token expired, please sign-in again")
	case err != nil:
		logger.Log.Debug("token rejected", "error", err)
		return domain.User{}, unauthorized("Invalid access token")
	case claims.Username == "":
		logger.Log.Warn("token without username", "jti", claims.ID, "uid", claims.Uid)
		return domain.User{}, unauthorized("Invalid access token")
	}

	return domain.User{Id: claims.Uid, Username: claims.Username, Admin: claims.Admin}, nil
}

func unauthorized(msg string) error {
	return &internal_errors.ErrorWithStatusCode{Message: msg, StatusCode: http.StatusUnauthorized}
}
