package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

// Claims carried by access tokens. Subject is the username.
type Claims struct {
	UserUUID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TokenService) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserUUID: user.UUID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", core.E(core.KindInternal, "tokens.issue", err)
	}
	return token, nil
}

// Verify checks signature and expiry and returns the username of the token.
func (s *TokenService) Verify(token string) (string, error) {
	const op = "tokens.verify"
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		msg := "Could not validate credentials"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "Token has expired"
		}
		return "", &core.Error{Kind: core.KindUnauthorized, Op: op, Message: msg, Err: err}
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", core.Errorf(core.KindUnauthorized, op, "Could not validate credentials")
	}
	return claims.Subject, nil
}
