package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

const accessLogTimeout = 10 * time.Second

type ctxKey int

const userCtxKey ctxKey = iota

// TokenVerifier resolves a bearer token to a username.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserFromContext returns the user attached by JWTMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userCtxKey).(*models.User)
	return u, ok && u != nil
}

func ContextWithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// JWTMiddleware validates the Authorization header, loads the user named by the
// token and attaches it to the request context. With accessLog set, every
// authenticated request also leaves a <METHOD>_<path> row in user_logs.
func JWTMiddleware(tokens TokenVerifier, users core.UserStore, accessLog bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w, r, "Not authenticated")
				return
			}
			user, ok := authenticate(w, r, tokens, users, auth)
			if !ok {
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))

			if accessLog {
				logAccess(r, users, user.ID)
			}
		})
	}
}

// OptionalJWTMiddleware attaches the caller when a bearer token is sent and lets
// anonymous requests through. A token that is sent but invalid is still rejected.
func OptionalJWTMiddleware(tokens TokenVerifier, users core.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w, r, "Not authenticated")
				return
			}
			user, ok := authenticate(w, r, tokens, users, auth)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// authenticate resolves the bearer header to a user, writing the error
// response itself when it cannot.
func authenticate(w http.ResponseWriter, r *http.Request, tokens TokenVerifier, users core.UserStore, auth string) (*models.User, bool) {
	username, err := tokens.Verify(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("rejected bearer token")
		unauthorized(w, r, core.MessageOf(err))
		return nil, false
	}

	user, err := users.GetUserByUsername(r.Context(), username)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("username", username).Msg("failed to load user")
		writeJSON(w, r, http.StatusInternalServerError, "Internal server error", "Internal server error")
		return nil, false
	}
	if user == nil {
		unauthorized(w, r, "Could not validate credentials")
		return nil, false
	}
	return user, true
}

func logAccess(r *http.Request, users core.UserStore, userID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), accessLogTimeout)
	entry := &models.UserLog{
		UserID:  &userID,
		Action:  fmt.Sprintf("%s_%s", r.Method, r.URL.Path),
		Details: fmt.Sprintf("Accessed %s with %s", r.URL.Path, r.Method),
	}
	go func() {
		defer cancel()
		if err := users.CreateUserLog(ctx, entry); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("failed to log activity")
		}
	}()
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, r, http.StatusUnauthorized, "Unauthorized", message)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, tag, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":      tag,
		"message":    message,
		"request_id": middleware.GetReqID(r.Context()),
	})
}
