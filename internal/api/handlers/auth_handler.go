package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	appMiddleware "github.com/markdave123-py/silverrag/internal/api/middlewares"
	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
	"github.com/markdave123-py/silverrag/internal/services"
)

type AuthHandler struct {
	users  *services.UserService
	tokens *services.TokenService
}

func NewAuthHandler(users *services.UserService, tokens *services.TokenService) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

// CreateUser registers a user. When the caller is authenticated the audit row
// names them as the creator.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, core.Errorf(core.KindValidation, "users.create", "invalid JSON body"))
		return
	}

	var createdBy *int64
	if u, ok := appMiddleware.UserFromContext(r.Context()); ok {
		createdBy = &u.ID
	}

	user, err := h.users.Create(r.Context(), req, createdBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Login accepts a JSON body or an OAuth2 style form with username and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			writeError(w, r, core.Errorf(core.KindValidation, "users.login", "invalid form body"))
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, core.Errorf(core.KindValidation, "users.login", "invalid JSON body"))
			return
		}
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer", User: user})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := appMiddleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, core.Errorf(core.KindUnauthorized, "users.change_password", "Not authenticated"))
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, core.Errorf(core.KindValidation, "users.change_password", "invalid JSON body"))
		return
	}
	if err := h.users.ChangePassword(r.Context(), user.ID, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := appMiddleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, core.Errorf(core.KindUnauthorized, "users.profile", "Not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
