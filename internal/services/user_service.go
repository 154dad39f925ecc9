package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

type UserService struct {
	db core.UserStore
}

func NewUserService(db core.UserStore) *UserService {
	return &UserService{db: db}
}

type CreateUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create registers a user. createdBy is the acting user, nil for self sign up.
func (s *UserService) Create(ctx context.Context, in CreateUserInput, createdBy *int64) (*models.User, error) {
	const op = "users.create"

	username := strings.TrimSpace(in.Username)
	if len(username) < minUsernameLength {
		return nil, core.Errorf(core.KindValidation, op, "Username must be at least %d characters long", minUsernameLength)
	}
	if len(in.Password) < minPasswordLength {
		return nil, core.Errorf(core.KindValidation, op, "Password must be at least %d characters long", minPasswordLength)
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleAdmin, models.RoleUser:
	default:
		return nil, core.Errorf(core.KindValidation, op, "Role must be %q or %q", models.RoleAdmin, models.RoleUser)
	}

	existing, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, core.Errorf(core.KindConflict, op, "Username already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}
	user := &models.User{
		UUID:         uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.db.CreateUser(ctx, user, createdBy); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user when the credentials match.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.db.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, core.Errorf(core.KindUnauthorized, "users.authenticate", "Incorrect username or password")
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID int64, password string) error {
	const op = "users.change_password"
	if len(password) < minPasswordLength {
		return core.Errorf(core.KindValidation, op, "Password must be at least %d characters long", minPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return core.E(core.KindInternal, op, err)
	}
	return s.db.UpdatePassword(ctx, userID, hash)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, core.Errorf(core.KindNotFound, "users.get", "User not found")
	}
	return user, nil
}

// LogActivity appends an audit row for userID.
func (s *UserService) LogActivity(ctx context.Context, userID int64, action, details string) error {
	return s.db.CreateUserLog(ctx, &models.UserLog{UserID: &userID, Action: action, Details: details})
}
