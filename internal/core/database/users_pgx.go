package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

const uniqueViolation = "23505"

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User, createdBy *int64) error {
	if user == nil {
		return core.Errorf(core.KindValidation, "db.create_user", "nil user")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return core.E(core.KindDatabase, "db.create_user", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO users (uuid, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, q, user.UUID, user.Username, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &core.Error{Kind: core.KindConflict, Op: "db.create_user", Message: "username already exists", Err: err}
		}
		return core.E(core.KindDatabase, "db.create_user", err)
	}

	if err := insertUserLog(ctx, tx, createdBy, models.ActionCreateUser, fmt.Sprintf("Created user %s", user.Username)); err != nil {
		return core.E(core.KindDatabase, "db.create_user", err)
	}
	if err := tx.Commit(); err != nil {
		return core.E(core.KindDatabase, "db.create_user", err)
	}
	return nil
}

func (c *DatabaseClient) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const q = `
		SELECT id, uuid, username, password_hash, role, created_at, updated_at
		FROM users WHERE username = $1
	`
	return c.getUser(ctx, "db.get_user_by_username", q, username)
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	const q = `
		SELECT id, uuid, username, password_hash, role, created_at, updated_at
		FROM users WHERE id = $1
	`
	return c.getUser(ctx, "db.get_user", q, id)
}

func (c *DatabaseClient) getUser(ctx context.Context, op, q string, arg any) (*models.User, error) {
	var u models.User
	err := c.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.UUID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.E(core.KindDatabase, op, err)
	}
	return &u, nil
}

func (c *DatabaseClient) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return core.E(core.KindDatabase, "db.update_password", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, q, userID, passwordHash)
	if err != nil {
		return core.E(core.KindDatabase, "db.update_password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Errorf(core.KindNotFound, "db.update_password", "user not found")
	}

	if err := insertUserLog(ctx, tx, &userID, models.ActionUpdatePassword, "Password updated"); err != nil {
		return core.E(core.KindDatabase, "db.update_password", err)
	}
	if err := tx.Commit(); err != nil {
		return core.E(core.KindDatabase, "db.update_password", err)
	}
	return nil
}

func (c *DatabaseClient) CreateUserLog(ctx context.Context, entry *models.UserLog) error {
	if entry == nil {
		return core.Errorf(core.KindValidation, "db.create_user_log", "nil log entry")
	}
	const q = `
		INSERT INTO user_logs (user_id, action, details)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := c.db.QueryRowContext(ctx, q, nullableID(entry.UserID), entry.Action, entry.Details).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return core.E(core.KindDatabase, "db.create_user_log", err)
	}
	return nil
}

func insertUserLog(ctx context.Context, tx *sql.Tx, userID *int64, action, details string) error {
	const q = `INSERT INTO user_logs (user_id, action, details) VALUES ($1, $2, $3)`
	_, err := tx.ExecContext(ctx, q, nullableID(userID), action, details)
	return err
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
