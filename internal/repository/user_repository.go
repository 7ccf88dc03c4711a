package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/snippet-vault/internal/model"
	"github.com/iliyamo/snippet-vault/internal/utils"
)

// UserRepo provides access to the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password, inserts the user and seeds the default free
// subscription in one transaction, returning the new user's ID. Duplicate
// unique fields surface as ErrEmailExists or ErrUsernameExists, picked apart
// by constraint name so the client learns which field collided.
func (r *UserRepo) Create(ctx context.Context, email, username, firstName, lastName, password string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, email, username, first_name, last_name, password_hash) VALUES (?,?,?,?,?,?)",
		id, email, username, firstName, lastName, hash)
	if err != nil {
		return "", dupErr(err)
	}
	// Every account starts on the free plan; billing upgrades it later.
	_, err = tx.ExecContext(ctx,
		"INSERT INTO subscriptions (user_id, plan, status) VALUES (?,?,?)",
		id, model.PlanFree, model.SubStatusActive)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx,
		"SELECT id,email,username,first_name,last_name,profile_picture_url,password_hash,email_verified,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(ctx,
		"SELECT id,email,username,first_name,last_name,profile_picture_url,password_hash,email_verified,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id)
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg any) (model.User, error) {
	var u model.User
	var first, last, pic sql.NullString
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Username, &first, &last, &pic,
		&u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.FirstName = first.String
	u.LastName = last.String
	u.ProfilePictureURL = pic.String
	return u, nil
}

// dupErr maps a MySQL duplicate-key error (1062) onto the sentinel matching
// the violated constraint. Any other error passes through unchanged.
func dupErr(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	switch {
	case strings.Contains(msg, "uq_users_email"):
		return ErrEmailExists
	case strings.Contains(msg, "uq_users_username"):
		return ErrUsernameExists
	}
	return err
}
