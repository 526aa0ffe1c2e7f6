package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/authsession/internal/model"
)

const (
	userColumns = "id,email,name,password_hash,role,status,created_at,last_active"

	insertUserSQL = "INSERT INTO users (id,email,name,password_hash,role,status,created_at) VALUES (?,?,?,?,?,?,?)"
)

// UserRepo reads and writes the `users` table. Callers pass emails already
// normalized.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// CreateWithRefreshToken inserts the user and their first refresh token in a
// single transaction, so a registered user always has a session. A unique
// email conflict is reported as ErrEmailExists.
func (r *UserRepo) CreateWithRefreshToken(ctx context.Context, u model.User, t model.RefreshToken) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertUserSQL,
			u.ID, u.Email, nullString(u.Name), u.PasswordHash, string(u.Role), string(u.Status), u.CreatedAt)
		if err != nil {
			if isDuplicateKey(err) {
				return ErrEmailExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if err := insertRefreshToken(ctx, tx, t); err != nil {
			return err
		}
		return nil
	})
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// TouchLastActive stamps users.last_active.
func (r *UserRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_active=? WHERE id=?", at, id)
	if err != nil {
		return fmt.Errorf("touch last_active: %w", err)
	}
	return nil
}

// Ping lets the readiness probe check the database.
func (r *UserRepo) Ping(ctx context.Context) error { return r.DB.PingContext(ctx) }

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u          model.User
		name       sql.NullString
		role       string
		status     string
		lastActive sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &name, &u.PasswordHash, &role, &status, &u.CreatedAt, &lastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Name = name.String
	u.Role = model.Role(role)
	u.Status = model.Status(status)
	if lastActive.Valid {
		t := lastActive.Time
		u.LastActive = &t
	}
	return u, nil
}
