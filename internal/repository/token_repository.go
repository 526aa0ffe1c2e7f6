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
	tokenColumns = "id,user_id,token_hash,issued_at,expires_at,revoked,revoked_at,revoked_reason,replaced_by,user_agent,ip"

	insertTokenSQL = "INSERT INTO refresh_tokens (id,user_id,token_hash,issued_at,expires_at,revoked,user_agent,ip) VALUES (?,?,?,?,?,0,?,?)"

	revokeTokenSQL = "UPDATE refresh_tokens SET revoked=1, revoked_at=?, revoked_reason=? WHERE id=? AND revoked=0"

	rotateTokenSQL = "UPDATE refresh_tokens SET revoked=1, revoked_at=?, revoked_reason=?, replaced_by=? WHERE id=? AND revoked=0"

	revokeExpiredSQL = "UPDATE refresh_tokens SET revoked=1, revoked_at=?, revoked_reason=? WHERE user_id=? AND revoked=0 AND expires_at<=?"
)

// TokenRepo persists refresh tokens keyed by the SHA-256 hash of the secret.
// Every revocation is a conditional update on revoked=0, so the flag flips
// at most once and concurrent revokers cannot both win.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRefreshToken(ctx context.Context, db execer, t model.RefreshToken) error {
	_, err := db.ExecContext(ctx, insertTokenSQL,
		t.ID, t.UserID, t.TokenHash, t.IssuedAt, t.ExpiresAt, nullString(t.UserAgent), nullString(t.IP))
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Insert stores a new active refresh token.
func (r *TokenRepo) Insert(ctx context.Context, t model.RefreshToken) error {
	return insertRefreshToken(ctx, r.DB, t)
}

// FindByLookupHash returns the token whose hash matches, revoked or not.
func (r *TokenRepo) FindByLookupHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	var (
		t          model.RefreshToken
		revokedAt  sql.NullTime
		reason     sql.NullString
		replacedBy sql.NullString
		userAgent  sql.NullString
		ip         sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? LIMIT 1", hash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.Revoked,
			&revokedAt, &reason, &replacedBy, &userAgent, &ip)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		t.RevokedAt = &at
	}
	t.RevokedReason = model.RevokeReason(reason.String)
	t.ReplacedBy = replacedBy.String
	t.UserAgent = userAgent.String
	t.IP = ip.String
	return t, nil
}

// Revoke marks one token revoked. It reports whether this call flipped the
// flag; revoking an already revoked token is not an error.
func (r *TokenRepo) Revoke(ctx context.Context, id string, reason model.RevokeReason, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, revokeTokenSQL, at, string(reason), id)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return n == 1, nil
}

// RevokeExpired revokes every expired, still active token of a user and
// returns how many rows changed.
func (r *TokenRepo) RevokeExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, revokeExpiredSQL, now, string(model.RevokeExpired), userID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke expired tokens: %w", err)
	}
	return res.RowsAffected()
}

// Rotate inserts next and revokes oldID in one transaction. The insert comes
// first so a failure never leaves the user with no valid token. If oldID was
// already revoked the transaction is rolled back and ErrAlreadyRevoked is
// returned.
func (r *TokenRepo) Rotate(ctx context.Context, oldID string, next model.RefreshToken, at time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := insertRefreshToken(ctx, tx, next); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, rotateTokenSQL, at, string(model.RevokeRotated), next.ID, oldID)
		if err != nil {
			return fmt.Errorf("revoke rotated token: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("revoke rotated token: %w", err)
		}
		if n == 0 {
			return ErrAlreadyRevoked
		}
		return nil
	})
}
