package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/authsession/internal/model"
	"github.com/iliyamo/authsession/internal/queue"
	"github.com/iliyamo/authsession/internal/repository"
	"github.com/iliyamo/authsession/internal/telemetry"
	"github.com/iliyamo/authsession/internal/utils"
)

const eventDeadline = 5 * time.Second

// The handler DTOs carry the same rules as validate tags; the manager checks
// them again so it rejects the same input without HTTP in front.
const (
	emailRule = "required,email,max=254"
	nameRule  = "max=100"
)

var validate = validator.New()

// UserStore is the part of the durable store that holds accounts.
type UserStore interface {
	CreateWithRefreshToken(ctx context.Context, u model.User, t model.RefreshToken) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

// TokenStore is the part of the durable store that holds refresh tokens.
// Rotate must insert next and revoke oldID atomically, returning
// repository.ErrAlreadyRevoked when oldID was revoked concurrently.
type TokenStore interface {
	Insert(ctx context.Context, t model.RefreshToken) error
	FindByLookupHash(ctx context.Context, hash string) (model.RefreshToken, error)
	Revoke(ctx context.Context, id string, reason model.RevokeReason, at time.Time) (bool, error)
	RevokeExpired(ctx context.Context, userID string, now time.Time) (int64, error)
	Rotate(ctx context.Context, oldID string, next model.RefreshToken, at time.Time) error
}

// EventPublisher delivers auth events. Failures are logged and never fail
// the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// ClientMeta is stored on refresh tokens and attached to events for audit.
type ClientMeta struct {
	UserAgent string
	IP        string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Client   ClientMeta
}

type LoginInput struct {
	Email    string
	Password string
	Client   ClientMeta
}

type RefreshInput struct {
	RefreshToken string
	Client       ClientMeta
}

type LogoutInput struct {
	RefreshToken string
	Client       ClientMeta
}

// AuthResult is returned by Register, Login and Refresh. RefreshToken is the
// raw secret and must only ever be handed to the client.
type AuthResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             model.PublicUser
}

// SessionManager owns the credential and refresh-token lifecycle. It holds
// no mutable state of its own; everything lives in the stores.
type SessionManager struct {
	users  UserStore
	tokens TokenStore
	hasher *utils.PasswordHasher
	codec  *utils.TokenCodec
	events EventPublisher
	log    *zap.Logger

	// compared against when the email is unknown so that login timing does
	// not reveal whether an account exists
	dummyHash string
}

func NewSessionManager(users UserStore, tokens TokenStore, hasher *utils.PasswordHasher, codec *utils.TokenCodec, events EventPublisher, log *zap.Logger) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		log.Warn("could not prepare dummy password hash", zap.Error(err))
	}
	return &SessionManager{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		codec:     codec,
		events:    events,
		log:       log,
		dummyHash: dummy,
	}
}

// Register validates the input, creates the account together with its first
// refresh token and returns a token pair.
func (m *SessionManager) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SessionManager.Register")
	defer span.End()

	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" {
		return nil, detail(ErrValidation, "Email and password required")
	}
	if err := validate.Var(email, emailRule); err != nil {
		return nil, detail(ErrValidation, "Email is not valid")
	}
	if err := validate.Var(name, nameRule); err != nil {
		return nil, detail(ErrValidation, "Name is too long")
	}
	if res := m.hasher.CheckStrength(in.Password); !res.Valid {
		return nil, detail(ErrWeakPassword, res.Reason)
	}

	_, err := m.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailExists
	case !errors.Is(err, repository.ErrNotFound):
		return nil, m.internal(span, "lookup user by email", err)
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, m.internal(span, "hash password", err)
	}

	now := m.codec.Now()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       model.StatusActive,
		CreatedAt:    now,
	}
	// Sign before writing so a signing failure cannot leave a stored session
	// the client never received.
	access, err := m.codec.IssueAccess(user)
	if err != nil {
		return nil, m.internal(span, "issue access token", err)
	}
	secret, record, err := m.newRefreshToken(user.ID, now, in.Client)
	if err != nil {
		return nil, m.internal(span, "issue refresh secret", err)
	}

	if err := m.users.CreateWithRefreshToken(ctx, user, record); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, m.internal(span, "create user", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	m.publish(ctx, queue.AuthEvent{Type: queue.EventUserRegistered, UserID: user.ID, Email: user.Email, TokenID: record.ID}, in.Client)
	return &AuthResult{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     secret,
		RefreshExpiresAt: record.ExpiresAt,
		User:             user.Public(),
	}, nil
}

// Login verifies credentials and issues a new token pair. Unknown email,
// wrong password and inactive accounts all fail with ErrInvalidCredentials.
func (m *SessionManager) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SessionManager.Login")
	defer span.End()

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, detail(ErrValidation, "Email and password required")
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.hasher.Verify(in.Password, m.dummyHash)
			return nil, m.loginFailed(ctx, "", email, "unknown_email", in.Client)
		}
		return nil, m.internal(span, "lookup user by email", err)
	}
	if !m.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, m.loginFailed(ctx, user.ID, email, "bad_password", in.Client)
	}
	if !user.IsActive() {
		return nil, m.loginFailed(ctx, user.ID, email, "inactive", in.Client)
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	now := m.codec.Now()
	if n, err := m.tokens.RevokeExpired(ctx, user.ID, now); err != nil {
		m.log.Warn("expired token cleanup failed", zap.String("user_id", user.ID), zap.Error(err))
	} else if n > 0 {
		m.log.Debug("revoked expired refresh tokens", zap.String("user_id", user.ID), zap.Int64("count", n))
	}
	if err := m.users.TouchLastActive(ctx, user.ID, now); err != nil {
		m.log.Warn("last_active update failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastActive = &now
	}

	access, err := m.codec.IssueAccess(user)
	if err != nil {
		return nil, m.internal(span, "issue access token", err)
	}
	secret, record, err := m.newRefreshToken(user.ID, now, in.Client)
	if err != nil {
		return nil, m.internal(span, "issue refresh secret", err)
	}
	if err := m.tokens.Insert(ctx, record); err != nil {
		return nil, m.internal(span, "store refresh token", err)
	}

	m.publish(ctx, queue.AuthEvent{Type: queue.EventLogin, UserID: user.ID, Email: user.Email, TokenID: record.ID}, in.Client)
	return &AuthResult{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     secret,
		RefreshExpiresAt: record.ExpiresAt,
		User:             user.Public(),
	}, nil
}

// Refresh exchanges a refresh secret for a new access token and a new
// refresh secret. The presented token is revoked in the same store
// transaction that inserts its successor; of two concurrent refreshes with
// the same secret exactly one succeeds and the other gets ErrTokenRevoked.
func (m *SessionManager) Refresh(ctx context.Context, in RefreshInput) (*AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SessionManager.Refresh")
	defer span.End()

	secret := strings.TrimSpace(in.RefreshToken)
	if secret == "" {
		return nil, ErrMissingToken
	}

	rec, err := m.tokens.FindByLookupHash(ctx, utils.HashForLookup(secret))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, m.refreshRejected(ctx, "", "", ErrInvalidToken, in.Client)
		}
		return nil, m.internal(span, "find refresh token", err)
	}
	span.SetAttributes(attribute.String("user.id", rec.UserID), attribute.String("token.id", rec.ID))

	if rec.Revoked {
		return nil, m.refreshRejected(ctx, rec.UserID, rec.ID, ErrTokenRevoked, in.Client)
	}
	now := m.codec.Now()
	if rec.Expired(now) {
		m.revokeQuietly(ctx, rec.ID, model.RevokeExpired, now)
		return nil, m.refreshRejected(ctx, rec.UserID, rec.ID, ErrTokenExpired, in.Client)
	}

	// A token whose owner is gone or no longer active is retired on the spot
	// so that reactivating the account does not revive it.
	user, err := m.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.revokeQuietly(ctx, rec.ID, model.RevokeInactive, now)
			return nil, m.refreshRejected(ctx, rec.UserID, rec.ID, ErrInvalidToken, in.Client)
		}
		return nil, m.internal(span, "load token owner", err)
	}
	if !user.IsActive() {
		m.revokeQuietly(ctx, rec.ID, model.RevokeInactive, now)
		return nil, m.refreshRejected(ctx, user.ID, rec.ID, ErrInvalidToken, in.Client)
	}

	access, err := m.codec.IssueAccess(user)
	if err != nil {
		return nil, m.internal(span, "issue access token", err)
	}
	newSecret, next, err := m.newRefreshToken(user.ID, now, in.Client)
	if err != nil {
		return nil, m.internal(span, "issue refresh secret", err)
	}
	if err := m.tokens.Rotate(ctx, rec.ID, next, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyRevoked) {
			return nil, m.refreshRejected(ctx, user.ID, rec.ID, ErrTokenRevoked, in.Client)
		}
		return nil, m.internal(span, "rotate refresh token", err)
	}

	m.publish(ctx, queue.AuthEvent{Type: queue.EventRefreshed, UserID: user.ID, Email: user.Email, TokenID: next.ID}, in.Client)
	return &AuthResult{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     newSecret,
		RefreshExpiresAt: next.ExpiresAt,
		User:             user.Public(),
	}, nil
}

// Logout revokes the presented refresh token if it is known and still
// active. A missing, unknown or already revoked token is not an error; only
// a store failure is.
func (m *SessionManager) Logout(ctx context.Context, in LogoutInput) error {
	ctx, span := telemetry.StartSpan(ctx, "SessionManager.Logout")
	defer span.End()

	secret := strings.TrimSpace(in.RefreshToken)
	if secret == "" {
		return nil
	}
	rec, err := m.tokens.FindByLookupHash(ctx, utils.HashForLookup(secret))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return m.internal(span, "find refresh token", err)
	}
	if rec.Revoked {
		return nil
	}
	revoked, err := m.tokens.Revoke(ctx, rec.ID, model.RevokeLogout, m.codec.Now())
	if err != nil {
		return m.internal(span, "revoke refresh token", err)
	}
	if revoked {
		m.publish(ctx, queue.AuthEvent{Type: queue.EventLogout, UserID: rec.UserID, TokenID: rec.ID}, in.Client)
	}
	return nil
}

// GetCurrentUser returns the public view of the access token's subject.
func (m *SessionManager) GetCurrentUser(ctx context.Context, userID string) (model.PublicUser, error) {
	ctx, span := telemetry.StartSpan(ctx, "SessionManager.GetCurrentUser", attribute.String("user.id", userID))
	defer span.End()

	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PublicUser{}, ErrNotFound
		}
		return model.PublicUser{}, m.internal(span, "load user", err)
	}
	return u.Public(), nil
}

// VerifyAccess validates a bearer access token. Expiry is reported as
// ErrTokenExpired, every other failure as ErrInvalidToken.
func (m *SessionManager) VerifyAccess(token string) (*utils.AccessClaims, error) {
	claims, err := m.codec.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *SessionManager) newRefreshToken(userID string, now time.Time, client ClientMeta) (string, model.RefreshToken, error) {
	secret, err := m.codec.IssueRefreshSecret()
	if err != nil {
		return "", model.RefreshToken{}, err
	}
	return secret, model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: utils.HashForLookup(secret),
		IssuedAt:  now,
		ExpiresAt: m.codec.RefreshExpiry(now),
		UserAgent: truncate(client.UserAgent, 255),
		IP:        truncate(client.IP, 45),
	}, nil
}

// revokeQuietly retires a token on a path that is already rejecting the
// request. A failure is logged and the rejection stands.
func (m *SessionManager) revokeQuietly(ctx context.Context, id string, reason model.RevokeReason, at time.Time) {
	if _, err := m.tokens.Revoke(ctx, id, reason, at); err != nil {
		m.log.Warn("revoke refresh token failed", zap.String("token_id", id), zap.String("reason", string(reason)), zap.Error(err))
	}
}

// internal logs the cause and hides it behind ErrInternal.
func (m *SessionManager) internal(span trace.Span, op string, err error) error {
	telemetry.SetSpanError(span, err)
	m.log.Error("session operation failed", zap.String("op", op), zap.Error(err))
	return ErrInternal
}

func (m *SessionManager) loginFailed(ctx context.Context, userID, email, reason string, client ClientMeta) error {
	m.publish(ctx, queue.AuthEvent{Type: queue.EventLoginFailed, UserID: userID, Email: email, Reason: reason}, client)
	return ErrInvalidCredentials
}

func (m *SessionManager) refreshRejected(ctx context.Context, userID, tokenID string, cause error, client ClientMeta) error {
	m.publish(ctx, queue.AuthEvent{Type: queue.EventRefreshRejected, UserID: userID, TokenID: tokenID, Reason: cause.Error()}, client)
	return cause
}

// publish hands the event to the publisher in the background with its own
// deadline, detached from the request so a slow broker never delays the
// response.
func (m *SessionManager) publish(ctx context.Context, ev queue.AuthEvent, client ClientMeta) {
	if m.events == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.IP = client.IP
	ev.UserAgent = client.UserAgent
	ev.OccurredAt = m.codec.Now()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventDeadline)
	go func() {
		defer cancel()
		if err := m.events.Publish(pubCtx, ev); err != nil {
			m.log.Warn("publish auth event failed", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}()
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
