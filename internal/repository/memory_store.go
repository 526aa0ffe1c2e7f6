package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/authsession/internal/model"
)

// MemoryStore keeps users and refresh tokens in process memory behind a
// single mutex. It honours the same contract as UserRepo and TokenRepo and
// is used by tests and by STORE_DRIVER=memory for local runs.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]model.User         // by id
	emails      map[string]string             // email -> id
	tokens      map[string]model.RefreshToken // by id
	tokenHashes map[string]string             // hash -> id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]model.User),
		emails:      make(map[string]string),
		tokens:      make(map[string]model.RefreshToken),
		tokenHashes: make(map[string]string),
	}
}

func (s *MemoryStore) CreateWithRefreshToken(ctx context.Context, u model.User, t model.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return ErrEmailExists
	}
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	s.putToken(t)
	return nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastActive = &at
		s.users[id] = u
	}
	return nil
}

// DeleteUser removes a user and is only used to simulate accounts that
// disappear after a token was issued.
func (s *MemoryStore) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		delete(s.emails, u.Email)
		delete(s.users, id)
	}
}

// SetStatus changes a user's account status.
func (s *MemoryStore) SetStatus(id string, st model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Status = st
		s.users[id] = u
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Insert(ctx context.Context, t model.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putToken(t)
	return nil
}

func (s *MemoryStore) FindByLookupHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return model.RefreshToken{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokenHashes[hash]
	if !ok {
		return model.RefreshToken{}, ErrNotFound
	}
	return s.tokens[id], nil
}

func (s *MemoryStore) Revoke(ctx context.Context, id string, reason model.RevokeReason, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeLocked(id, reason, "", at), nil
}

func (s *MemoryStore) RevokeExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tokens {
		if t.UserID == userID && !t.Revoked && t.Expired(now) {
			s.revokeLocked(id, model.RevokeExpired, "", now)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Rotate(ctx context.Context, oldID string, next model.RefreshToken, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokens[oldID]
	if !ok || old.Revoked {
		return ErrAlreadyRevoked
	}
	s.putToken(next)
	s.revokeLocked(oldID, model.RevokeRotated, next.ID, at)
	return nil
}

// Tokens returns a snapshot of every token held for a user.
func (s *MemoryStore) Tokens(userID string) []model.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RefreshToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// UserCount returns the number of stored users.
func (s *MemoryStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *MemoryStore) putToken(t model.RefreshToken) {
	s.tokens[t.ID] = t
	s.tokenHashes[t.TokenHash] = t.ID
}

func (s *MemoryStore) revokeLocked(id string, reason model.RevokeReason, replacedBy string, at time.Time) bool {
	t, ok := s.tokens[id]
	if !ok || t.Revoked {
		return false
	}
	t.Revoked = true
	t.RevokedAt = &at
	t.RevokedReason = reason
	t.ReplacedBy = replacedBy
	s.tokens[id] = t
	return true
}
