// Package session holds the bearer token and the cached current user, both
// persisted in the local cache under the fixed browser-era keys.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"securedeal-client/internal/cache"
	"securedeal-client/internal/domain"
)

type Session struct {
	mu    sync.RWMutex
	store cache.Store
	token string
	user  *domain.User
}

func New(store cache.Store) *Session {
	return &Session{store: store}
}

// Load restores the persisted token and user, if any. A cache miss is not
// an error; the session simply starts logged out.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, err := s.store.Get(ctx, cache.KeyToken); err == nil {
		s.token = string(raw)
	} else if !errors.Is(err, cache.ErrMiss) {
		return fmt.Errorf("load token: %w", err)
	}

	if raw, err := s.store.Get(ctx, cache.KeyUser); err == nil {
		var user domain.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return fmt.Errorf("decode cached user: %w", err)
		}
		s.user = &user
	} else if !errors.Is(err, cache.ErrMiss) {
		return fmt.Errorf("load user: %w", err)
	}

	return nil
}

// Establish stores a fresh login.
func (s *Session) Establish(ctx context.Context, token string, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(ctx, cache.KeyToken, []byte(token)); err != nil {
		return err
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.store.Put(ctx, cache.KeyUser, raw); err != nil {
		return err
	}

	s.token = token
	s.user = user
	return nil
}

// SetUser refreshes the cached profile after a successful fetch or update.
func (s *Session) SetUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.store.Put(ctx, cache.KeyUser, raw); err != nil {
		return err
	}
	s.user = user
	return nil
}

// Token implements apiclient.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) CurrentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Valid reports whether a token is present and, when it carries an exp
// claim, not past it. The signature is not verified here; the server is the
// authority and rejects bad tokens with a 401.
func (s *Session) Valid(now time.Time) bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Opaque tokens pass through; only a parseable, expired jwt fails.
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}

// Clear wipes the session and the user's cached deal list. Used on logout
// and on a 401 from any authenticated call.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user != nil {
		if err := s.store.Delete(ctx, cache.DealsKey(s.user.ID)); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, cache.KeyToken); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, cache.KeyUser); err != nil {
		return err
	}

	s.token = ""
	s.user = nil
	return nil
}
