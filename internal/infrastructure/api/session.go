package api

import (
	"context"
	"errors"
	"sync"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
)

// ErrNoSession is returned when a refresh is requested without a held
// refresh token.
var ErrNoSession = errors.New("no session credentials held")

// Session holds the access/refresh credential pair in volatile memory
// only. There is deliberately no persistence: a process restart always
// starts unauthenticated.
//
// Concurrent 401 handling coalesces onto a single in-flight refresh so
// two rotations can never invalidate each other's tokens.
type Session struct {
	mu       sync.Mutex
	creds    domain.Credentials
	inflight *refreshAttempt
}

type refreshAttempt struct {
	done chan struct{}
	err  error
}

func NewSession() *Session {
	return &Session{}
}

// Set installs a credential pair wholesale, replacing any previous one.
func (s *Session) Set(creds domain.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

// Clear drops the held credentials. Called on logout and whenever a
// refresh fails, because the session is then invalid for any request.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = domain.Credentials{}
}

func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.AccessToken
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.Valid()
}

// Refresh exchanges the held refresh token for a new credential pair.
// staleAccess is the access token the caller saw rejected; if the held
// token already differs, another caller has rotated the pair and no
// exchange is needed. When an exchange is already in flight every
// additional caller waits on it and shares its outcome.
func (s *Session) Refresh(ctx context.Context, staleAccess string, exchange func(context.Context, string) (domain.Credentials, error)) error {
	s.mu.Lock()
	if s.creds.Valid() && s.creds.AccessToken != staleAccess {
		s.mu.Unlock()
		return nil
	}
	if att := s.inflight; att != nil {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-att.done:
			return att.err
		}
	}
	refreshToken := s.creds.RefreshToken
	if refreshToken == "" {
		s.mu.Unlock()
		return ErrNoSession
	}
	att := &refreshAttempt{done: make(chan struct{})}
	s.inflight = att
	s.mu.Unlock()

	creds, err := exchange(ctx, refreshToken)

	s.mu.Lock()
	if err != nil {
		s.creds = domain.Credentials{}
		att.err = err
	} else {
		s.creds = creds
	}
	s.inflight = nil
	s.mu.Unlock()
	close(att.done)
	return att.err
}
