// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package circulation

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// SessionState is the session manager's state machine position.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
	StateExpired         SessionState = "expired"
)

// Session is the cached credential pair obtained from the login endpoint:
// the access token from the response body plus the cookies set alongside it.
type Session struct {
	AccessToken string
	Cookies     []*http.Cookie
}

// LoginFunc performs one login call and returns a fresh session.
type LoginFunc func(ctx context.Context) (*Session, error)

// SessionManager caches a session for the duration of a run and
// re-authenticates on expiry.
//
// State machine: unauthenticated -> authenticating -> authenticated ->
// expired -> authenticating -> ... The cache is deliberately per-run: each
// scheduled invocation calls Reset first, trading a login round trip for
// zero stale-credential risk.
type SessionManager struct {
	login  LoginFunc
	logger zerolog.Logger

	mu      sync.Mutex
	state   SessionState
	session *Session
}

// NewSessionManager creates a session manager around the given login call.
func NewSessionManager(login LoginFunc, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		login:  login,
		logger: logger.With().Str("component", "session").Logger(),
		state:  StateUnauthenticated,
	}
}

// GetSession returns the cached session, logging in first when the state is
// unauthenticated or expired. A failed login surfaces as *AuthError and
// leaves the state unauthenticated.
func (m *SessionManager) GetSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAuthenticated && m.session != nil {
		return m.session, nil
	}

	m.state = StateAuthenticating
	m.logger.Debug().Msg("Authenticating against circulation system")

	session, err := m.login(ctx)
	if err != nil {
		m.state = StateUnauthenticated
		m.session = nil
		if IsAuthError(err) {
			return nil, err
		}
		return nil, &AuthError{Err: err}
	}

	m.state = StateAuthenticated
	m.session = session
	m.logger.Info().Msg("Circulation session established")
	return session, nil
}

// Invalidate transitions to expired, forcing the next GetSession to
// re-authenticate. Called when a request comes back 401/403.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateExpired
	m.session = nil
	m.logger.Warn().Msg("Circulation session expired")
}

// Reset drops any cached session at the start of a run.
func (m *SessionManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.session = nil
}

// State returns the current state machine position.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
