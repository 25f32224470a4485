package research

import (
	"errors"
	"time"
)

// ErrBadCredentials is returned when a login attempt fails.
var ErrBadCredentials = errors.New("invalid user id or password")

// CredentialCheck validates a user id and password pair.
type CredentialCheck func(user, password string) bool

// Session is the explicit login state for one run. It is created once on a
// successful credential check and passed to the engine; there is no hidden
// process-wide flag, and a session is never de-authenticated mid-run.
type Session struct {
	user      string
	startedAt time.Time
}

// Login validates the credentials and returns an authenticated session.
func Login(user, password string, check CredentialCheck) (*Session, error) {
	if check == nil || !check(user, password) {
		return nil, ErrBadCredentials
	}
	return &Session{
		user:      user,
		startedAt: time.Now(),
	}, nil
}

// User returns the logged-in user id.
func (s *Session) User() string {
	return s.user
}

// StartedAt returns when the session was established.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Authenticated reports whether the session is usable. A nil session is not.
func (s *Session) Authenticated() bool {
	return s != nil && s.user != ""
}
