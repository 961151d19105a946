// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth owns the session lifecycle: restoring persisted credentials
// at startup, exchanging login credentials with the backend, and tearing
// the session down on logout or token rejection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gptstir/stir-tui/internal/api"
	"github.com/gptstir/stir-tui/internal/model"
	"github.com/gptstir/stir-tui/internal/store"
)

// State is the session lifecycle state.
type State int

const (
	// StateUnauthenticated means no session; the login screen is shown.
	StateUnauthenticated State = iota

	// StateVerifying means a persisted token exists but has not been
	// confirmed by the backend yet. Protected UI must not render.
	StateVerifying

	// StateAuthenticated means the backend confirmed the token.
	StateAuthenticated
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateVerifying:
		return "verifying"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Default operation bounds.
const (
	DefaultVerifyTimeout = 10 * time.Second
	DefaultLoginTimeout  = 15 * time.Second
)

var (
	// ErrLoginInFlight indicates a login attempt is already running; the
	// new attempt is rejected, never queued.
	ErrLoginInFlight = errors.New("login already in progress")

	// ErrLoginThrottled indicates too many login attempts in a short window.
	ErrLoginThrottled = errors.New("too many login attempts")

	// ErrLoginTimeout indicates the exchange did not finish within the
	// login deadline.
	ErrLoginTimeout = errors.New("login timed out")
)

// Session is the mutex-guarded session state machine. All transitions
// happen here; other packages observe via State(), Token(), User() and
// Subscribe().
type Session struct {
	mu    sync.Mutex
	state State
	token string
	user  model.User

	client *api.Client
	creds  *store.CredentialStore

	loginInFlight bool
	loginLimiter  *rate.Limiter

	verifyTimeout time.Duration
	loginTimeout  time.Duration

	listeners []func(State)
}

// New creates a session seeded from the credential store. A persisted pair
// puts the session in StateVerifying until Bootstrap confirms it.
func New(client *api.Client, creds *store.CredentialStore) *Session {
	s := &Session{
		state:         StateUnauthenticated,
		client:        client,
		creds:         creds,
		loginLimiter:  rate.NewLimiter(rate.Every(2*time.Second), 3),
		verifyTimeout: DefaultVerifyTimeout,
		loginTimeout:  DefaultLoginTimeout,
	}

	token, user, ok, err := creds.LoadCredentials()
	if err != nil {
		log.Printf("auth: failed to load persisted credentials: %v", err)
	}
	if ok {
		s.token = token
		s.user = user
		s.state = StateVerifying
	}
	return s
}

// WithVerifyTimeout sets the bootstrap verification deadline.
func (s *Session) WithVerifyTimeout(d time.Duration) *Session {
	s.verifyTimeout = d
	return s
}

// WithLoginTimeout sets the login exchange deadline.
func (s *Session) WithLoginTimeout(d time.Duration) *Session {
	s.loginTimeout = d
	return s
}

// WithLoginLimiter replaces the login attempt limiter.
func (s *Session) WithLoginLimiter(l *rate.Limiter) *Session {
	s.loginLimiter = l
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the current bearer token, or "" outside a session.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns the current user profile. Zero value outside a session.
func (s *Session) User() model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Subscribe registers a listener called after every state transition.
// Listeners run outside the session lock.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Bootstrap settles a restored session: it verifies the persisted token
// with the backend and lands in Authenticated or Unauthenticated. Without
// a persisted pair it returns immediately. Any verification failure,
// including network failure, clears the persisted pair; the user logs in
// again rather than operating on an unconfirmed session.
func (s *Session) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateVerifying {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	valid, err := s.client.VerifyToken(ctx)
	if err != nil {
		log.Printf("auth: token verification failed: %v", err)
		s.Logout()
		return fmt.Errorf("token verification failed: %w", err)
	}
	if !valid {
		log.Printf("auth: persisted token rejected, clearing session")
		s.Logout()
		return nil
	}

	s.transition(func() {
		s.state = StateAuthenticated
	})
	return nil
}

// CompleteLogin exchanges a provider-issued credential for a session.
// Only one attempt runs at a time; a failed attempt leaves the state
// unchanged so the login screen can show the error and retry.
func (s *Session) CompleteLogin(ctx context.Context, provider, credential string) error {
	return s.login(ctx, func(ctx context.Context) (*api.LoginResult, error) {
		return s.client.ExchangeCredential(ctx, provider, credential)
	})
}

// CompleteOAuthCallback exchanges an OAuth authorization code for a
// session. Same rules as CompleteLogin.
func (s *Session) CompleteOAuthCallback(ctx context.Context, provider, code string) error {
	return s.login(ctx, func(ctx context.Context) (*api.LoginResult, error) {
		return s.client.ExchangeCode(ctx, provider, code)
	})
}

func (s *Session) login(ctx context.Context, exchange func(context.Context) (*api.LoginResult, error)) error {
	s.mu.Lock()
	if s.loginInFlight {
		s.mu.Unlock()
		return ErrLoginInFlight
	}
	if !s.loginLimiter.Allow() {
		s.mu.Unlock()
		return ErrLoginThrottled
	}
	s.loginInFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loginInFlight = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.loginTimeout)
	defer cancel()

	result, err := exchange(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrLoginTimeout, err)
		}
		return err
	}

	// Persist before transitioning; a failed write still leaves a working
	// in-memory session for this run.
	if err := s.creds.SaveCredentials(result.Token, result.User); err != nil {
		log.Printf("auth: failed to persist credentials: %v", err)
	}

	s.transition(func() {
		s.token = result.Token
		s.user = result.User
		s.state = StateAuthenticated
	})
	return nil
}

// Logout tears the session down unconditionally. Callable from any state,
// idempotent, never fails: local teardown proceeds even if clearing the
// store errors.
func (s *Session) Logout() {
	if err := s.creds.ClearCredentials(); err != nil {
		log.Printf("auth: failed to clear persisted credentials: %v", err)
	}
	s.transition(func() {
		s.token = ""
		s.user = model.User{}
		s.state = StateUnauthenticated
	})
}

// Invalidate is the 401 path: the backend rejected the current token on an
// authenticated call, so the session is dead regardless of local state.
func (s *Session) Invalidate() {
	log.Printf("auth: session invalidated by backend")
	s.Logout()
}

// transition applies a state mutation under the lock and notifies
// listeners outside it.
func (s *Session) transition(apply func()) {
	s.mu.Lock()
	apply()
	state := s.state
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
