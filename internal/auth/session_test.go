// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/gptstir/stir-tui/internal/api"
	"github.com/gptstir/stir-tui/internal/model"
	"github.com/gptstir/stir-tui/internal/store"
)

// newTestSession wires a session against baseURL with a fresh credential
// store, mirroring the wiring in main.
func newTestSession(t *testing.T, baseURL string) (*Session, *store.CredentialStore) {
	t.Helper()
	creds, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { creds.Close() })

	var sess *Session
	client := api.NewClient(baseURL, func() string {
		if sess == nil {
			return ""
		}
		return sess.Token()
	})
	sess = New(client, creds)
	return sess, creds
}

func seedCredentials(t *testing.T, creds *store.CredentialStore, token string) {
	t.Helper()
	require.NoError(t, creds.SaveCredentials(token, model.User{ID: "u1", Name: "Ada"}))
}

func TestBootstrapWithoutCredentials(t *testing.T) {
	// Unreachable backend: bootstrap must not need the network.
	sess, _ := newTestSession(t, "http://127.0.0.1:1")

	require.Equal(t, StateUnauthenticated, sess.State())
	require.NoError(t, sess.Bootstrap(context.Background()))
	require.Equal(t, StateUnauthenticated, sess.State())
}

func TestBootstrapValidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/verify", r.URL.Path)
		require.Equal(t, "Bearer persisted-tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]bool{"valid": true})
	}))
	defer srv.Close()

	creds, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer creds.Close()
	require.NoError(t, creds.SaveCredentials("persisted-tok", model.User{ID: "u1", Name: "Ada"}))

	var sess *Session
	client := api.NewClient(srv.URL, func() string { return sess.Token() })
	sess = New(client, creds)

	require.Equal(t, StateVerifying, sess.State())
	require.NoError(t, sess.Bootstrap(context.Background()))
	require.Equal(t, StateAuthenticated, sess.State())
	require.Equal(t, "Ada", sess.User().Name)
	require.Equal(t, "persisted-tok", sess.Token())
}

func TestBootstrapRejectedTokenClearsStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"valid": false})
	}))
	defer srv.Close()

	creds, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer creds.Close()
	seedCredentials(t, creds, "stale-tok")

	var sess *Session
	client := api.NewClient(srv.URL, func() string { return sess.Token() })
	sess = New(client, creds)

	require.NoError(t, sess.Bootstrap(context.Background()))
	require.Equal(t, StateUnauthenticated, sess.State())
	require.Empty(t, sess.Token())

	_, _, ok, err := creds.LoadCredentials()
	require.NoError(t, err)
	require.False(t, ok, "rejected pair must be cleared from the store")
}

func TestBootstrapNetworkFailureClearsSession(t *testing.T) {
	creds, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer creds.Close()
	seedCredentials(t, creds, "tok")

	var sess *Session
	client := api.NewClient("http://127.0.0.1:1", func() string { return sess.Token() })
	sess = New(client, creds)

	require.Error(t, sess.Bootstrap(context.Background()))
	require.Equal(t, StateUnauthenticated, sess.State())
}

func TestCompleteLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/google", r.URL.Path)
		json.NewEncoder(w).Encode(api.LoginResult{
			Token: "fresh-tok",
			User:  model.User{ID: "u1", Name: "Ada"},
		})
	}))
	defer srv.Close()

	sess, creds := newTestSession(t, srv.URL)

	var states []State
	sess.Subscribe(func(s State) { states = append(states, s) })

	require.NoError(t, sess.CompleteLogin(context.Background(), "google", "id-token"))
	require.Equal(t, StateAuthenticated, sess.State())
	require.Equal(t, "fresh-tok", sess.Token())
	require.Equal(t, []State{StateAuthenticated}, states)

	token, user, ok, err := creds.LoadCredentials()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh-tok", token)
	require.Equal(t, "u1", user.ID)
}

func TestCompleteLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad credential"})
	}))
	defer srv.Close()

	sess, creds := newTestSession(t, srv.URL)

	err := sess.CompleteLogin(context.Background(), "google", "bad")
	require.ErrorIs(t, err, api.ErrAuthInvalid)
	require.Equal(t, StateUnauthenticated, sess.State())

	_, _, ok, loadErr := creds.LoadCredentials()
	require.NoError(t, loadErr)
	require.False(t, ok, "failed login must not persist anything")
}

func TestCompleteLoginTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	sess, _ := newTestSession(t, srv.URL)
	sess.WithLoginTimeout(50 * time.Millisecond)

	err := sess.CompleteLogin(context.Background(), "google", "cred")
	require.ErrorIs(t, err, ErrLoginTimeout)
	require.Equal(t, StateUnauthenticated, sess.State())
}

func TestOverlappingLoginRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(api.LoginResult{Token: "tok", User: model.User{ID: "u1"}})
	}))
	defer srv.Close()

	sess, _ := newTestSession(t, srv.URL)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- sess.CompleteLogin(context.Background(), "google", "cred")
	}()

	<-started
	err := sess.CompleteLogin(context.Background(), "google", "cred")
	require.ErrorIs(t, err, ErrLoginInFlight)

	close(release)
	require.NoError(t, <-firstDone)
	require.Equal(t, StateAuthenticated, sess.State())
}

func TestLoginThrottled(t *testing.T) {
	sess, _ := newTestSession(t, "http://127.0.0.1:1")
	sess.WithLoginLimiter(rate.NewLimiter(rate.Limit(0), 0))

	err := sess.CompleteLogin(context.Background(), "google", "cred")
	require.ErrorIs(t, err, ErrLoginThrottled)
}

func TestLogoutIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.LoginResult{Token: "tok", User: model.User{ID: "u1"}})
	}))
	defer srv.Close()

	sess, creds := newTestSession(t, srv.URL)
	require.NoError(t, sess.CompleteLogin(context.Background(), "google", "cred"))

	sess.Logout()
	require.Equal(t, StateUnauthenticated, sess.State())
	require.Empty(t, sess.Token())

	_, _, ok, err := creds.LoadCredentials()
	require.NoError(t, err)
	require.False(t, ok)

	// Logging out again from a clean state is a no-op, not a failure.
	sess.Logout()
	require.Equal(t, StateUnauthenticated, sess.State())
}

func TestInvalidateOnAuthFailure(t *testing.T) {
	var sess *Session
	creds, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer creds.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/google" {
			json.NewEncoder(w).Encode(api.LoginResult{Token: "tok", User: model.User{ID: "u1"}})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, func() string {
		if sess == nil {
			return ""
		}
		return sess.Token()
	})
	sess = New(client, creds)
	client.OnAuthFailure(sess.Invalidate)

	require.NoError(t, sess.CompleteLogin(context.Background(), "google", "cred"))

	// Any authenticated call answered 401 forces logout.
	_, err = client.History(context.Background(), "c1")
	require.Error(t, err)
	require.True(t, errors.Is(err, api.ErrAuthInvalid))
	require.Equal(t, StateUnauthenticated, sess.State())
}
