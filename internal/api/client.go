// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the GPTStir backend proxy.
//
// The backend fronts every model provider; this client only ever talks to
// it. All authenticated endpoints take a bearer token issued by the
// credential exchange. The client performs no retries: callers decide what
// a failure means for their state.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gptstir/stir-tui/internal/model"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is used when no server URL is configured.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultTimeout is the per-request timeout for ordinary calls. Chat
	// sends get a longer budget because model inference is slow.
	DefaultTimeout = 30 * time.Second

	// DefaultSendTimeout bounds SendMessage requests.
	DefaultSendTimeout = 120 * time.Second

	// MaxResponseSize caps response bodies to prevent memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// sharedHTTPClient is the pooled HTTP client used for all backend requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	// Per-request timeouts are applied via context so sends can run longer
	// than ordinary calls on the same client.
}

// Error variables for backend API failures.
var (
	// ErrAuthInvalid indicates the backend rejected the bearer token, or no
	// token was available to attach.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrThrottled indicates the client-side send limiter refused the
	// request before it reached the network.
	ErrThrottled = errors.New("request throttled")

	// ErrResponseTooLarge indicates the response body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeded maximum size")
)

// APIError is a non-2xx response from the backend that does not map to a
// sentinel error.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// apiErrorResponse is the backend's error body shape.
type apiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LoginResult is the body of a successful credential or code exchange.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// HistoryEntry is one persisted message returned by the history endpoint.
type HistoryEntry struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	ModelName string `json:"model_name"`
	ModelType string `json:"model_type"`
}

// SendRequest is the chat send payload.
type SendRequest struct {
	Prompt         string `json:"prompt"`
	ModelType      string `json:"modelType"`
	ModelName      string `json:"modelName"`
	ConversationID string `json:"conversationId,omitempty"`
}

// SendResponse is the chat send reply. ConversationID is set only when the
// backend created a conversation implicitly for this message.
type SendResponse struct {
	Response       string  `json:"response"`
	ConversationID *string `json:"conversationId,omitempty"`
}

// TokenSource supplies the current bearer token. Returning "" means no
// session; authenticated calls then fail with ErrAuthInvalid without
// touching the network.
type TokenSource func() string

// Client talks to the GPTStir backend.
type Client struct {
	baseURL     string
	tokenSource TokenSource
	timeout     time.Duration
	sendTimeout time.Duration

	// sendLimiter throttles chat sends client-side. A non-allowance is an
	// immediate ErrThrottled, never a queue.
	sendLimiter *rate.Limiter

	// onAuthFailure is invoked whenever an authenticated endpoint answers
	// 401 (the conversation list excepted, see ListConversations).
	onAuthFailure func()
}

// NewClient creates a backend client. tokens may be nil for a client that
// only performs unauthenticated calls.
func NewClient(baseURL string, tokens TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		tokenSource: tokens,
		timeout:     DefaultTimeout,
		sendTimeout: DefaultSendTimeout,
		sendLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// WithTimeout sets the per-request timeout for ordinary calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// WithSendTimeout sets the timeout for chat sends.
func (c *Client) WithSendTimeout(timeout time.Duration) *Client {
	c.sendTimeout = timeout
	return c
}

// WithSendLimiter replaces the client-side send limiter.
func (c *Client) WithSendLimiter(l *rate.Limiter) *Client {
	c.sendLimiter = l
	return c
}

// OnAuthFailure registers a callback fired when an authenticated call is
// answered with 401. Used by the session layer to force logout.
func (c *Client) OnAuthFailure(fn func()) {
	c.onAuthFailure = fn
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// Request plumbing
// =============================================================================

// logRequest logs an API request without headers or body, which may contain
// token material or prompt text.
func logRequest(req *http.Request) {
	log.Printf("API request: %s %s", req.Method, req.URL.Path)
}

// readResponse reads the body with a size cap.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// do performs one request and returns the raw status and body. payload, if
// non-nil, is JSON-encoded. authed attaches the bearer token; an empty
// token short-circuits to ErrAuthInvalid.
func (c *Client) do(ctx context.Context, method, path string, payload any, authed bool, timeout time.Duration) (int, []byte, error) {
	var token string
	if authed {
		if c.tokenSource != nil {
			token = c.tokenSource()
		}
		if token == "" {
			return 0, nil, fmt.Errorf("%w: no token", ErrAuthInvalid)
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stir-tui/1.0")
	if authed {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logRequest(req)
	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)

	// Drop the Authorization header so a logged request can never carry it.
	req.Header.Del("Authorization")

	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("API response: %d %s %s (%v)", resp.StatusCode, method, path, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// handleErrorResponse converts a non-2xx status and body to a Go error.
func (c *Client) handleErrorResponse(status int, body []byte) error {
	var apiErr apiErrorResponse
	message := ""
	if err := json.Unmarshal(body, &apiErr); err == nil {
		message = apiErr.Message
		if message == "" {
			message = apiErr.Error
		}
	}

	if status == http.StatusUnauthorized {
		if c.onAuthFailure != nil {
			c.onAuthFailure()
		}
		if message != "" {
			return fmt.Errorf("%w: %s", ErrAuthInvalid, message)
		}
		return ErrAuthInvalid
	}

	return &APIError{Status: status, Message: message}
}

// =============================================================================
// Auth endpoints
// =============================================================================

// ExchangeCredential trades a provider-issued credential (e.g. a Google ID
// token) for a backend session token and user profile.
func (c *Client) ExchangeCredential(ctx context.Context, provider, credential string) (*LoginResult, error) {
	return c.exchange(ctx, "/api/auth/"+provider, map[string]string{"credential": credential})
}

// ExchangeCode trades an OAuth authorization code for a backend session
// token and user profile.
func (c *Client) ExchangeCode(ctx context.Context, provider, code string) (*LoginResult, error) {
	return c.exchange(ctx, "/api/auth/"+provider+"/callback", map[string]string{"code": code})
}

func (c *Client) exchange(ctx context.Context, path string, payload map[string]string) (*LoginResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, path, payload, false, c.timeout)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		// A 401 during login means a bad credential, not a dead session;
		// do not fire the auth-failure callback.
		var apiErr apiErrorResponse
		message := ""
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil {
			message = apiErr.Message
			if message == "" {
				message = apiErr.Error
			}
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			if message != "" {
				return nil, fmt.Errorf("%w: %s", ErrAuthInvalid, message)
			}
			return nil, ErrAuthInvalid
		}
		return nil, &APIError{Status: status, Message: message}
	}

	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("%w: exchange returned no token", ErrAuthInvalid)
	}
	return &result, nil
}

// VerifyToken asks the backend whether the current token is still valid.
// A clean {"valid": false} answer is (false, nil); only transport-level
// problems return an error.
func (c *Client) VerifyToken(ctx context.Context) (bool, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/auth/verify", nil, true, c.timeout)
	if err != nil {
		return false, err
	}
	if status == http.StatusUnauthorized {
		return false, nil
	}
	if status != http.StatusOK {
		return false, c.handleErrorResponse(status, body)
	}

	var result struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("failed to parse verify response: %w", err)
	}
	return result.Valid, nil
}

// =============================================================================
// Conversation endpoints
// =============================================================================

// ListConversations fetches the conversation list in backend order.
//
// A 401 here returns an empty list instead of an auth error and does not
// fire the auth-failure callback. The sidebar renders before verification
// completes, and an empty list is the correct display for a session that
// is not (yet) valid.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, true, c.timeout)
	if err != nil {
		if errors.Is(err, ErrAuthInvalid) {
			return []model.Conversation{}, nil
		}
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return []model.Conversation{}, nil
	}
	if status != http.StatusOK {
		return nil, c.handleErrorResponse(status, body)
	}

	var conversations []model.Conversation
	if err := json.Unmarshal(body, &conversations); err != nil {
		return nil, fmt.Errorf("failed to parse conversations: %w", err)
	}
	if conversations == nil {
		conversations = []model.Conversation{}
	}
	return conversations, nil
}

// CreateConversation creates a conversation with the given title and
// returns it.
func (c *Client) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/chat/conversation", map[string]string{"title": title}, true, c.timeout)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, c.handleErrorResponse(status, body)
	}

	var conv model.Conversation
	if err := json.Unmarshal(body, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return &conv, nil
}

// RenameConversation updates a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	status, body, err := c.do(ctx, http.MethodPut, "/api/chat/conversation/"+id, map[string]string{"title": title}, true, c.timeout)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return c.handleErrorResponse(status, body)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/api/chat/conversation/"+id, nil, true, c.timeout)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return c.handleErrorResponse(status, body)
	}
	return nil
}

// History fetches the persisted messages of a conversation in order.
func (c *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/chat/conversation/"+id, nil, true, c.timeout)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.handleErrorResponse(status, body)
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return entries, nil
}

// =============================================================================
// Chat endpoint
// =============================================================================

// SendMessage submits a prompt for model inference. With an empty
// ConversationID the backend creates a conversation and reports its id in
// the response.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if c.sendLimiter != nil && !c.sendLimiter.Allow() {
		return nil, ErrThrottled
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/chat", req, true, c.sendTimeout)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.handleErrorResponse(status, body)
	}

	var resp SendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	return &resp, nil
}
