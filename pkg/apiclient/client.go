// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package apiclient is a Go client for the identity API.
//
// # Session Handling
//
// The client keeps the access token in memory and the refresh cookie in its
// cookie jar. A request answered with 401 TOKEN_EXPIRED triggers one shared
// refresh and a single retry. Any other 401 code is returned to the caller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CodeTokenExpired is the only error code that triggers a refresh.
const CodeTokenExpired = "TOKEN_EXPIRED"

// ErrLoggedOut is returned when a refresh fails and the session is dropped.
var ErrLoggedOut = errors.New("apiclient: session expired, login required")

// # Errors

// FieldError is one entry of a VALIDATION_ERROR response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a decoded `{ok:false, code, message}` response.
type APIError struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// HasCode reports whether err is an [*APIError] with the given code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// # Payloads

// Challenge is the result of [Client.RequestOTP].
type Challenge struct {
	CooldownSeconds int    `json:"cooldown_seconds"`
	DevOTP          string `json:"dev_otp,omitempty"`
}

// User is the profile returned on login.
type User struct {
	ID              string    `json:"id"`
	Phone           string    `json:"phone"`
	Email           *string   `json:"email"`
	FullName        *string   `json:"full_name"`
	Role            string    `json:"role"`
	IsPhoneVerified bool      `json:"is_phone_verified"`
	CreatedAt       time.Time `json:"created_at"`
}

// Session is the result of [Client.VerifyOTP].
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// # Client

// Client calls the identity API on behalf of a single user session.
//
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	onLogout   func()

	mu          sync.RWMutex
	accessToken string

	refreshGroup singleflight.Group
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient uses httpClient for all calls. A cookie jar is attached when missing.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) { client.httpClient = httpClient }
}

// WithLogoutHook registers fn to run once each time a refresh fails.
func WithLogoutHook(fn func()) Option {
	return func(client *Client) { client.onLogout = fn }
}

// New constructs a [Client] for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("apiclient_cookie_jar_failed: %w", err)
		}
		copied := *client.httpClient
		copied.Jar = jar
		client.httpClient = &copied
	}

	return client, nil
}

// AccessToken returns the token currently attached to requests.
func (client *Client) AccessToken() string {
	client.mu.RLock()
	defer client.mu.RUnlock()
	return client.accessToken
}

// SetAccessToken replaces the in-memory access token.
func (client *Client) SetAccessToken(token string) {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.accessToken = token
}

// # Auth Calls

// RequestOTP asks the API to send a login code to phone.
func (client *Client) RequestOTP(ctx context.Context, phone string) (*Challenge, error) {
	var challenge Challenge
	if err := client.send(ctx, http.MethodPost, "/auth/request-otp", "", map[string]string{"phone": phone}, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// VerifyOTP exchanges a code for a session. The refresh cookie lands in the jar.
func (client *Client) VerifyOTP(ctx context.Context, phone, otp string) (*Session, error) {
	var session Session
	body := map[string]string{"phone": phone, "otp": otp}
	if err := client.send(ctx, http.MethodPost, "/auth/verify-otp", "", body, &session); err != nil {
		return nil, err
	}

	client.SetAccessToken(session.AccessToken)
	return &session, nil
}

// Refresh mints a new access token from the refresh cookie.
//
// Concurrent callers share one network round trip. On failure the session is
// cleared and the logout hook runs.
func (client *Client) Refresh(ctx context.Context) (string, error) {
	return client.refreshFrom(ctx, client.AccessToken())
}

// refreshFrom skips the round trip when the token already moved past stale.
func (client *Client) refreshFrom(ctx context.Context, stale string) (string, error) {
	result := client.refreshGroup.DoChan("refresh", func() (any, error) {
		if current := client.AccessToken(); current != "" && current != stale {
			return current, nil
		}
		return client.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case outcome := <-result:
		if outcome.Err != nil {
			return "", outcome.Err
		}
		return outcome.Val.(string), nil
	}
}

// Logout clears the refresh cookie and forgets the access token.
func (client *Client) Logout(ctx context.Context) error {
	err := client.send(ctx, http.MethodPost, "/auth/logout", "", nil, nil)
	client.SetAccessToken("")
	return err
}

func (client *Client) refresh(ctx context.Context) (string, error) {
	var payload struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refresh_token"`
	}

	if err := client.send(ctx, http.MethodPost, "/auth/refresh", "", nil, &payload); err != nil {
		client.SetAccessToken("")
		if client.onLogout != nil {
			client.onLogout()
		}
		return "", errors.Join(ErrLoggedOut, err)
	}

	client.SetAccessToken(payload.AccessToken)
	return payload.AccessToken, nil
}

// # Authenticated Calls

/*
Do sends an authenticated request and decodes the JSON response into out.

Description: When the API answers TOKEN_EXPIRED the client refreshes once
and retries with the new token. If another call already refreshed while this
one was in flight, the retry uses that token without a second refresh.

Parameters:
  - ctx: context.Context
  - method: string
  - path: string (relative to the base URL)
  - in: any (JSON body, nil for none)
  - out: any (decode target, nil to discard)

Returns:
  - error: [*APIError], [ErrLoggedOut] or transport failures
*/
func (client *Client) Do(ctx context.Context, method, path string, in, out any) error {
	token := client.AccessToken()

	err := client.send(ctx, method, path, token, in, out)
	if !HasCode(err, CodeTokenExpired) {
		return err
	}

	fresh := client.AccessToken()
	switch {
	case fresh == "" && token != "":
		return ErrLoggedOut
	case fresh == token:
		if fresh, err = client.refreshFrom(ctx, token); err != nil {
			return err
		}
	}

	return client.send(ctx, method, path, fresh, in, out)
}

func (client *Client) send(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient_encode_failed: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("apiclient_request_failed: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("apiclient_transport_failed: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("apiclient_read_failed: %w", err)
	}

	if response.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: response.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(response.StatusCode)
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient_decode_failed: %w", err)
	}
	return nil
}
