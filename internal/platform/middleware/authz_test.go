// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/ctxutil"
	"github.com/taibuivan/riyamaga/internal/platform/middleware"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
)

type fakeResolver struct {
	identity *sec.Identity
	err      error
	calls    int
}

func (resolver *fakeResolver) Resolve(_ context.Context, userID string) (*sec.Identity, error) {
	resolver.calls++
	if resolver.err != nil {
		return nil, resolver.err
	}
	identity := *resolver.identity
	identity.ID = userID
	return &identity, nil
}

type errorBody struct {
	OK   bool   `json:"ok"`
	Code string `json:"code"`
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func newTokens(t *testing.T, now *time.Time) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
		Issuer:        "riyamaga.api",
	})
	require.NoError(t, err)
	return service.WithClock(func() time.Time { return *now })
}

// echoIdentity writes the attached identity back as JSON.
var echoIdentity = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
	_ = json.NewEncoder(writer).Encode(ctxutil.GetIdentity(request.Context()))
})

/*
TestRequireAuth walks the middleware state machine for each header shape.
*/
func TestRequireAuth(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTokens(t, &now)
	subject := sec.Subject{ID: "user-1", Role: sec.RoleBuyer, Phone: "+94770000001"}

	valid, err := tokens.IssueAccess(subject)
	require.NoError(t, err)
	refresh, err := tokens.IssueRefresh(subject)
	require.NoError(t, err)

	past := now.Add(-time.Hour)
	tokensInPast := newTokens(t, &past)
	expired, err := tokensInPast.IssueAccess(subject)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing_header", "", http.StatusUnauthorized, "NO_TOKEN"},
		{"wrong_scheme", "Basic " + valid, http.StatusUnauthorized, "NO_TOKEN"},
		{"empty_bearer", "Bearer ", http.StatusUnauthorized, "NO_TOKEN"},
		{"garbled", "Bearer not.a.token", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"refresh_token_as_access", "Bearer " + refresh, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"valid_lowercase_scheme", "bearer " + valid, http.StatusOK, ""},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{identity: &sec.Identity{Role: sec.RoleSeller, Phone: "+94770000001", Status: sec.StatusActive}}
			handler := middleware.RequireAuth(tokens, resolver)(echoIdentity)

			request := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantCode != "" {
				body := decodeError(t, recorder)
				assert.False(t, body.OK)
				assert.Equal(t, tt.wantCode, body.Code)
				assert.Zero(t, resolver.calls)
				return
			}

			// Role comes from the store, not from the BUYER claim.
			var identity sec.Identity
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &identity))
			assert.Equal(t, "user-1", identity.ID)
			assert.Equal(t, sec.RoleSeller, identity.Role)
			assert.Equal(t, 1, resolver.calls)
		})
	}
}

/*
TestRequireAuth_ResolverErrors passes gate failures through unchanged.
*/
func TestRequireAuth_ResolverErrors(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	tokens := newTokens(t, &now)
	valid, err := tokens.IssueAccess(sec.Subject{ID: "user-1", Role: sec.RoleBuyer})
	require.NoError(t, err)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"banned", apperr.New(http.StatusForbidden, "ACCOUNT_BANNED", "Account banned"), http.StatusForbidden, "ACCOUNT_BANNED"},
		{"suspended", apperr.New(http.StatusForbidden, "ACCOUNT_SUSPENDED", "Account suspended"), http.StatusForbidden, "ACCOUNT_SUSPENDED"},
		{"unknown_user", middleware.ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.RequireAuth(tokens, &fakeResolver{err: tt.err})(echoIdentity)

			request := httptest.NewRequest(http.MethodGet, "/me", nil)
			request.Header.Set("Authorization", "Bearer "+valid)
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, recorder).Code)
		})
	}
}

/*
TestRequireRole checks the identity-less, mismatching and matching cases.
*/
func TestRequireRole(t *testing.T) {
	gate := middleware.RequireRole(sec.RoleAdmin, sec.RoleDealer)(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		identity   *sec.Identity
		wantStatus int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"buyer", &sec.Identity{ID: "u", Role: sec.RoleBuyer}, http.StatusForbidden},
		{"dealer", &sec.Identity{ID: "u", Role: sec.RoleDealer}, http.StatusNoContent},
		{"admin_lowercase", &sec.Identity{ID: "u", Role: sec.UserRole("admin")}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			if tt.identity != nil {
				request = request.WithContext(ctxutil.WithIdentity(request.Context(), tt.identity))
			}
			recorder := httptest.NewRecorder()
			gate.ServeHTTP(recorder, request)
			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}
