// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/constants"
	"github.com/taibuivan/riyamaga/internal/platform/ctxutil"
	"github.com/taibuivan/riyamaga/internal/platform/respond"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
)

var (
	// ErrNoToken is returned when the bearer header is missing or malformed.
	ErrNoToken = apperr.New(http.StatusUnauthorized, "NO_TOKEN", "Missing bearer token")

	// ErrTokenExpired is the only 401 clients should answer with a refresh.
	ErrTokenExpired = apperr.New(http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token expired")

	// ErrTokenInvalid is terminal; the client must log in again.
	ErrTokenInvalid = apperr.New(http.StatusUnauthorized, "TOKEN_INVALID", "Invalid access token")
)

// TokenVerifier verifies access tokens.
type TokenVerifier interface {
	VerifyAccess(tokenString string) (*sec.AuthClaims, error)
}

// StatusResolver loads the caller's live account standing.
//
// It returns ACCOUNT_BANNED / ACCOUNT_SUSPENDED app errors for blocked
// accounts and may heal expired suspensions as a side effect.
type StatusResolver interface {
	Resolve(ctx context.Context, userID string) (*sec.Identity, error)
}

// RequireAuth authenticates the request and attaches the live identity.
//
// # Flow
//  1. Extract 'Authorization: Bearer <token>'. Missing or malformed → NO_TOKEN.
//  2. Verify the access token. Expired → TOKEN_EXPIRED, anything else → TOKEN_INVALID.
//  3. Re-read status from the account store via [StatusResolver].
//  4. Inject [*sec.Identity] built from database values, not claims.
func RequireAuth(verifier TokenVerifier, resolver StatusResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Bearer Extraction ──────────────────────────────────────────
			token, ok := bearerToken(request.Header.Get(constants.HeaderAuthorization))
			if !ok {
				respond.Error(writer, request, ErrNoToken)
				return
			}

			// ── 2. Token Verification ─────────────────────────────────────────
			claims, err := verifier.VerifyAccess(token)
			if err != nil {
				if errors.Is(err, sec.ErrTokenExpired) {
					respond.Error(writer, request, ErrTokenExpired)
					return
				}
				respond.Error(writer, request, ErrTokenInvalid)
				return
			}

			// ── 3. Live Status Gate ───────────────────────────────────────────
			identity, err := resolver.Resolve(request.Context(), claims.UserID)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithIdentity(request.Context(), identity)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireRole blocks requests whose identity role is not in allowed.
//
// # Usage
//
// Must be registered AFTER [RequireAuth]. Role names compare case-insensitively.
func RequireRole(allowed ...sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := ctxutil.GetIdentity(request.Context())

			if identity == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			if !identity.Role.In(allowed...) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// bearerToken parses "Bearer <token>" (scheme is case-insensitive).
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, constants.AuthorizationBearer) {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
