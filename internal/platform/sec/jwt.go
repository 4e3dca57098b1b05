// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (OTP digests, JWT signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via small interfaces declared by the consumers.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and wrong secrets.
	ErrTokenInvalid = errors.New("sec: token invalid")

	// ErrTokenExpired is returned only when the signature checks out but exp has passed.
	ErrTokenExpired = errors.New("sec: token expired")
)

// Subject is the identity embedded into a token.
type Subject struct {
	ID    string
	Role  UserRole
	Phone string
}

// AuthClaims represents the payload embedded inside access and refresh tokens.
//
// Custom application claims are abbreviated to keep the JWT payload small.
// No OTP, password or secret material is ever placed here.
type AuthClaims struct {
	jwt.RegisteredClaims

	UserID string   `json:"uid"`
	Role   UserRole `json:"rol"`
	Phone  string   `json:"phn"`
}

// Subject returns the identity carried by the claims.
func (claims *AuthClaims) Subject() Subject {
	return Subject{ID: claims.UserID, Role: claims.Role, Phone: claims.Phone}
}

// Sign produces an HS256 token for subject valid for timeToLive from now.
func Sign(subject Subject, secret []byte, issuer string, timeToLive time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("sec: empty signing secret")
	}
	if timeToLive <= 0 {
		return "", fmt.Errorf("sec: non-positive token ttl %s", timeToLive)
	}

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(timeToLive)),
		},
		UserID: subject.ID,
		Role:   subject.Role,
		Phone:  subject.Phone,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks signature, issuer and expiry of tokenString against secret.
//
// The returned error is exactly [ErrTokenExpired] or [ErrTokenInvalid].
func Verify(tokenString string, secret []byte, issuer string, now time.Time) (*AuthClaims, error) {
	keyFunc := func(token *jwt.Token) (any, error) {
		return secret, nil
	}

	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err == nil {
		if claims.UserID == "" {
			return nil, ErrTokenInvalid
		}
		return claims, nil
	}

	if !errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenInvalid
	}

	// Expiry is only meaningful once the signature has been proven, whatever
	// order the parser evaluated things in.
	_, sigErr := jwt.ParseWithClaims(tokenString, &AuthClaims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if sigErr != nil {
		return nil, ErrTokenInvalid
	}

	return nil, ErrTokenExpired
}

// # Token Service

// TokenConfig holds the secrets and lifetimes for both token kinds.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenService signs and verifies access and refresh tokens with distinct secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenService validates the configuration and constructs a [TokenService].
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("sec: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("sec: token ttls must be positive")
	}

	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the service reading time from now.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *service
	clone.now = now
	return &clone
}

// AccessTTL is the configured access token lifetime.
func (service *TokenService) AccessTTL() time.Duration { return service.accessTTL }

// RefreshTTL is the configured refresh token lifetime.
func (service *TokenService) RefreshTTL() time.Duration { return service.refreshTTL }

// IssueAccess signs a short-lived access token.
func (service *TokenService) IssueAccess(subject Subject) (string, error) {
	return Sign(subject, service.accessSecret, service.issuer, service.accessTTL, service.now())
}

// IssueRefresh signs a long-lived refresh token.
func (service *TokenService) IssueRefresh(subject Subject) (string, error) {
	return Sign(subject, service.refreshSecret, service.issuer, service.refreshTTL, service.now())
}

// VerifyAccess verifies a bearer token against the access secret.
func (service *TokenService) VerifyAccess(tokenString string) (*AuthClaims, error) {
	return Verify(tokenString, service.accessSecret, service.issuer, service.now())
}

// VerifyRefresh verifies a refresh cookie value against the refresh secret.
func (service *TokenService) VerifyRefresh(tokenString string) (*AuthClaims, error) {
	return Verify(tokenString, service.refreshSecret, service.issuer, service.now())
}
