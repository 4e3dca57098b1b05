// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements phone-number login for the marketplace.

A client asks for a one-time code, proves ownership of the phone by
submitting it, and receives a short-lived access token plus a long-lived
refresh token. Tokens are self-contained; nothing about a session is stored
server-side.

Architecture:

  - Service: RequestOTP, VerifyOTP and Refresh with typed results.
  - Repository: Postgres stores for otp_requests and users.
  - Delivery: chi handlers setting the refresh cookie.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/events"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/platform/sms"
	"github.com/taibuivan/riyamaga/pkg/uuid"
)

// # Errors

var (
	ErrOTPNotFound    = apperr.New(http.StatusBadRequest, "OTP_NOT_FOUND", "OTP not found")
	ErrOTPAlreadyUsed = apperr.New(http.StatusBadRequest, "OTP_ALREADY_USED", "OTP already used")
	ErrOTPExpired     = apperr.New(http.StatusBadRequest, "OTP_EXPIRED", "OTP expired")
	ErrOTPMismatch    = apperr.New(http.StatusBadRequest, "OTP_MISMATCH", "Invalid OTP")

	// ErrOTPInvalid replaces the four codes above in hardened deployments.
	ErrOTPInvalid = apperr.New(http.StatusBadRequest, "OTP_INVALID", "Invalid or expired OTP")

	ErrNoRefresh      = apperr.New(http.StatusUnauthorized, "NO_REFRESH", "Unauthorized")
	ErrRefreshInvalid = apperr.Unauthorized("Unauthorized")

	ErrAccountBanned    = apperr.New(http.StatusForbidden, "ACCOUNT_BANNED", "Account banned")
	ErrAccountSuspended = apperr.New(http.StatusForbidden, "ACCOUNT_SUSPENDED", "Account suspended")
)

// # Contracts & Types

// TokenIssuer mints and checks the token pair.
type TokenIssuer interface {
	IssueAccess(subject sec.Subject) (string, error)
	IssueRefresh(subject sec.Subject) (string, error)
	VerifyRefresh(tokenString string) (*sec.AuthClaims, error)
	RefreshTTL() time.Duration
}

// Config holds the OTP and refresh policy.
type Config struct {
	OTPTTL      time.Duration
	OTPCooldown time.Duration

	// DevOTP replaces the random code when set. Never set in production.
	DevOTP string

	// ExposeDevOTP returns the raw code in [OTPChallenge]. Non-production only.
	ExposeDevOTP bool

	// RotateRefresh reissues the refresh token on every refresh call.
	RotateRefresh bool

	// GenericOTPErrors collapses every verification failure into [ErrOTPInvalid].
	GenericOTPErrors bool
}

// ClientMeta describes the caller for audit events.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// OTPChallenge is the outcome of a code request.
//
// A cooldown notice is not an error: Issued is false and CooldownSeconds
// carries the wait.
type OTPChallenge struct {
	Issued          bool
	CooldownSeconds int
	DevOTP          string
}

// LoginSession is returned by a successful verification.
type LoginSession struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *User
}

// RefreshedSession is returned by a successful refresh.
//
// RefreshToken is empty when rotation is disabled.
type RefreshedSession struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service implements the phone login use cases.
type Service struct {
	otpRepository  OTPRepository
	userRepository UserRepository
	tokenIssuer    TokenIssuer
	hasher         *sec.OTPHasher
	sender         sms.Sender
	publisher      events.Publisher
	config         Config
	logger         *slog.Logger
	now            func() time.Time
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	otpRepo OTPRepository,
	userRepo UserRepository,
	tokens TokenIssuer,
	hasher *sec.OTPHasher,
	sender sms.Sender,
	publisher events.Publisher,
	config Config,
	logger *slog.Logger,
) *Service {
	if config.OTPTTL <= 0 {
		config.OTPTTL = DefaultOTPTTL
	}
	if config.OTPCooldown < 0 {
		config.OTPCooldown = DefaultOTPCooldown
	}

	return &Service{
		otpRepository:  otpRepo,
		userRepository: userRepo,
		tokenIssuer:    tokens,
		hasher:         hasher,
		sender:         sender,
		publisher:      publisher,
		config:         config,
		logger:         logger,
		now:            time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// # OTP Issuance

/*
RequestOTP issues a new login code unless the phone is cooling down.

Description: Reads the authoritative row for the phone. Inside the cooldown
window it returns the remaining wait without creating a row or revealing the
pending code. Otherwise it stores the hash of a fresh code and hands the
code to the SMS sender.

Parameters:
  - context: context.Context
  - phone: string
  - meta: ClientMeta

Returns:
  - *OTPChallenge: Issuance or cooldown notice
  - error: Storage or entropy failures
*/
func (service *Service) RequestOTP(context context.Context, phone string, meta ClientMeta) (*OTPChallenge, error) {
	now := service.now()
	cooldownSeconds := int(service.config.OTPCooldown / time.Second)

	latest, err := service.otpRepository.Latest(context, phone)
	if err != nil {
		return nil, fmt.Errorf("auth_service_latest_otp_failed: %w", err)
	}

	// Inside the window the pending code stays the only valid one.
	if latest != nil {
		elapsed := now.Sub(latest.CreatedAt)
		if elapsed < service.config.OTPCooldown {
			remaining := cooldownSeconds - int(max(elapsed, 0)/time.Second)
			return &OTPChallenge{CooldownSeconds: max(remaining, 1)}, nil
		}
	}

	code := service.config.DevOTP
	if code == "" {
		code, err = sec.GenerateOTP()
		if err != nil {
			return nil, fmt.Errorf("auth_service_generate_otp_failed: %w", err)
		}
	}

	otp := &OTPRequest{
		Phone:     phone,
		OTPHash:   service.hasher.Hash(code),
		CreatedAt: now,
		ExpiresAt: now.Add(service.config.OTPTTL),
		RequestIP: meta.IP,
	}
	if err := service.otpRepository.Create(context, otp); err != nil {
		return nil, fmt.Errorf("auth_service_create_otp_failed: %w", err)
	}

	// Delivery failures do not void the row; the client may ask again after the cooldown.
	if err := service.sender.SendOTP(context, phone, code); err != nil {
		service.logger.WarnContext(context, "otp_delivery_failed",
			slog.String("phone", events.MaskPhone(phone)),
			slog.Int64("otp_id", otp.ID),
			slog.Any("error", err),
		)
	}

	service.publish(context, events.Event{
		Type:       events.TypeOTPRequested,
		Phone:      phone,
		IP:         meta.IP,
		OccurredAt: now,
	})

	challenge := &OTPChallenge{Issued: true, CooldownSeconds: cooldownSeconds}
	if service.config.ExposeDevOTP {
		challenge.DevOTP = code
	}
	return challenge, nil
}

// # OTP Verification

/*
VerifyOTP exchanges the pending code for a token pair.

Description: Checks are applied in a fixed order against the single latest
row: presence, consumption, expiry, then the hash. The row is consumed with
a conditional write before any other side effect, so of two concurrent
submissions only one proceeds. A banned account still burns the code.

Parameters:
  - context: context.Context
  - phone: string
  - code: string
  - meta: ClientMeta

Returns:
  - *LoginSession: Tokens and the stored account
  - error: OTP_* failures, ACCOUNT_BANNED or storage errors
*/
func (service *Service) VerifyOTP(context context.Context, phone, code string, meta ClientMeta) (*LoginSession, error) {
	now := service.now()

	otp, err := service.otpRepository.Latest(context, phone)
	if err != nil {
		return nil, fmt.Errorf("auth_service_latest_otp_failed: %w", err)
	}

	switch {
	case otp == nil:
		return nil, service.otpFailure(ErrOTPNotFound)
	case otp.IsConsumed():
		return nil, service.otpFailure(ErrOTPAlreadyUsed)
	case otp.IsExpired(now):
		return nil, service.otpFailure(ErrOTPExpired)
	case !service.hasher.Match(code, otp.OTPHash):
		return nil, service.otpFailure(ErrOTPMismatch)
	}

	won, err := service.otpRepository.Consume(context, otp.ID, now)
	if err != nil {
		return nil, fmt.Errorf("auth_service_consume_otp_failed: %w", err)
	}
	if !won {
		return nil, service.otpFailure(ErrOTPAlreadyUsed)
	}

	user, err := service.userRepository.UpsertVerifiedByPhone(context, phone, uuid.New(), now)
	if err != nil {
		return nil, fmt.Errorf("auth_service_upsert_user_failed: %w", err)
	}

	if user.Status == sec.StatusBanned {
		return nil, ErrAccountBanned
	}

	accessToken, refreshToken, err := service.issuePair(user.Subject())
	if err != nil {
		return nil, err
	}

	service.publish(context, events.Event{
		Type:       events.TypeLogin,
		UserID:     user.ID,
		Phone:      phone,
		IP:         meta.IP,
		OccurredAt: now,
	})

	return &LoginSession{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(service.tokenIssuer.RefreshTTL()),
		User:             user,
	}, nil
}

// # Session Refresh

/*
Refresh mints a new access token from a refresh token.

Description: Expired and invalid refresh tokens are indistinguishable to the
caller. The account is re-read so the new access token carries the current
role and phone.

Parameters:
  - context: context.Context
  - refreshToken: string (cookie value, may be empty)
  - meta: ClientMeta

Returns:
  - *RefreshedSession: New access token, plus a rotated refresh token when enabled
  - error: NO_REFRESH, UNAUTHORIZED, ACCOUNT_BANNED or storage errors
*/
func (service *Service) Refresh(context context.Context, refreshToken string, meta ClientMeta) (*RefreshedSession, error) {
	if refreshToken == "" {
		return nil, ErrNoRefresh
	}

	claims, err := service.tokenIssuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrRefreshInvalid
	}

	user, err := service.userRepository.FindByID(context, claims.UserID)
	if err != nil {
		if apperr.HasCode(err, "NOT_FOUND") {
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("auth_service_refresh_user_failed: %w", err)
	}

	if user.Status == sec.StatusBanned {
		return nil, ErrAccountBanned
	}

	session := &RefreshedSession{}
	if service.config.RotateRefresh {
		session.AccessToken, session.RefreshToken, err = service.issuePair(user.Subject())
		session.RefreshExpiresAt = service.now().Add(service.tokenIssuer.RefreshTTL())
	} else {
		session.AccessToken, err = service.tokenIssuer.IssueAccess(user.Subject())
	}
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_sign_failed: %w", err)
	}

	service.publish(context, events.Event{
		Type:       events.TypeRefreshed,
		UserID:     user.ID,
		Phone:      user.Phone,
		IP:         meta.IP,
		OccurredAt: service.now(),
		Attributes: map[string]string{"rotated": fmt.Sprint(service.config.RotateRefresh)},
	})

	return session, nil
}

// # Helpers

func (service *Service) issuePair(subject sec.Subject) (string, string, error) {
	accessToken, err := service.tokenIssuer.IssueAccess(subject)
	if err != nil {
		return "", "", fmt.Errorf("auth_service_sign_access_failed: %w", err)
	}

	refreshToken, err := service.tokenIssuer.IssueRefresh(subject)
	if err != nil {
		return "", "", fmt.Errorf("auth_service_sign_refresh_failed: %w", err)
	}

	return accessToken, refreshToken, nil
}

func (service *Service) otpFailure(err *apperr.AppError) error {
	if service.config.GenericOTPErrors {
		return ErrOTPInvalid
	}
	return err
}

// publish never fails the request; audit delivery is best effort.
func (service *Service) publish(context context.Context, event events.Event) {
	if err := service.publisher.Publish(context, event); err != nil {
		service.logger.WarnContext(context, "security_event_publish_failed",
			slog.String("type", event.Type),
			slog.Any("error", err),
		)
	}
}
