// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/riyamaga/internal/platform/constants"
	requestutil "github.com/taibuivan/riyamaga/internal/platform/request"
	"github.com/taibuivan/riyamaga/internal/platform/respond"
	"github.com/taibuivan/riyamaga/internal/platform/validate"
)

// # Definitions & Constructors

// Handler exposes the login endpoints over HTTP.
//
// It only deals with transport: decoding, validation, cookies and status codes.
type Handler struct {
	authService *Service
	refreshTTL  time.Duration
}

// NewHandler constructs a new [Handler]. refreshTTL sets the cookie Max-Age.
func NewHandler(service *Service, refreshTTL time.Duration) *Handler {
	return &Handler{authService: service, refreshTTL: refreshTTL}
}

// Routes returns a [chi.Router] with the /auth endpoints.
//
// otpGuards wrap the two OTP endpoints only (typically a rate limiter).
//
// # Endpoints
//   - POST /request-otp : Issues a login code.
//   - POST /verify-otp  : Exchanges the code for tokens.
//   - POST /refresh     : Mints an access token from the refresh cookie.
//   - POST /logout      : Clears the refresh cookie.
func (handler *Handler) Routes(otpGuards ...func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(otpGuards...)
		r.Post("/request-otp", handler.requestOTP)
		r.Post("/verify-otp", handler.verifyOTP)
	})

	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	return router
}

// # Payloads

type requestOTPRequest struct {
	Phone string `json:"phone"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type requestOTPResponse struct {
	respond.Ack
	CooldownSeconds int    `json:"cooldown_seconds"`
	DevOTP          string `json:"dev_otp,omitempty"`
}

type verifyOTPResponse struct {
	respond.Ack
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *PublicUser `json:"user"`
}

type refreshResponse struct {
	respond.Ack
	AccessToken string `json:"accessToken"`
}

/*
requestOTP issues a one-time login code.

POST /auth/request-otp

Request:
  - Body: requestOTPRequest (Phone)

Response:
  - 200: cooldown_seconds, plus dev_otp outside production
  - 400: VALIDATION_ERROR
  - 429: RATE_LIMITED
*/
func (handler *Handler) requestOTP(writer http.ResponseWriter, request *http.Request) {
	var input requestOTPRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldPhone, input.Phone).
		Length(FieldPhone, input.Phone, PhoneMinLength, PhoneMaxLength).
		Phone(FieldPhone, input.Phone)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	challenge, err := handler.authService.RequestOTP(request.Context(), input.Phone, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, requestOTPResponse{
		Ack:             respond.Success(),
		CooldownSeconds: challenge.CooldownSeconds,
		DevOTP:          challenge.DevOTP,
	})
}

/*
verifyOTP consumes the pending code and opens a session.

POST /auth/verify-otp

Request:
  - Body: verifyOTPRequest (Phone, OTP)

Response:
  - 200: access_token, refresh_token and the user; refresh cookie set
  - 400: VALIDATION_ERROR or OTP_* failures
  - 403: ACCOUNT_BANNED
*/
func (handler *Handler) verifyOTP(writer http.ResponseWriter, request *http.Request) {
	var input verifyOTPRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldPhone, input.Phone).
		Length(FieldPhone, input.Phone, PhoneMinLength, PhoneMaxLength).
		Phone(FieldPhone, input.Phone).
		Required(FieldOTP, input.OTP).
		Length(FieldOTP, input.OTP, OTPMinLength, OTPMaxLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.VerifyOTP(request.Context(), input.Phone, input.OTP, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, session.RefreshToken)

	respond.OK(writer, verifyOTPResponse{
		Ack:          respond.Success(),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         session.User.Public(),
	})
}

/*
refresh mints a new access token from the refresh cookie.

POST /auth/refresh

Response:
  - 200: accessToken; a rotated refresh cookie when rotation is enabled
  - 401: NO_REFRESH when the cookie is absent, UNAUTHORIZED otherwise
  - 403: ACCOUNT_BANNED
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var refreshToken string
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		refreshToken = cookie.Value
	}

	session, err := handler.authService.Refresh(request.Context(), refreshToken, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if session.RefreshToken != "" {
		handler.setRefreshCookie(writer, session.RefreshToken)
	}

	respond.OK(writer, refreshResponse{
		Ack:         respond.Success(),
		AccessToken: session.AccessToken,
	})
}

/*
logout expires the refresh cookie. Tokens are stateless, so nothing is revoked.

POST /auth/logout

Response:
  - 200: ok
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respond.OK(writer, respond.Success())
}

// # Helpers

func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    token,
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   int(handler.refreshTTL / time.Second),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clientMeta(request *http.Request) ClientMeta {
	return ClientMeta{IP: requestutil.ClientIP(request), UserAgent: request.UserAgent()}
}
