// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware provides the cross-cutting HTTP processing chain.

It acts as a series of decorators around the standard http.Handler, injecting
traceability, safety, and security into every request lifecycle.

Standard Stack:

  - Trace: RequestID generation for log correlation.
  - Address: RealIP resolves the caller behind trusted proxies only.
  - Log: Structured Activity logging (slog).
  - Guard: Rate limiting and CORS validation.
  - Safe: Panic recovery to prevent server crashes.
  - Auth: Bearer verification, live account status and role gates.
*/
package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"

	"github.com/taibuivan/riyamaga/internal/platform/apperr"
	"github.com/taibuivan/riyamaga/internal/platform/constants"
	"github.com/taibuivan/riyamaga/internal/platform/ctxutil"
	"github.com/taibuivan/riyamaga/internal/platform/ratelimit"
	requestutil "github.com/taibuivan/riyamaga/internal/platform/request"
	"github.com/taibuivan/riyamaga/internal/platform/respond"
	"github.com/taibuivan/riyamaga/pkg/uuid"
)

// # Request Tracing

// RequestID attaches a correlation ID to every request for log tracing.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Check if the client already provided an ID
			requestID := request.Header.Get(constants.HeaderXRequestID)

			// 2. Generate a new one if missing (using UUID v7 for time-sortable properties)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New()
			}

			// 3. Inject into context and response headers
			ctx := ctxutil.WithRequestID(request.Context(), requestID)
			writer.Header().Set(constants.HeaderXRequestID, requestID)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Activity Logging

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// StructuredLogger logs every request status and performance metrics.
// It also injects a request-specific logger into the context.
//
// The route's auth middleware runs deeper in the chain, so the identity is
// read back from the [ctxutil.IdentitySlot] it fills in.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			startTime := time.Now()
			rid := ctxutil.GetRequestID(request.Context())

			// 1. Create a sub-logger for this specific request
			requestLogger := logger.With(
				slog.String("request_id", rid),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("ip", requestutil.ClientIP(request)),
			)

			// 2. Inject this logger into the context for downstream use
			ctx := ctxutil.WithLogger(request.Context(), requestLogger)
			ctx, slot := ctxutil.WithIdentitySlot(ctx)
			wrappedWriter := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			// 3. Proceed to downstream handlers with the enriched context
			next.ServeHTTP(wrappedWriter, request.WithContext(ctx))

			// 4. Final log entry after the request is finished
			latency := time.Since(startTime).Milliseconds()
			logLevel := slog.LevelInfo

			if wrappedWriter.status >= 500 {
				logLevel = slog.LevelError
			} else if wrappedWriter.status >= 400 {
				logLevel = slog.LevelWarn
			}

			logAttrs := []any{
				slog.Int("status", wrappedWriter.status),
				slog.Int64("latency_ms", latency),
				slog.String("user_agent", request.UserAgent()),
			}

			// Add user_id if the request was authenticated
			if identity := slot.Identity(); identity != nil {
				logAttrs = append(logAttrs, slog.String("user_id", identity.ID))
			}

			requestLogger.Log(ctx, logLevel, "http_request_finished", logAttrs...)
		})
	}
}

// # Rate Limiting

// RateLimit throttles every request by client IP.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return LimitBy(limiter, requestutil.ClientIP)
}

// LimitBy throttles requests with limiter, bucketing by keyFunc.
//
// Backend failures let the request through and are logged.
func LimitBy(limiter ratelimit.Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			decision, err := limiter.Allow(request.Context(), keyFunc(request))
			if err != nil {
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "rate_limiter_unavailable",
					slog.Any("error", err),
				)
				next.ServeHTTP(writer, request)
				return
			}

			if !decision.Allowed {
				retryAfter := decision.RetryAfterSeconds()
				writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
				respond.Error(writer, request, apperr.RateLimited(retryAfter))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Reliability & Safety

// PanicRecovery recovers from panics, logs stack trace, and returns 500.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// Defer a recovery function to catch any runtime exceptions
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}

					// Capture the runtime stack trace for diagnostics
					stackTrace := make([]byte, 4096)
					length := runtime.Stack(stackTrace, false)

					reqLogger := ctxutil.GetLogger(request.Context())
					if reqLogger == slog.Default() {
						reqLogger = logger
					}

					reqLogger.ErrorContext(request.Context(), "panic_recovered",
						slog.Any("error", recovered),
						slog.String("stack", string(stackTrace[:length])),
					)

					// Return a safe, generic error to the client
					respond.Error(writer, request, apperr.Internal(nil))
				}
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # Cross-Origin Resource Sharing

// AppConfig defines the behavior needed by the CORS middleware.
type AppConfig interface {
	IsDevelopment() bool
}

// CORS allows browser frontends to call the API with credentials, which the
// refresh cookie requires. Development accepts any origin.
func CORS(cfg AppConfig, allowedOrigins []string) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", constants.HeaderXRequestID},
		ExposedHeaders:   []string{constants.HeaderXRequestID, constants.HeaderRetryAfter},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if cfg.IsDevelopment() {
		options.AllowOriginFunc = func(_ *http.Request, _ string) bool { return true }
	}

	return cors.Handler(options)
}

// # Client Address

// TrustedProxies lists the peers whose forwarding headers are believed.
//
// The zero value trusts nobody, so the client is always the socket peer.
type TrustedProxies []netip.Prefix

func (proxies TrustedProxies) trusts(addr netip.Addr) bool {
	for _, prefix := range proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

/*
ClientIP resolves the caller's address for request.

Forwarding headers are read only when the direct peer is a trusted proxy.
X-Real-IP wins when it holds a valid address; otherwise X-Forwarded-For is
walked from the right and the first hop that is not a trusted proxy is the
client. Anything unparsable falls back to the direct peer.
*/
func (proxies TrustedProxies) ClientIP(request *http.Request) string {
	peer := requestutil.ClientIP(request)

	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !proxies.trusts(peerAddr) {
		return peer
	}

	if realIP, err := netip.ParseAddr(strings.TrimSpace(request.Header.Get(constants.HeaderXRealIP))); err == nil {
		return realIP.WithZone("").Unmap().String()
	}

	hops := strings.Split(request.Header.Get(constants.HeaderXForwardedFor), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		hop = hop.WithZone("").Unmap()
		if !proxies.trusts(hop) {
			return hop.String()
		}
	}

	return peer
}

// RealIP rewrites RemoteAddr to the resolved client address, so everything
// downstream can read the caller through [requestutil.ClientIP].
func RealIP(proxies TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if len(proxies) > 0 {
				if clientIP := proxies.ClientIP(request); clientIP != requestutil.ClientIP(request) {
					request.RemoteAddr = clientIP
				}
			}
			next.ServeHTTP(writer, request)
		})
	}
}
