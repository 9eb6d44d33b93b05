package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-workspaces/platform/go/logging"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/requesttrace"
)

// RequestIDHeader carries the correlation id between the console, the API and providers.
const RequestIDHeader = "X-Request-Id"

// RequestTrace attributes the request to its caller for approval stamps and scopes the request
// logger to the caller. It runs after authentication and after chi's RequestID, and echoes the
// request id back so the console can quote it in support tickets.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := platformlogging.FromRequest(r, nil)
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set(RequestIDHeader, requestID)
		}

		audit := requesttrace.Anonymous(requestID)
		if creds, ok := platformauth.UserFromContext(r.Context()); ok && creds != nil {
			var err error
			if audit, err = requesttrace.FromCredentials(creds, requestID); err != nil {
				if logger != nil {
					logger.Warn("credentials without a user id", zap.String("http_request_id", requestID), zap.Error(err))
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		ctx := requesttrace.IntoContext(r.Context(), audit)
		if logger != nil {
			ctx = platformlogging.WithLogger(ctx, logger.With(audit.Fields()...))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
