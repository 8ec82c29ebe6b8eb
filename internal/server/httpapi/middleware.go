package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/metrics"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
)

type ctxKey string

const (
	accountKey   ctxKey = "account"
	requestIDKey ctxKey = "requestID"
)

func accountFrom(ctx context.Context) *models.AccountView {
	a, _ := ctx.Value(accountKey).(*models.AccountView)
	return a
}

// RequestID returns the id assigned to the current request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// withRequestID reuses an incoming X-Request-ID or assigns a new ULID and
// echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withRequestLogging logs every request and records it in the HTTP metrics
// under its route template.
func withRequestLogging(log logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			elapsed := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), elapsed)

			log.Info(r.Context(), "http.request",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"remote", r.RemoteAddr,
			)
		})
	}
}

func accessTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(common.AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get(common.AuthorizationHeaderName); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// requireAuth verifies the access token, loads its account and stores the
// public view in the request context.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFrom(r)
		if token == "" {
			rejectToken(w)
			return
		}

		claims, err := h.verifier.Verify(token, auth.Access)
		if err != nil {
			rejectToken(w)
			return
		}

		account, err := h.svc.CurrentAccount(r.Context(), claims.AccountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				rejectToken(w)
				return
			}
			h.logger.Error(r.Context(), "load account", "error", err)
			respondError(w, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), accountKey, account)))
	}
}

// rejectToken answers 401 with the invalid_token challenge.
func rejectToken(w http.ResponseWriter) {
	w.Header().Set(common.AuthenticateHeaderName, common.InvalidTokenChallenge)
	respondError(w, common.ErrorUnauthorized)
}
