package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UsersPrefix is the path prefix of the account routes.
const UsersPrefix = "/api/v1/users"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires the account routes plus /healthz and /metrics.
func NewRouter(h *Handler, pinger Pinger, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(withRequestID, withRequestLogging(h.logger))

	r.HandleFunc("/healthz", healthz(pinger)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	users := r.PathPrefix(UsersPrefix).Subrouter()
	users.HandleFunc("/register", h.register).Methods(http.MethodPost)
	users.HandleFunc("/login", h.login).Methods(http.MethodPost)
	users.HandleFunc("/refresh-token", h.refreshToken).Methods(http.MethodPost)

	users.HandleFunc("/logout", h.requireAuth(h.logout)).Methods(http.MethodPost)
	users.HandleFunc("/change-password", h.requireAuth(h.changePassword)).Methods(http.MethodPost)
	users.HandleFunc("/current-user", h.requireAuth(h.currentUser)).Methods(http.MethodGet)
	users.HandleFunc("/update-account", h.requireAuth(h.updateAccount)).Methods(http.MethodPatch)
	users.HandleFunc("/avatar", h.requireAuth(
		h.replaceImage("avatar", "Avatar image updated successfully", h.svc.UpdateAvatar))).Methods(http.MethodPatch)
	users.HandleFunc("/cover-image", h.requireAuth(
		h.replaceImage("coverImage", "Cover image updated successfully", h.svc.UpdateCoverImage))).Methods(http.MethodPatch)
	users.HandleFunc("/c/{username}", h.requireAuth(h.channelProfile)).Methods(http.MethodGet)
	users.HandleFunc("/history", h.requireAuth(h.watchHistory)).Methods(http.MethodGet)

	return r
}

func healthz(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
