package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/services"
)

// ParseSameSite maps "strict", "lax" or "none" to http.SameSite. Unknown
// values fall back to Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: h.opts.CookieSameSite,
	}
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, pair services.TokenPair) {
	http.SetCookie(w, h.cookie(common.AccessTokenCookieName, pair.AccessToken, h.opts.AccessTTL))
	http.SetCookie(w, h.cookie(common.RefreshTokenCookieName, pair.RefreshToken, h.opts.RefreshTTL))
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
