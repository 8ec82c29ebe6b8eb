// Package httpapi exposes the account service over HTTP. Every response is a
// JSON envelope; session tokens travel as HttpOnly cookies and in the body.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/services"
	"github.com/gorilla/mux"
)

// AccountService is the business API the handlers drive.
type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.AccountView, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, accountID string) error
	RefreshSession(ctx context.Context, token string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, accountID string, in services.ChangePasswordInput) error
	UpdateProfile(ctx context.Context, accountID, fullName, email string) (*models.AccountView, error)
	CurrentAccount(ctx context.Context, accountID string) (*models.AccountView, error)
	UpdateAvatar(ctx context.Context, accountID, localPath string) (*models.AccountView, error)
	UpdateCoverImage(ctx context.Context, accountID, localPath string) (*models.AccountView, error)
	ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error)
	WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryItem, error)
}

// TokenVerifier checks access tokens; *auth.Issuer implements it.
type TokenVerifier interface {
	Verify(token string, class auth.TokenClass) (*auth.Claims, error)
}

type Options struct {
	CookieSecure   bool
	CookieSameSite http.SameSite
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	UploadDir      string
	MaxUploadBytes int64
}

type Handler struct {
	svc      AccountService
	verifier TokenVerifier
	logger   logging.Logger
	opts     Options
}

func NewHandler(svc AccountService, verifier TokenVerifier, logger logging.Logger, opts Options) *Handler {
	return &Handler{svc: svc, verifier: verifier, logger: logger.With("module", "http"), opts: opts}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		respondError(w, err)
		return
	}

	var staged stagedFiles
	defer staged.cleanup()

	avatar, err := h.stageFile(r, "avatar", &staged)
	if err != nil {
		respondError(w, err)
		return
	}
	cover, err := h.stageFile(r, "coverImage", &staged)
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := h.svc.Register(r.Context(), services.RegisterInput{
		Username:       r.FormValue("username"),
		Email:          r.FormValue("email"),
		FullName:       r.FormValue("fullname"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, view, "User registered successfully")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	res, err := h.svc.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	h.setSessionCookies(w, res.TokenPair)
	respond(w, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, "User logged in successfully")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), accountFrom(r.Context()).ID); err != nil {
		respondError(w, err)
		return
	}
	h.clearSessionCookies(w)
	respond(w, http.StatusOK, struct{}{}, "User logged out")
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		token = c.Value
	}
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.svc.RefreshSession(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}

	h.setSessionCookies(w, *pair)
	respond(w, http.StatusOK, tokensResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	err := h.svc.ChangePassword(r.Context(), accountFrom(r.Context()).ID, services.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	// the stored refresh token is gone, so the cookies are stale too
	h.clearSessionCookies(w)
	respond(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, accountFrom(r.Context()), "User fetched successfully")
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	view, err := h.svc.UpdateProfile(r.Context(), accountFrom(r.Context()).ID, req.FullName, req.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, view, "Account details updated successfully")
}

func (h *Handler) replaceImage(field, message string,
	update func(ctx context.Context, accountID, localPath string) (*models.AccountView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.parseMultipart(w, r); err != nil {
			respondError(w, err)
			return
		}

		var staged stagedFiles
		defer staged.cleanup()

		path, err := h.stageFile(r, field, &staged)
		if err != nil {
			respondError(w, err)
			return
		}

		view, err := update(r.Context(), accountFrom(r.Context()).ID, path)
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, view, message)
	}
}

func (h *Handler) channelProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.ChannelProfile(r.Context(), mux.Vars(r)["username"], accountFrom(r.Context()).ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, profile, "User channel fetched successfully")
}

func (h *Handler) watchHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.WatchHistory(r.Context(), accountFrom(r.Context()).ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, items, "Watch history fetched successfully")
}
