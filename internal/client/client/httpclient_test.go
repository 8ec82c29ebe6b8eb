package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": status,
		"data":       data,
		"message":    msg,
		"success":    status < 400,
	})
}

// fakeServer accepts access token "a1" until expire is set, then only "a2",
// which /refresh-token hands out in exchange for "r1".
type fakeServer struct {
	expired   atomic.Bool
	refreshes atomic.Int32
	lastAuth  atomic.Value
}

func (f *fakeServer) currentAccess() string {
	if f.expired.Load() {
		return "a2"
	}
	return "a1"
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+usersPrefix+"/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "invalid credentials")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"user":         map[string]string{"_id": "1", "username": body["username"]},
			"accessToken":  "a1",
			"refreshToken": "r1",
		}, "ok")
	})
	mux.HandleFunc("POST "+usersPrefix+"/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refreshToken"] != "r1" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "refresh token is expired or used")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]string{"accessToken": "a2", "refreshToken": "r2"}, "ok")
	})
	mux.HandleFunc("GET "+usersPrefix+"/current-user", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		f.lastAuth.Store(auth)
		if auth != "Bearer "+f.currentAccess() {
			w.Header().Set(common.AuthenticateHeaderName, common.InvalidTokenChallenge)
			writeEnvelope(w, http.StatusUnauthorized, nil, "Unauthorized request")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]string{"_id": "1", "username": "alice"}, "ok")
	})
	mux.HandleFunc("POST "+usersPrefix+"/change-password", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, nil, "invalid credentials")
	})
	mux.HandleFunc("PATCH "+usersPrefix+"/update-account", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, nil, "username or email already exists")
	})
	mux.HandleFunc("POST "+usersPrefix+"/register", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeEnvelope(w, http.StatusBadRequest, nil, "bad form")
			return
		}
		if _, _, err := r.FormFile("avatar"); err != nil {
			writeEnvelope(w, http.StatusBadRequest, nil, "avatar file is required")
			return
		}
		cover := ""
		if _, _, err := r.FormFile("coverImage"); err == nil {
			cover = "cover"
		}
		writeEnvelope(w, http.StatusCreated, map[string]any{
			"_id":        "1",
			"username":   r.FormValue("username"),
			"coverImage": cover,
		}, "created")
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newFakeClient(t *testing.T) (*HTTPClient, *fakeServer) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, f
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	_, err := NewHTTPClient("not a url", time.Second)
	require.Error(t, err)
}

func TestLogin_StoresTokens(t *testing.T) {
	c, _ := newFakeClient(t)

	user, err := c.Login(context.Background(), "alice", "", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	access, refresh := c.tokens()
	assert.Equal(t, "a1", access)
	assert.Equal(t, "r1", refresh)
}

func TestLogin_Rejected(t *testing.T) {
	c, _ := newFakeClient(t)

	_, err := c.Login(context.Background(), "alice", "", []byte("bad"))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestProtectedCall_NotLoggedIn(t *testing.T) {
	c, _ := newFakeClient(t)

	_, err := c.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestProtectedCall_RefreshesOnceOn401(t *testing.T) {
	c, f := newFakeClient(t)
	_, err := c.Login(context.Background(), "alice", "", []byte("pw"))
	require.NoError(t, err)

	f.expired.Store(true)

	user, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, int32(1), f.refreshes.Load())
	assert.Equal(t, "Bearer a2", f.lastAuth.Load())

	access, refresh := c.tokens()
	assert.Equal(t, "a2", access)
	assert.Equal(t, "r2", refresh)
}

func TestProtectedCall_RefreshRejectedClearsTokens(t *testing.T) {
	c, f := newFakeClient(t)
	c.setTokens(tokens{AccessToken: "stale", RefreshToken: "spent"})

	_, err := c.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), f.refreshes.Load())

	access, refresh := c.tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestProtectedCall_CredentialRejectionDoesNotRefresh(t *testing.T) {
	c, f := newFakeClient(t)
	c.setTokens(tokens{AccessToken: "a1", RefreshToken: "r1"})

	err := c.ChangePassword(context.Background(), []byte("wrong"), []byte("n"), []byte("n"))
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, errors.Is(err, errTokenRejected))
	assert.Equal(t, int32(0), f.refreshes.Load())

	access, refresh := c.tokens()
	assert.Equal(t, "a1", access)
	assert.Equal(t, "r1", refresh)
}

func TestAPIError(t *testing.T) {
	c, _ := newFakeClient(t)
	c.setTokens(tokens{AccessToken: "a1", RefreshToken: "r1"})

	_, err := c.UpdateAccount(context.Background(), "A", "taken@example.com")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "username or email already exists", apiErr.Message)
}

func TestRegister_SendsFiles(t *testing.T) {
	c, _ := newFakeClient(t)

	dir := t.TempDir()
	avatar := filepath.Join(dir, "me.png")
	require.NoError(t, os.WriteFile(avatar, []byte("png"), 0o600))

	a, err := c.Register(context.Background(), models.RegisterForm{
		Username:   "alice",
		Email:      "alice@example.com",
		FullName:   "Alice",
		Password:   []byte("pw"),
		AvatarPath: avatar,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)
	assert.Empty(t, a.CoverImageURL)

	_, err = c.Register(context.Background(), models.RegisterForm{
		Username:   "alice",
		AvatarPath: filepath.Join(dir, "missing.png"),
	})
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	c, _ := newFakeClient(t)
	require.NoError(t, c.Ping(context.Background()))

	down, err := NewHTTPClient("http://127.0.0.1:1", time.Second)
	require.NoError(t, err)
	require.ErrorIs(t, down.Ping(context.Background()), ErrUnavailable)
}
