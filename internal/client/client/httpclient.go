package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

const usersPrefix = "/api/v1/users"

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) tokens() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) setTokens(t tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = t.AccessToken, t.RefreshToken
}

type request struct {
	method string
	path   string
	body   func() (io.Reader, string, error)
	auth   bool
	out    any
}

func jsonBody(v any) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// multipartBody streams fields and the named local files as multipart form
// data. Empty file paths are skipped.
func multipartBody(fields map[string]string, files map[string]string) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
		for field, path := range files {
			if path == "" {
				continue
			}
			if err := copyFilePart(mw, field, path); err != nil {
				return nil, "", err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &buf, mw.FormDataContentType(), nil
	}
}

func copyFilePart(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// do sends r once. A rejected access token on an authenticated call triggers
// one refresh and one retry. Other 401s, such as a wrong old password, are
// returned as is.
func (c *HTTPClient) do(ctx context.Context, r request) error {
	err := c.send(ctx, r)
	if r.auth && errors.Is(err, errTokenRejected) {
		if rerr := c.Refresh(ctx); rerr != nil {
			return err
		}
		return c.send(ctx, r)
	}
	return err
}

func (c *HTTPClient) send(ctx context.Context, r request) error {
	var (
		body        io.Reader
		contentType string
	)
	if r.body != nil {
		var err error
		body, contentType, err = r.body()
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.auth {
		access, _ := c.tokens()
		if access == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response"}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if resp.Header.Get(common.AuthenticateHeaderName) == common.InvalidTokenChallenge {
			return fmt.Errorf("%w (%w): %s", ErrUnauthorized, errTokenRejected, env.Message)
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, env.Message)
	case resp.StatusCode >= http.StatusBadRequest:
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if r.out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, r.out); err != nil {
			return fmt.Errorf("decode %s response: %w", r.path, err)
		}
	}
	return nil
}

// Ping checks /healthz.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	}
	return nil
}

func (c *HTTPClient) Register(ctx context.Context, form models.RegisterForm) (*models.Account, error) {
	var a models.Account
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   usersPrefix + "/register",
		body: multipartBody(
			map[string]string{
				"username": form.Username,
				"email":    form.Email,
				"fullname": form.FullName,
				"password": string(form.Password),
			},
			map[string]string{
				"avatar":     form.AvatarPath,
				"coverImage": form.CoverImagePath,
			}),
		out: &a,
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) Login(ctx context.Context, username, email string, password []byte) (*models.Account, error) {
	var out struct {
		User *models.Account `json:"user"`
		tokens
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   usersPrefix + "/login",
		body: jsonBody(map[string]string{
			"username": username,
			"email":    email,
			"password": string(password),
		}),
		out: &out,
	})
	if err != nil {
		return nil, err
	}
	c.setTokens(out.tokens)
	return out.User, nil
}

// Logout ends the server session and forgets the local tokens even when
// the server call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, path: usersPrefix + "/logout", auth: true})
	c.setTokens(tokens{})
	return err
}

// Refresh exchanges the stored refresh token for a new pair.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	var out tokens
	err := c.send(ctx, request{
		method: http.MethodPost,
		path:   usersPrefix + "/refresh-token",
		body:   jsonBody(map[string]string{"refreshToken": refresh}),
		out:    &out,
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.setTokens(tokens{})
		}
		return err
	}
	c.setTokens(out)
	return nil
}

// ChangePassword also drops the local tokens, since the server revokes
// the session.
func (c *HTTPClient) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm []byte) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   usersPrefix + "/change-password",
		body: jsonBody(map[string]string{
			"oldPassword":     string(oldPassword),
			"newPassword":     string(newPassword),
			"confirmPassword": string(confirm),
		}),
		auth: true,
	})
	if err != nil {
		return err
	}
	c.setTokens(tokens{})
	return nil
}

func (c *HTTPClient) account(ctx context.Context, r request) (*models.Account, error) {
	var a models.Account
	r.out = &a
	r.auth = true
	if err := c.do(ctx, r); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) CurrentUser(ctx context.Context) (*models.Account, error) {
	return c.account(ctx, request{method: http.MethodGet, path: usersPrefix + "/current-user"})
}

func (c *HTTPClient) UpdateAccount(ctx context.Context, fullName, email string) (*models.Account, error) {
	return c.account(ctx, request{
		method: http.MethodPatch,
		path:   usersPrefix + "/update-account",
		body:   jsonBody(map[string]string{"fullname": fullName, "email": email}),
	})
}

func (c *HTTPClient) UpdateAvatar(ctx context.Context, path string) (*models.Account, error) {
	return c.account(ctx, request{
		method: http.MethodPatch,
		path:   usersPrefix + "/avatar",
		body:   multipartBody(nil, map[string]string{"avatar": path}),
	})
}

func (c *HTTPClient) UpdateCoverImage(ctx context.Context, path string) (*models.Account, error) {
	return c.account(ctx, request{
		method: http.MethodPatch,
		path:   usersPrefix + "/cover-image",
		body:   multipartBody(nil, map[string]string{"coverImage": path}),
	})
}

func (c *HTTPClient) Channel(ctx context.Context, username string) (*models.Channel, error) {
	var ch models.Channel
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   usersPrefix + "/c/" + url.PathEscape(username),
		auth:   true,
		out:    &ch,
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *HTTPClient) History(ctx context.Context) ([]models.HistoryItem, error) {
	items := []models.HistoryItem{}
	err := c.do(ctx, request{method: http.MethodGet, path: usersPrefix + "/history", auth: true, out: &items})
	if err != nil {
		return nil, err
	}
	return items, nil
}
