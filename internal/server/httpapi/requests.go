package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/filex"
)

const maxJSONBody = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

type loginResponse struct {
	User         any    `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body", common.ErrValidation)
	}
	return nil
}

// stagedFiles tracks uploaded files written to the temp dir so the handler
// can remove leftovers once the request is done.
type stagedFiles []string

func (s stagedFiles) cleanup() {
	for _, p := range s {
		_ = os.Remove(p)
	}
}

// parseMultipart parses a multipart body limited by the configured upload size.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.opts.MaxUploadBytes+maxJSONBody)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		return fmt.Errorf("%w: invalid multipart body", common.ErrValidation)
	}
	return nil
}

// stageFile saves form file field into the upload dir. A missing field
// yields an empty path.
func (h *Handler) stageFile(r *http.Request, field string, staged *stagedFiles) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %s: %v", common.ErrValidation, field, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	path, err := filex.SaveTemp(h.opts.UploadDir, header.Filename, file, h.opts.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, filex.ErrTooLarge) {
			return "", fmt.Errorf("%w: %s is too large", common.ErrValidation, field)
		}
		return "", err
	}
	*staged = append(*staged, path)
	return path, nil
}
