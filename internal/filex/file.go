// Package filex manages the temporary directory that uploaded files are
// staged in before they are moved to the blob store.
package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

// ErrTooLarge is returned by SaveTemp when the input exceeds the limit.
var ErrTooLarge = errors.New("file too large")

// EnsureDir creates dirName (relative paths resolve against the working
// directory) and returns its absolute path.
func EnsureDir(dirName string) (string, error) {
	dir := dirName
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dirName)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// SaveTemp copies at most limit bytes of r into a new randomly named file in
// dir, keeping the extension of originalName. The partial file is removed
// on failure.
func SaveTemp(dir, originalName string, r io.Reader, limit int64) (string, error) {
	name, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+strings.ToLower(filepath.Ext(originalName)))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("write %s: %w", path, err)
	case closeErr != nil:
		err = fmt.Errorf("close %s: %w", path, closeErr)
	case n > limit:
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
