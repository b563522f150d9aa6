package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

// LocalStorage writes files under a directory served at BaseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(conf *core.Config) *LocalStorage {
	return &LocalStorage{dir: conf.Storage.Dir, baseURL: conf.Storage.BaseURL}
}

func (s *LocalStorage) Dir() string { return s.dir }

// Save writes r to name (a slash separated path relative to the storage dir) and returns its public URL.
func (s *LocalStorage) Save(ctx context.Context, name string, r io.Reader, _ string) (string, error) {
	name = path.Clean("/" + name)[1:]
	if name == "" || strings.HasPrefix(name, "..") {
		return "", errors.Errorf("invalid file name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating storage dir")
	}

	// readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing file")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing file")
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Wrap(err, "moving file")
	}
	return s.baseURL + "/" + name, nil
}
