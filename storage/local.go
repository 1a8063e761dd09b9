package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes images to a directory that the HTTP server exposes
// under PublicPath.
type LocalStore struct {
	dir        string
	publicPath string
}

func NewLocalStore(dir, publicPath string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	return &LocalStore{dir: dir, publicPath: strings.TrimRight(publicPath, "/")}, nil
}

// Dir is the directory served as static files.
func (s *LocalStore) Dir() string { return s.dir }

// PublicPath is the URL prefix the images are served under.
func (s *LocalStore) PublicPath() string { return s.publicPath }

func (s *LocalStore) Save(ctx context.Context, name, _ string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = filepath.Base(name)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close image file: %w", err)
	}
	return path.Join(s.publicPath, name), nil
}

func (s *LocalStore) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.publicPath+"/") {
		return ErrNotFound
	}
	name := path.Base(ref)
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
