package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local stores objects as files below a root directory (MEDIA_ROOT).
type Local struct {
	root string
}

// NewLocal returns a Local store rooted at dir. The directory is created lazily.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// resolve maps ref to a path inside root, rejecting references that escape it.
func (l *Local) resolve(ref string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(ref, "\\", "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (l *Local) Fetch(ctx context.Context, ref, destPath string) error {
	src, err := l.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create local file at %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy %s to local file: %w", ref, err)
	}
	return dst.Close()
}

func (l *Local) Put(_ context.Context, ref string, data []byte, _ string) error {
	p, err := l.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", ref, err)
	}

	// Write to a sibling temp file and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", ref, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", ref, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", ref, err)
	}
	return nil
}

func (l *Local) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	p, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return f, nil
}

var _ Store = (*Local)(nil)
