package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// CopyExtension copies an extension source directory into this session's
// extension directory, so a Managed browser launch can point
// --load-extension at a path scoped to the session rather than the
// shared source. A no-op (returns the existing directory) when src is
// empty.
func (s *Storage) CopyExtension(src string) (string, error) {
	dst, err := s.ExtensionDir()
	if err != nil {
		return "", err
	}
	if src == "" {
		return dst, nil
	}
	if err := copyDirRecursive(src, dst); err != nil {
		return "", chromeerr.Wrap(chromeerr.KindStorage, "copying extension assets", err)
	}
	return dst, nil
}

func copyDirRecursive(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyDirRecursive(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
