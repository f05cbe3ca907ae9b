package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

// SyncDir uploads every regular file under localDir through uploader,
// preserving its path relative to localDir under objectPrefix. It is
// the off-box mirror path for completed recordings (§2 "Domain stack":
// an optional backend — nothing calls this unless an Uploader is
// configured).
func SyncDir(ctx context.Context, uploader Uploader, localDir, objectPrefix string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return chromeerr.Wrap(chromeerr.KindStorage, "resolving relative sync path", err)
		}

		f, err := os.Open(path)
		if err != nil {
			return chromeerr.Wrap(chromeerr.KindStorage, "opening "+path+" for sync", err)
		}
		defer f.Close()

		_, err = uploader.Upload(ctx, &UploadRequest{
			ObjectName:  filepath.ToSlash(filepath.Join(objectPrefix, rel)),
			Content:     f,
			ContentType: contentTypeFor(rel),
		})
		if err != nil {
			return chromeerr.Wrap(chromeerr.KindStorage, "syncing "+path, err)
		}
		return nil
	})
}

func contentTypeFor(relPath string) string {
	switch filepath.Ext(relPath) {
	case ".json":
		return "application/json"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
