package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalUploader writes artefacts under a root directory on disk, the
// backend cmd/headlessctl defaults to when no GCS bucket is configured.
type LocalUploader struct {
	root string
}

// NewLocalUploader creates a LocalUploader rooted at dir, creating it if
// it doesn't already exist.
func NewLocalUploader(dir string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: creating local root %q: %w", dir, err)
	}
	return &LocalUploader{root: dir}, nil
}

// Upload writes req.Content to root/req.ObjectName, creating any
// intermediate directories req.ObjectName implies.
func (u *LocalUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	path := filepath.Join(u.root, filepath.FromSlash(req.ObjectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sink: creating parent directory for %q: %w", req.ObjectName, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: creating %q: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, req.Content); err != nil {
		return nil, fmt.Errorf("sink: writing %q: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &UploadResult{
		ObjectName: req.ObjectName,
		URL:        "file://" + filepath.ToSlash(abs),
	}, nil
}
